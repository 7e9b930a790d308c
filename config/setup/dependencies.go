package setup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parliament-api/adapters"
	"parliament-api/adapters/legisinfo"
	"parliament-api/adapters/openparliament"
	"parliament-api/app"
	"parliament-api/cache"
	"parliament-api/config"
	"parliament-api/database"
	"parliament-api/pipeline"
	"parliament-api/ratelimit"

	"github.com/redis/go-redis/v9"
)

// InitDatabase opens the configured database and runs migrations
func InitDatabase(cfg *config.Config, logger *slog.Logger) (*database.DB, error) {
	db, err := database.New(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database initialized", "driver", cfg.DBDriver)
	return db, nil
}

// InitRedis connects to REDIS_URL. Returns nil when Redis is not configured.
func InitRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return rdb, nil
}

// InitRateLimiter picks the Redis sliding window when rdb is set and the
// in-memory token bucket otherwise.
func InitRateLimiter(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (ratelimit.Limiter, ratelimit.Stats) {
	if rdb != nil {
		logger.Info("rate limiter using redis", "max", cfg.RateLimitMax, "window", cfg.RateLimitWindow)
		return ratelimit.NewRedisLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow), ratelimit.NewRedisStats(rdb)
	}

	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartJanitor(ctx)
	logger.Info("rate limiter using memory", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	return limiter, ratelimit.NewMemoryStats()
}

// InitPipeline wires the upstream clients into the ingestors and wraps
// them in a runner and a background worker. The worker is not started.
func InitPipeline(ctx context.Context, cfg *config.Config, repo *database.Repository, logger *slog.Logger) (*pipeline.Runner, *pipeline.Worker) {
	// One fetcher per upstream so each gets its own politeness budget.
	opFetcher := adapters.NewFetcher(cfg.HTTPTimeout, cfg.HTTPUserAgent, cfg.UpstreamRPS)
	liFetcher := adapters.NewFetcher(cfg.HTTPTimeout, cfg.HTTPUserAgent, cfg.UpstreamRPS)

	source := openparliament.NewClient(cfg.OpenParliamentBaseURL, opFetcher,
		openparliament.WithSiteURL(cfg.OpenParliamentSiteURL),
		openparliament.WithJurisdiction(cfg.Jurisdiction),
		openparliament.WithLogger(logger),
	)

	details := cache.New[*legisinfo.BillDetail](legisinfo.DefaultCacheTTL)
	details.StartCleanupRoutine(ctx, legisinfo.DefaultCacheTTL)
	enricher := legisinfo.NewClient(cfg.LegisInfoBaseURL, liFetcher, details)

	opts := pipeline.Options{
		MaxPages: cfg.IngestPageLimit,
		Retry: pipeline.RetryPolicy{
			Attempts: cfg.PipelineMaxRetries,
			Delay:    cfg.PipelineRetryDelay,
		},
		Logger: logger,
	}

	runner := pipeline.NewRunner(logger, pipeline.NewIngestors(source, enricher, repo, opts)...)
	worker := pipeline.NewWorker(runner, pipeline.WorkerConfig{
		Interval:    cfg.IngestInterval,
		MaxInterval: cfg.IngestMaxInterval,
		RunOnStart:  cfg.IngestOnStart,
	}, logger)

	logger.Info("ingest pipeline configured",
		"openparliament", cfg.OpenParliamentBaseURL,
		"jurisdiction", cfg.Jurisdiction,
		"legisinfo", cfg.LegisInfoBaseURL,
		"interval", cfg.IngestInterval,
	)
	return runner, worker
}

// InitApp initializes the application with all dependencies
func InitApp(cfg *config.Config, repo *database.Repository, worker *pipeline.Worker, limiter ratelimit.Limiter, stats ratelimit.Stats, logger *slog.Logger) *app.App {
	application := app.New(cfg, repo, worker, limiter, stats, logger)
	logger.Info("application initialized with dependency injection")
	return application
}

// Shutdown performs graceful shutdown of all services
func Shutdown(worker *pipeline.Worker, rdb *redis.Client, db *database.DB, logger *slog.Logger) {
	logger.Info("shutting down services...")

	if worker != nil {
		worker.Stop()
		logger.Info("ingest worker stopped")
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis", "error", err)
		}
	}

	if db != nil {
		db.Close()
		logger.Info("database closed")
	}
}
