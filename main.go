package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parliament-api/config"
	"parliament-api/config/setup"
	"parliament-api/database"
	"parliament-api/models"
	"parliament-api/pipeline"
)

func main() {
	ingestOnce := flag.String("ingest-once", "", `run a single ingest for an entity (or "all") and exit`)
	flag.Parse()

	config.Load()
	cfg := config.AppConfig

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setup.InitDatabase(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	repo := database.NewRepository(db)

	runner, worker := setup.InitPipeline(ctx, cfg, repo, logger)

	if *ingestOnce != "" {
		code := runIngestOnce(ctx, runner, *ingestOnce, logger)
		db.Close()
		os.Exit(code)
	}

	// Runs left "running" by a previous process will never finish.
	if n, err := repo.AbandonRunningIngestRuns(ctx); err != nil {
		logger.Warn("failed to close stale ingest runs", "error", err)
	} else if n > 0 {
		logger.Info("closed stale ingest runs", "count", n)
	}

	rdb, err := setup.InitRedis(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	limiter, stats := setup.InitRateLimiter(ctx, cfg, rdb, logger)

	worker.Start()
	logger.Info("ingest worker started", "interval", cfg.IngestInterval, "run_on_start", cfg.IngestOnStart)

	application := setup.InitApp(cfg, repo, worker, limiter, stats, logger)

	app := setup.NewFiberApp(cfg, logger)
	setup.ApplyMiddleware(app, application, logger)
	setup.RegisterRoutes(app, application)

	logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	setup.Shutdown(worker, rdb, db, logger)
	logger.Info("server stopped")
}

// runIngestOnce runs the pipeline for one entity or all of them and returns
// the process exit code.
func runIngestOnce(ctx context.Context, runner *pipeline.Runner, target string, logger *slog.Logger) int {
	var runs []*models.IngestRun
	var err error

	if target == "all" {
		runs, err = runner.RunAll(ctx)
	} else {
		entity, ok := models.ParseEntity(target)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown entity %q; expected one of %v or all\n", target, models.AllEntities)
			return 2
		}
		var run *models.IngestRun
		run, err = runner.Run(ctx, entity)
		if run != nil {
			runs = append(runs, run)
		}
	}

	for _, run := range runs {
		logger.Info("ingest summary",
			"entity", run.Entity,
			"status", run.Status,
			"fetched", run.Fetched,
			"created", run.Created,
			"updated", run.Updated,
			"unchanged", run.Unchanged,
			"failed", run.Failed,
		)
	}

	if err != nil {
		logger.Error("ingest failed", "target", target, "error", err)
		return 1
	}
	return 0
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     getLogLevel(cfg.LogLevel),
		AddSource: cfg.Env == "development",
	}

	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func getLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
