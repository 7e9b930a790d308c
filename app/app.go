package app

import (
	"log/slog"

	"parliament-api/config"
	"parliament-api/database"
	"parliament-api/pipeline"
	"parliament-api/ratelimit"
	"parliament-api/services"
	"parliament-api/validator"
)

// App holds all application dependencies
// This struct is the central point for dependency injection
type App struct {
	Config    *config.Config
	Repo      *database.Repository
	Worker    *pipeline.Worker
	Limiter   ratelimit.Limiter
	RateStats ratelimit.Stats
	Validator *validator.Validator
	Logger    *slog.Logger

	Bills       *services.BillService
	Politicians *services.PoliticianService
	Votes       *services.VoteService
	Debates     *services.DebateService
	Committees  *services.CommitteeService
	Feeds       *services.FeedService
	Ingest      *services.IngestService
}

// New creates a new App instance with all dependencies. A nil worker
// leaves the admin ingest trigger disabled.
func New(cfg *config.Config, repo *database.Repository, worker *pipeline.Worker, limiter ratelimit.Limiter, stats ratelimit.Stats, logger *slog.Logger) *App {
	var trigger services.IngestTrigger
	if worker != nil {
		trigger = worker
	}

	return &App{
		Config:    cfg,
		Repo:      repo,
		Worker:    worker,
		Limiter:   limiter,
		RateStats: stats,
		Validator: validator.New(),
		Logger:    logger,

		Bills:       services.NewBillService(repo, cfg.Jurisdiction),
		Politicians: services.NewPoliticianService(repo),
		Votes:       services.NewVoteService(repo),
		Debates:     services.NewDebateService(repo),
		Committees:  services.NewCommitteeService(repo),
		Feeds:       services.NewFeedService(repo, cfg.FeedBaseURL),
		Ingest:      services.NewIngestService(trigger, repo),
	}
}
