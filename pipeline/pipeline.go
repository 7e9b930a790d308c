// Package pipeline moves data from the upstream parliamentary APIs into the
// local store: fetch, enrich, merge, hash, upsert. Every run is recorded in
// ingest_runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"parliament-api/adapters/legisinfo"
	"parliament-api/adapters/openparliament"
	"parliament-api/models"
)

var (
	ErrRunInProgress = errors.New("ingest run already in progress")
	ErrUnknownEntity = errors.New("unknown ingest entity")
	ErrWorkerStopped = errors.New("ingest worker stopped")
)

// Source is the OpenParliament surface the ingestors read from.
type Source interface {
	ListBills(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Bill], error)
	GetBill(ctx context.Context, session, number string) (*models.Bill, error)
	ListPoliticians(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Politician], error)
	GetPolitician(ctx context.Context, slug string) (*models.Politician, error)
	ListVotes(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Vote], error)
	ListDebates(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Debate], error)
	ListCommittees(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Committee], error)
}

// Enricher supplies LEGISinfo detail for a bill.
type Enricher interface {
	GetBill(ctx context.Context, parliament, session int, number string) (*legisinfo.BillDetail, error)
}

// Store is the persistence the ingestors write to.
type Store interface {
	UpsertBill(ctx context.Context, bill *models.Bill) (models.UpsertResult, error)
	GetBillByNaturalKey(ctx context.Context, key models.NaturalKey) (*models.Bill, error)
	UpsertPolitician(ctx context.Context, p *models.Politician) (models.UpsertResult, error)
	GetPoliticianBySlug(ctx context.Context, slug string) (*models.Politician, error)
	UpsertVote(ctx context.Context, v *models.Vote) (models.UpsertResult, error)
	UpsertDebate(ctx context.Context, d *models.Debate) (models.UpsertResult, error)
	UpsertCommittee(ctx context.Context, c *models.Committee) (models.UpsertResult, error)
	CreateIngestRun(ctx context.Context, run *models.IngestRun) error
	FinishIngestRun(ctx context.Context, run *models.IngestRun) error
	RefreshBillFeed(ctx context.Context) (int64, error)
}

// Ingestor loads one entity from upstream.
type Ingestor interface {
	Entity() models.Entity
	Run(ctx context.Context) (*models.IngestRun, error)
}

// Options are shared by every ingestor.
type Options struct {
	// MaxPages caps how many upstream pages one run reads.
	MaxPages int
	PageSize int
	Retry    RetryPolicy
	Logger   *slog.Logger
}

func (o Options) normalized() Options {
	if o.MaxPages < 1 {
		o.MaxPages = 1
	}
	if o.PageSize < 1 {
		o.PageSize = openparliament.DefaultLimit
	}
	if o.Retry.Attempts == 0 {
		o.Retry = DefaultRetryPolicy
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With("component", "pipeline")
	return o
}

// tracked records a run in ingest_runs around body. The run fails only when
// body returns an error; per-item failures are counted by body itself.
func tracked(ctx context.Context, store Store, logger *slog.Logger, entity models.Entity, body func(context.Context, *models.IngestRun) error) (*models.IngestRun, error) {
	run := &models.IngestRun{Entity: entity}
	if err := store.CreateIngestRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create ingest run: %w", err)
	}

	logger.Info("Ingest run started", "entity", entity, "run_id", run.ID)

	runErr := body(ctx, run)
	if runErr != nil {
		run.Status = models.IngestStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = models.IngestStatusSucceeded
	}

	// The run row must be closed even when ctx was cancelled mid-run.
	if err := store.FinishIngestRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("Failed to finish ingest run", "entity", entity, "run_id", run.ID, "error", err)
	}

	logger.Info("Ingest run finished",
		"entity", entity,
		"run_id", run.ID,
		"status", run.Status,
		"fetched", run.Fetched,
		"created", run.Created,
		"updated", run.Updated,
		"unchanged", run.Unchanged,
		"failed", run.Failed,
	)
	return run, runErr
}

// paginate walks up to opts.MaxPages pages and hands every item to each.
// A page that cannot be listed after retries aborts the walk; an item that
// fails is counted and skipped.
func paginate[T any](
	ctx context.Context,
	opts Options,
	run *models.IngestRun,
	op string,
	list func(context.Context, openparliament.PageRequest) (*openparliament.Page[T], error),
	each func(context.Context, *T) (models.UpsertResult, error),
) error {
	req := openparliament.PageRequest{Limit: opts.PageSize}

	for pageNum := 0; pageNum < opts.MaxPages; pageNum++ {
		var page *openparliament.Page[T]
		err := opts.Retry.call(ctx, opts.Logger, op, func(ctx context.Context) error {
			var err error
			page, err = list(ctx, req)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s page %d: %w", op, pageNum+1, err)
		}

		// Rows the source could not normalize still count against the run.
		run.Fetched += page.Skipped
		run.Failed += page.Skipped

		for i := range page.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			run.Fetched++
			result, err := each(ctx, &page.Items[i])
			if err != nil {
				run.Failed++
				opts.Logger.Warn("Failed to ingest item", "op", op, "error", err)
				continue
			}
			run.Record(result)
		}

		if page.NextURL == "" {
			return nil
		}
		req = openparliament.PageRequest{Next: page.NextURL}
	}
	return nil
}

// Runner owns the ingestors and guarantees at most one run per entity.
type Runner struct {
	ingestors map[models.Entity]Ingestor
	logger    *slog.Logger

	mu      sync.Mutex
	running map[models.Entity]bool
}

func NewRunner(logger *slog.Logger, ingestors ...Ingestor) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		ingestors: make(map[models.Entity]Ingestor, len(ingestors)),
		logger:    logger.With("component", "pipeline"),
		running:   make(map[models.Entity]bool),
	}
	for _, ing := range ingestors {
		r.ingestors[ing.Entity()] = ing
	}
	return r
}

// Has reports whether an ingestor is registered for entity.
func (r *Runner) Has(entity models.Entity) bool {
	_, ok := r.ingestors[entity]
	return ok
}

func (r *Runner) Running(entity models.Entity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[entity]
}

func (r *Runner) acquire(entity models.Entity) error {
	if !r.Has(entity) {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[entity] {
		return fmt.Errorf("%w: %s", ErrRunInProgress, entity)
	}
	r.running[entity] = true
	return nil
}

func (r *Runner) release(entity models.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, entity)
}

// Run ingests one entity synchronously.
func (r *Runner) Run(ctx context.Context, entity models.Entity) (*models.IngestRun, error) {
	if err := r.acquire(entity); err != nil {
		return nil, err
	}
	defer r.release(entity)

	return r.ingestors[entity].Run(ctx)
}

// RunAll ingests every registered entity in dependency order. An entity
// already being ingested elsewhere is skipped. Errors are joined.
func (r *Runner) RunAll(ctx context.Context) ([]*models.IngestRun, error) {
	var runs []*models.IngestRun
	var errs []error

	for _, entity := range models.AllEntities {
		if !r.Has(entity) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		run, err := r.Run(ctx, entity)
		if errors.Is(err, ErrRunInProgress) {
			r.logger.Info("Skipping entity, run in progress", "entity", entity)
			continue
		}
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entity, err))
		}
	}

	return runs, errors.Join(errs...)
}
