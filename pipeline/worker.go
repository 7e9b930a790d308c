package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parliament-api/models"
)

type WorkerConfig struct {
	Interval    time.Duration
	MaxInterval time.Duration
	RunOnStart  bool
}

// Worker runs full ingestion cycles in the background. The interval doubles
// after a failing cycle, up to MaxInterval, and resets after a clean one.
type Worker struct {
	runner          *Runner
	baseInterval    time.Duration
	maxInterval     time.Duration
	currentInterval time.Duration
	runOnStart      bool
	logger          *slog.Logger

	running  bool
	mu       sync.Mutex
	stopChan chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorker creates a new ingest worker instance
func NewWorker(runner *Runner, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = cfg.Interval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		runner:          runner,
		baseInterval:    cfg.Interval,
		maxInterval:     cfg.MaxInterval,
		currentInterval: cfg.Interval,
		runOnStart:      cfg.RunOnStart,
		logger:          logger.With("component", "ingest_worker"),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start begins the background ingest loop. Calling it twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	if w.ctx.Err() != nil {
		w.ctx, w.cancel = context.WithCancel(context.Background())
	}
	w.running = true
	w.stopChan = make(chan struct{})

	w.logger.Info("Starting ingest worker", "interval", w.currentInterval, "max_interval", w.maxInterval)

	w.wg.Add(1)
	go w.run(w.ctx, w.stopChan)
}

// Stop cancels in-flight runs and waits for them to return. Safe to call
// more than once.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.running {
		w.logger.Info("Stopping ingest worker")
		close(w.stopChan)
		w.running = false
	}
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()
}

// Trigger starts a run for one entity in the background and returns at once.
// It fails with ErrWorkerStopped between Stop and the next Start.
func (w *Worker) Trigger(entity models.Entity) error {
	if err := w.runner.acquire(entity); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		w.runner.release(entity)
		return ErrWorkerStopped
	}
	ctx := w.ctx

	// Add under mu so Stop cannot be in wg.Wait yet.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.runner.release(entity)

		if _, err := w.runner.ingestors[entity].Run(ctx); err != nil {
			w.logger.Error("Triggered ingest failed", "entity", entity, "error", err)
		}
	}()
	return nil
}

// Interval is the current wait between cycles.
func (w *Worker) Interval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentInterval
}

func (w *Worker) run(ctx context.Context, stop <-chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	if w.runOnStart {
		w.adjust(ticker, w.cycle(ctx))
	}

	for {
		select {
		case <-ticker.C:
			w.adjust(ticker, w.cycle(ctx))
		case <-stop:
			return
		}
	}
}

func (w *Worker) cycle(ctx context.Context) bool {
	start := time.Now()
	runs, err := w.runner.RunAll(ctx)
	if err != nil {
		w.logger.Error("Ingest cycle failed", "runs", len(runs), "duration", time.Since(start), "error", err)
		return false
	}
	w.logger.Info("Ingest cycle complete", "runs", len(runs), "duration", time.Since(start))
	return true
}

// adjust applies the adaptive backoff after a cycle.
func (w *Worker) adjust(ticker *time.Ticker, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.baseInterval
	if !ok {
		next = min(w.currentInterval*2, w.maxInterval)
	}
	if next != w.currentInterval {
		w.currentInterval = next
		ticker.Reset(next)
		w.logger.Info("Ingest interval changed", "interval", next)
	}
}
