package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"parliament-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIngestor blocks until release is closed (when set) and returns err.
type stubIngestor struct {
	entity  models.Entity
	err     error
	release chan struct{}
	started chan struct{}
	calls   atomic.Int32
}

func (s *stubIngestor) Entity() models.Entity { return s.entity }

func (s *stubIngestor) Run(ctx context.Context) (*models.IngestRun, error) {
	s.calls.Add(1)
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	status := models.IngestStatusSucceeded
	if s.err != nil {
		status = models.IngestStatusFailed
	}
	return &models.IngestRun{Entity: s.entity, Status: status}, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerTrigger(t *testing.T) {
	ing := &stubIngestor{
		entity:  models.EntityBills,
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	runner := NewRunner(quietLogger(), ing)
	worker := NewWorker(runner, WorkerConfig{Interval: time.Hour}, quietLogger())
	defer worker.Stop()

	require.NoError(t, worker.Trigger(models.EntityBills))
	<-ing.started
	assert.True(t, runner.Running(models.EntityBills))

	err := worker.Trigger(models.EntityBills)
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = runner.Run(context.Background(), models.EntityBills)
	assert.ErrorIs(t, err, ErrRunInProgress)

	err = worker.Trigger(models.EntityDebates)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	close(ing.release)
	assert.Eventually(t, func() bool { return !runner.Running(models.EntityBills) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), ing.calls.Load())
}

func TestWorkerAdaptiveInterval(t *testing.T) {
	runner := NewRunner(quietLogger())
	worker := NewWorker(runner, WorkerConfig{Interval: time.Minute, MaxInterval: 5 * time.Minute}, quietLogger())

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	worker.adjust(ticker, false)
	assert.Equal(t, 2*time.Minute, worker.Interval())
	worker.adjust(ticker, false)
	assert.Equal(t, 4*time.Minute, worker.Interval())
	worker.adjust(ticker, false)
	assert.Equal(t, 5*time.Minute, worker.Interval(), "capped at max interval")

	worker.adjust(ticker, true)
	assert.Equal(t, time.Minute, worker.Interval(), "reset after a clean cycle")
}

func TestWorkerStartStop(t *testing.T) {
	ing := &stubIngestor{entity: models.EntityCommittees, err: errors.New("upstream down")}
	runner := NewRunner(quietLogger(), ing)
	worker := NewWorker(runner, WorkerConfig{Interval: time.Hour, MaxInterval: 4 * time.Hour, RunOnStart: true}, quietLogger())

	worker.Start()
	worker.Start()

	assert.Eventually(t, func() bool { return worker.Interval() == 2*time.Hour }, time.Second, 5*time.Millisecond,
		"failing first cycle backs off")
	assert.Equal(t, int32(1), ing.calls.Load(), "second Start is a no-op")

	worker.Stop()
	worker.Stop()
}

func TestWorkerTriggerAfterStop(t *testing.T) {
	ing := &stubIngestor{entity: models.EntityVotes}
	runner := NewRunner(quietLogger(), ing)
	worker := NewWorker(runner, WorkerConfig{Interval: time.Hour}, quietLogger())

	worker.Stop()

	err := worker.Trigger(models.EntityVotes)
	assert.ErrorIs(t, err, ErrWorkerStopped)
	assert.False(t, runner.Running(models.EntityVotes), "refused trigger releases the entity")
	assert.Equal(t, int32(0), ing.calls.Load())

	worker.Start()
	defer worker.Stop()
	require.NoError(t, worker.Trigger(models.EntityVotes))
	assert.Eventually(t, func() bool { return ing.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
}

func TestWorkerConcurrentTriggerAndStop(t *testing.T) {
	ing := &stubIngestor{entity: models.EntityVotes}
	runner := NewRunner(quietLogger(), ing)
	worker := NewWorker(runner, WorkerConfig{Interval: time.Hour}, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := worker.Trigger(models.EntityVotes)
			if err != nil && !errors.Is(err, ErrRunInProgress) && !errors.Is(err, ErrWorkerStopped) {
				t.Errorf("unexpected trigger error: %v", err)
			}
		}()
	}
	worker.Stop()
	wg.Wait()

	assert.ErrorIs(t, worker.Trigger(models.EntityVotes), ErrWorkerStopped)
	assert.Eventually(t, func() bool { return !runner.Running(models.EntityVotes) }, 5*time.Second, 5*time.Millisecond)
}

func TestWorkerStopCancelsTriggeredRun(t *testing.T) {
	ing := &stubIngestor{
		entity:  models.EntityVotes,
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	runner := NewRunner(quietLogger(), ing)
	worker := NewWorker(runner, WorkerConfig{Interval: time.Hour}, quietLogger())

	require.NoError(t, worker.Trigger(models.EntityVotes))
	<-ing.started

	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, runner.Running(models.EntityVotes))
}
