package pipeline

import (
	"context"
	"log/slog"
	"time"

	"parliament-api/adapters"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// ==================== RETRY LOGIC & BACKOFF ====================

// RetryPolicy bounds how upstream calls are repeated. Delay doubles after
// every failed attempt up to MaxDelay.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Clock    clock.Clock
}

// DefaultRetryPolicy is used when the pipeline is built without config.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	Delay:    time.Second,
	MaxDelay: 30 * time.Second,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay * 8
	}
	if p.Clock == nil {
		p.Clock = clock.WallClock
	}
	return p
}

// call runs fn until it succeeds, fails with a non-retryable error, runs out
// of attempts, or ctx is done. The error of the last attempt is returned.
func (p RetryPolicy) call(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	p = p.normalized()

	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			lastErr = fn(ctx)
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return !adapters.IsRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			if attempt < p.Attempts {
				logger.Warn("Upstream call failed, retrying",
					"op", op,
					"attempt", attempt,
					"error", err,
				)
			}
		},
		Attempts:    p.Attempts,
		Delay:       p.Delay,
		MaxDelay:    p.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       p.Clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}
