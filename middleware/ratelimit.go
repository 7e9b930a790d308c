package middleware

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"parliament-api/ratelimit"

	"github.com/gofiber/fiber/v2"
)

type RateLimitOptions struct {
	Limiter ratelimit.Limiter
	// Stats is optional.
	Stats ratelimit.Stats
	// Group scopes the quota to an endpoint group ("ip:{ip}:{group}").
	// Empty means the global per-IP quota.
	Group string
	// Skip bypasses the limiter, e.g. for health checks.
	Skip   func(c *fiber.Ctx) bool
	Logger *slog.Logger
}

// RateLimit rejects callers over quota with 429 before any handler runs.
// Limiter errors let the request through.
func RateLimit(opts RateLimitOptions) fiber.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *fiber.Ctx) error {
		if opts.Limiter == nil || (opts.Skip != nil && opts.Skip(c)) {
			return c.Next()
		}

		key := "ip:" + c.IP()
		route := "global"
		if opts.Group != "" {
			key += ":" + opts.Group
			route = opts.Group
		}

		// A slow limiter backend counts as unavailable.
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		dec, err := opts.Limiter.Allow(ctx, key)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request",
				"key", key,
				"error", err,
			)
			return c.Next()
		}

		if opts.Stats != nil {
			ev := ratelimit.Event{Key: key, Allowed: dec.Allowed, Method: c.Method(), Route: route, At: time.Now()}
			if err := opts.Stats.Record(ctx, ev); err != nil {
				logger.Debug("Failed to record rate limit stats", "error", err)
			}
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

		if !dec.Allowed {
			retryAfter := int(math.Ceil(dec.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
		}

		return c.Next()
	}
}
