// Package ratelimit decides whether a caller may make another request. It
// knows nothing about HTTP; the fiber middleware turns decisions into
// headers and 429 responses.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides per key. Implementations may be in-memory token buckets
// or a sliding window shared through Redis.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type Decision struct {
	Allowed bool
	// Limit is the burst (token bucket) or the per-window maximum.
	Limit     int
	Remaining int
	// RetryAfter is how long a denied caller should wait. Zero when allowed.
	RetryAfter time.Duration
}

// Event is one limiter decision, recorded for stats.
type Event struct {
	Key     string
	Allowed bool
	Method  string
	Route   string
	At      time.Time
}

// Counters is a pair of allowed/denied totals.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// StatsMinutes is how many recent per-minute buckets a Snapshot reports.
const StatsMinutes = 60

// Snapshot is a read-out of recorded stats. ByMinute holds the non-empty
// buckets of the last StatsMinutes minutes, keyed by minuteLabel.
type Snapshot struct {
	Total    Counters            `json:"total"`
	ByRoute  map[string]Counters `json:"by_route"`
	ByMinute map[string]Counters `json:"by_minute"`
}

// minuteLabel formats the UTC minute t falls in, e.g. "2024-01-01T12:30Z".
func minuteLabel(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format("2006-01-02T15:04Z")
}

// Stats records decisions best-effort. A failing Record never blocks a request.
type Stats interface {
	Record(ctx context.Context, ev Event) error
	Snapshot(ctx context.Context) (*Snapshot, error)
}
