package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key. Idle keys are dropped by
// the janitor.
type MemoryLimiter struct {
	mu           sync.Mutex
	entries      map[string]*memoryEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type MemoryOption func(*MemoryLimiter)

func WithIdleTTL(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.cleanupEvery = d }
}

func NewMemoryLimiter(rps float64, burst int, opts ...MemoryOption) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &MemoryLimiter{
		entries:      make(map[string]*memoryEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(l.rps, l.burst)
	l.entries[key] = &memoryEntry{lim: lim, lastSeen: now}
	return lim
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	lim := l.get(key, now)

	dec := Decision{Limit: l.burst}
	if lim.AllowN(now, 1) {
		dec.Allowed = true
		dec.Remaining = int(math.Max(0, math.Floor(lim.TokensAt(now))))
		return dec, nil
	}

	// Ask when the next token lands without keeping the reservation.
	r := lim.ReserveN(now, 1)
	if r.OK() {
		dec.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	if dec.RetryAfter < time.Second {
		dec.RetryAfter = time.Second
	}
	return dec, nil
}

// Len reports how many keys are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Cleanup forgets keys idle for longer than the idle TTL.
func (l *MemoryLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is cancelled.
func (l *MemoryLimiter) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// MemoryStats counts decisions in process. Totals never expire; minute
// buckets older than StatsMinutes are pruned as new ones are written.
type MemoryStats struct {
	mu       sync.Mutex
	total    Counters
	byRoute  map[string]Counters
	byMinute map[time.Time]Counters
	now      func() time.Time
}

func NewMemoryStats() *MemoryStats {
	return &MemoryStats{
		byRoute:  make(map[string]Counters),
		byMinute: make(map[time.Time]Counters),
		now:      time.Now,
	}
}

func (s *MemoryStats) Record(_ context.Context, ev Event) error {
	route := routeField(ev)
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	minute := at.UTC().Truncate(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byRoute[route]
	m := s.byMinute[minute]
	if ev.Allowed {
		s.total.Allowed++
		c.Allowed++
		m.Allowed++
	} else {
		s.total.Denied++
		c.Denied++
		m.Denied++
	}
	if route != "" {
		s.byRoute[route] = c
	}
	s.byMinute[minute] = m
	s.pruneMinutes()
	return nil
}

// pruneMinutes must be called with mu held.
func (s *MemoryStats) pruneMinutes() {
	oldest := s.oldestMinute()
	for minute := range s.byMinute {
		if minute.Before(oldest) {
			delete(s.byMinute, minute)
		}
	}
}

func (s *MemoryStats) oldestMinute() time.Time {
	return s.now().UTC().Truncate(time.Minute).Add(-(StatsMinutes - 1) * time.Minute)
}

func (s *MemoryStats) Snapshot(_ context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &Snapshot{
		Total:    s.total,
		ByRoute:  make(map[string]Counters, len(s.byRoute)),
		ByMinute: make(map[string]Counters, len(s.byMinute)),
	}
	for k, v := range s.byRoute {
		out.ByRoute[k] = v
	}
	oldest := s.oldestMinute()
	for minute, v := range s.byMinute {
		if !minute.Before(oldest) {
			out.ByMinute[minuteLabel(minute)] = v
		}
	}
	return out, nil
}
