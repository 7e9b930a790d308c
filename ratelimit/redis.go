package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding-window log shared by every API instance. Each
// key is a sorted set of request timestamps; a request is allowed when
// fewer than Max remain inside Window.
type RedisLimiter struct {
	rdb    redis.Cmdable
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisLimiter)

func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) { l.prefix = strings.Trim(prefix, ":") }
}

func NewRedisLimiter(rdb redis.Cmdable, limit int, window time.Duration, opts ...RedisOption) *RedisLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &RedisLimiter{
		rdb:    rdb,
		max:    limit,
		window: window,
		prefix: "ratelimit:window",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	redisKey := l.prefix + ":" + key
	nowMs := now.UnixMilli()
	cutoff := now.Add(-l.window).UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	var card *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowMs), Member: member})
		card = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("sliding window %s: %w", key, err)
	}

	count := int(card.Val())
	dec := Decision{Limit: l.max}
	if count <= l.max {
		dec.Allowed = true
		dec.Remaining = l.max - count
		return dec, nil
	}

	// Denied requests do not occupy the window.
	if err := l.rdb.ZRem(ctx, redisKey, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("sliding window %s: %w", key, err)
	}

	dec.RetryAfter = time.Second
	oldest, err := l.rdb.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) == 1 {
		freeAt := time.UnixMilli(int64(oldest[0].Score)).Add(l.window)
		if wait := freeAt.Sub(now); wait > dec.RetryAfter {
			dec.RetryAfter = wait
		}
	}
	return dec, nil
}

// RedisStats keeps cumulative totals plus per-minute and per-route hashes.
type RedisStats struct {
	rdb    redis.Cmdable
	prefix string
	// ttl applies to per-minute buckets only; totals never expire.
	ttl time.Duration
	now func() time.Time
}

func NewRedisStats(rdb redis.Cmdable) *RedisStats {
	return &RedisStats{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
}

func (s *RedisStats) minuteKey(t time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, t.UTC().Format("200601021504"))
}

func (s *RedisStats) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := s.minuteKey(at)
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	pipe.Expire(ctx, bucketKey, s.ttl)

	if route := routeField(ev); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+"|"+field, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStats) Snapshot(ctx context.Context) (*Snapshot, error) {
	total, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return nil, err
	}
	routes, err := s.rdb.HGetAll(ctx, s.prefix+":route").Result()
	if err != nil {
		return nil, err
	}

	out := &Snapshot{ByRoute: make(map[string]Counters)}
	out.Total.Allowed, _ = strconv.ParseInt(total["allowed"], 10, 64)
	out.Total.Denied, _ = strconv.ParseInt(total["denied"], 10, 64)

	for k, v := range routes {
		i := strings.LastIndex(k, "|")
		if i < 0 {
			continue
		}
		n, _ := strconv.ParseInt(v, 10, 64)
		c := out.ByRoute[k[:i]]
		switch k[i+1:] {
		case "allowed":
			c.Allowed = n
		case "denied":
			c.Denied = n
		}
		out.ByRoute[k[:i]] = c
	}

	out.ByMinute, err = s.recentMinutes(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStats) recentMinutes(ctx context.Context) (map[string]Counters, error) {
	now := s.now().UTC().Truncate(time.Minute)

	minutes := make([]time.Time, StatsMinutes)
	cmds := make([]*redis.MapStringStringCmd, StatsMinutes)
	pipe := s.rdb.Pipeline()
	for i := range cmds {
		minutes[i] = now.Add(-time.Duration(i) * time.Minute)
		cmds[i] = pipe.HGetAll(ctx, s.minuteKey(minutes[i]))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]Counters)
	for i, cmd := range cmds {
		bucket := cmd.Val()
		if len(bucket) == 0 {
			continue
		}
		var c Counters
		c.Allowed, _ = strconv.ParseInt(bucket["allowed"], 10, 64)
		c.Denied, _ = strconv.ParseInt(bucket["denied"], 10, 64)
		out[minuteLabel(minutes[i])] = c
	}
	return out, nil
}

func routeField(ev Event) string {
	return strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Route))
}
