package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store is an in-memory key/value cache whose entries expire after a fixed TTL.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

func New[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value and false when the key is missing or expired.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero V
	e, exists := s.entries[key]
	if !exists {
		return zero, false
	}

	if s.now().After(e.expiresAt) {
		return zero, false
	}

	return e.value, true
}

func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry[V]{value: value, expiresAt: s.now().Add(s.ttl)}
}

// Len counts stored entries, including expired ones not yet cleaned up.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// CleanupExpired drops expired entries and returns how many were removed.
func (s *Store[V]) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine runs CleanupExpired every interval until ctx is done.
func (s *Store[V]) StartCleanupRoutine(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired()
			}
		}
	}()
}
