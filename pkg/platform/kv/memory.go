package kv

import (
	"context"
	"sync"
	"time"

	"entrypass/pkg/platform/clock"
	"entrypass/pkg/platform/sentinel"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryStore is a process-local Store for tests and single-node setups.
type InMemoryStore struct {
	mu    sync.RWMutex
	clock clock.Clock
	data  map[string]entry
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithClock sets the clock used for expiry checks.
func WithClock(c clock.Clock) MemoryOption {
	return func(s *InMemoryStore) { s.clock = c }
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{clock: clock.Real(), data: make(map[string]entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.clock.Now().Add(ttl)
}

func (s *InMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.expired(s.clock.Now()) {
		return "", sentinel.ErrNotFound
	}
	return e.value, nil
}

func (s *InMemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *InMemoryStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data[key]; ok && !e.expired(s.clock.Now()) {
		return false, nil
	}
	s.data[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *InMemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InMemoryStore) Take(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	delete(s.data, key)
	if !ok || e.expired(s.clock.Now()) {
		return "", sentinel.ErrNotFound
	}
	return e.value, nil
}
