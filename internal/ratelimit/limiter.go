// Package ratelimit throttles portal-facing operations per traveler with a
// sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"entrypass/pkg/platform/clock"
)

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// SlidingWindow keeps the timestamps of recent hits per key. It is local to
// the process.
type SlidingWindow struct {
	clock  clock.Clock
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string][]time.Time
}

type Option func(*SlidingWindow)

func WithClock(c clock.Clock) Option {
	return func(s *SlidingWindow) { s.clock = c }
}

func NewSlidingWindow(limit int, window time.Duration, opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		clock:   clock.Real(),
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records a hit for key when the window has room.
func (s *SlidingWindow) Allow(_ context.Context, key string) Result {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	hits := prune(s.buckets[key], now.Add(-s.window))
	if len(hits) >= s.limit {
		s.buckets[key] = hits
		reset := hits[0].Add(s.window)
		return Result{Limit: s.limit, ResetAt: reset, RetryAfter: reset.Sub(now)}
	}
	hits = append(hits, now)
	s.buckets[key] = hits
	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - len(hits),
		ResetAt:   hits[0].Add(s.window),
	}
}

// Sweep drops keys with no hits left in the window.
func (s *SlidingWindow) Sweep() {
	cutoff := s.clock.Now().Add(-s.window)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, hits := range s.buckets {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(s.buckets, key)
		} else {
			s.buckets[key] = hits
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	return hits[i:]
}
