// Package retry provides an explicit bounded retry loop. Attempt count,
// attempt ceiling and backoff are plain parameters and waiting goes through
// an injected clock, so loops are testable without real timers.
package retry

import (
	"context"
	"errors"
	"time"

	"entrypass/pkg/platform/clock"
)

// ErrExhausted is returned when every attempt ran without completing.
var ErrExhausted = errors.New("retry attempts exhausted")

// Backoff returns the wait before the given attempt (attempt >= 2).
type Backoff func(attempt int) time.Duration

// Fixed waits d between every attempt.
func Fixed(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Exponential doubles base on every attempt, capped at max.
func Exponential(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 2 {
			return base
		}
		d := base
		for i := 2; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return min(d, max)
	}
}

// Loop runs a step up to MaxAttempts times.
type Loop struct {
	MaxAttempts int
	Backoff     Backoff
	Clock       clock.Clock
}

// Step performs one attempt. done=true stops the loop successfully; a
// non-nil error stops it immediately with that error.
type Step func(ctx context.Context, attempt int) (done bool, err error)

// Do runs step until it reports done, fails, the context ends or the
// attempts run out. It returns the number of attempts made.
func (l Loop) Do(ctx context.Context, step Step) (int, error) {
	maxAttempts := l.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	clk := l.Clock
	if clk == nil {
		clk = clock.Real()
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && l.Backoff != nil {
			if wait := l.Backoff(attempt); wait > 0 {
				select {
				case <-ctx.Done():
					return attempt - 1, ctx.Err()
				case <-clk.After(wait):
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		done, err := step(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
	}
	return maxAttempts, ErrExhausted
}
