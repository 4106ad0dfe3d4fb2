package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/pkg/platform/clock"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestLoop_StopsWhenDone(t *testing.T) {
	clk := clock.Fake(epoch, clock.AutoAdvance())
	loop := Loop{MaxAttempts: 5, Backoff: Fixed(time.Second), Clock: clk}

	attempts, err := loop.Do(context.Background(), func(_ context.Context, attempt int) (bool, error) {
		return attempt == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, epoch.Add(2*time.Second), clk.Now(), "two waits between three attempts")
}

func TestLoop_Exhausted(t *testing.T) {
	clk := clock.Fake(epoch, clock.AutoAdvance())
	loop := Loop{MaxAttempts: 15, Backoff: Fixed(200 * time.Millisecond), Clock: clk}

	attempts, err := loop.Do(context.Background(), func(context.Context, int) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 15, attempts)
	assert.Equal(t, epoch.Add(14*200*time.Millisecond), clk.Now())
}

func TestLoop_StepErrorStopsImmediately(t *testing.T) {
	boom := errors.New("boom")
	loop := Loop{MaxAttempts: 4, Clock: clock.Fake(epoch, clock.AutoAdvance())}

	attempts, err := loop.Do(context.Background(), func(context.Context, int) (bool, error) {
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestLoop_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := Loop{MaxAttempts: 4, Backoff: Fixed(time.Second), Clock: clock.Fake(epoch, clock.AutoAdvance())}

	attempts, err := loop.Do(ctx, func(context.Context, int) (bool, error) {
		cancel()
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestExponential(t *testing.T) {
	b := Exponential(2*time.Second, 30*time.Second)
	assert.Equal(t, 2*time.Second, b(1))
	assert.Equal(t, 2*time.Second, b(2))
	assert.Equal(t, 4*time.Second, b(3))
	assert.Equal(t, 8*time.Second, b(4))
	assert.Equal(t, 30*time.Second, b(10))
}
