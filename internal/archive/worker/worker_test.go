package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/archive/models"
	"entrypass/pkg/platform/clock"
	"entrypass/pkg/requestcontext"
	"entrypass/pkg/testutil"
)

type recordingCleaner struct {
	mu         sync.Mutex
	policies   []models.RetentionPolicy
	orphanRuns int
	expireErr  error
	passes     chan time.Time
}

func newRecordingCleaner() *recordingCleaner {
	return &recordingCleaner{passes: make(chan time.Time, 8)}
}

func (c *recordingCleaner) CleanupExpired(ctx context.Context, policy models.RetentionPolicy) (models.CleanupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies = append(c.policies, policy)
	return models.CleanupResult{DeletedCount: 1, FreedBytes: 10}, c.expireErr
}

func (c *recordingCleaner) CleanupOrphans(ctx context.Context) (models.OrphanResult, error) {
	c.mu.Lock()
	c.orphanRuns++
	c.mu.Unlock()
	c.passes <- requestcontext.Now(ctx)
	return models.OrphanResult{}, nil
}

func TestWorker_RunsOnInterval(t *testing.T) {
	start := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	fake := clock.Fake(start)
	cleaner := newRecordingCleaner()
	policy := models.RetentionPolicy{MaxAgeDays: 90, KeepCompleted: true}
	w := New(cleaner, policy, time.Hour, WithClock(fake), WithLogger(testutil.DiscardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	assert.Equal(t, start, <-cleaner.passes, "first pass runs immediately")

	fake.BlockUntil(1)
	fake.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), <-cleaner.passes)

	fake.BlockUntil(1)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	assert.Equal(t, []models.RetentionPolicy{policy, policy}, cleaner.policies)
	assert.Equal(t, 2, cleaner.orphanRuns)
}

func TestWorker_RetentionFailureStillRunsOrphanPass(t *testing.T) {
	cleaner := newRecordingCleaner()
	cleaner.expireErr = errors.New("postgres down")
	w := New(cleaner, models.RetentionPolicy{}, time.Hour, WithLogger(testutil.DiscardLogger()))

	w.RunOnce(context.Background())

	assert.Equal(t, 1, cleaner.orphanRuns)
}

func TestWorker_RejectsInvalidPolicy(t *testing.T) {
	cleaner := newRecordingCleaner()
	w := New(cleaner, models.RetentionPolicy{MaxCount: -1}, time.Hour, WithLogger(testutil.DiscardLogger()))

	err := w.Start(context.Background())

	require.Error(t, err)
	assert.Zero(t, cleaner.orphanRuns)
}
