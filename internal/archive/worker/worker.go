// Package worker runs snapshot retention and orphan cleanup in the
// background.
package worker

import (
	"context"
	"log/slog"
	"time"

	"entrypass/internal/archive/models"
	"entrypass/pkg/platform/clock"
	"entrypass/pkg/requestcontext"
)

// Cleaner is the slice of the archiver the worker drives.
type Cleaner interface {
	CleanupExpired(ctx context.Context, policy models.RetentionPolicy) (models.CleanupResult, error)
	CleanupOrphans(ctx context.Context) (models.OrphanResult, error)
}

type Worker struct {
	cleaner  Cleaner
	policy   models.RetentionPolicy
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

type Option func(*Worker)

func WithClock(c clock.Clock) Option {
	return func(w *Worker) { w.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func New(cleaner Cleaner, policy models.RetentionPolicy, interval time.Duration, opts ...Option) *Worker {
	w := &Worker{
		cleaner:  cleaner,
		policy:   policy,
		interval: interval,
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs a pass immediately and then once per interval until ctx is
// cancelled. A failed pass is logged; the loop keeps going.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.policy.Validate(); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "snapshot cleanup worker started", "interval", w.interval)
	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "snapshot cleanup worker stopped")
			return ctx.Err()
		case <-w.clock.After(w.interval):
		}
	}
}

// RunOnce performs one retention pass followed by one orphan pass. The
// orphan pass runs even when retention fails.
func (w *Worker) RunOnce(ctx context.Context) {
	ctx = requestcontext.WithTime(ctx, w.clock.Now())

	res, err := w.cleaner.CleanupExpired(ctx, w.policy)
	if err != nil {
		w.logger.ErrorContext(ctx, "snapshot retention pass failed", "error", err)
	} else if res.DeletedCount > 0 {
		w.logger.InfoContext(ctx, "expired snapshots deleted", "deleted", res.DeletedCount, "freed_bytes", res.FreedBytes)
	}

	orphans, err := w.cleaner.CleanupOrphans(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "orphan snapshot pass failed", "error", err)
		return
	}
	if orphans.ReclaimedCount > 0 {
		w.logger.InfoContext(ctx, "orphan snapshot dirs reclaimed", "reclaimed", orphans.ReclaimedCount, "freed_bytes", orphans.FreedBytes)
	}
}
