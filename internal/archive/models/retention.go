package models

import (
	"sort"
	"time"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

const day = 24 * time.Hour

// RetentionPolicy selects snapshots for deletion. A zero MaxAgeDays or
// MaxCount disables that pass.
type RetentionPolicy struct {
	MaxAgeDays    int  `json:"maxAgeDays"`
	MaxCount      int  `json:"maxCount"`
	KeepCompleted bool `json:"keepCompleted"`
}

func (p RetentionPolicy) Validate() error {
	if p.MaxAgeDays < 0 || p.MaxCount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "maxAgeDays and maxCount must not be negative")
	}
	return nil
}

func (p RetentionPolicy) protected(s Summary) bool {
	return p.KeepCompleted && s.Status == SnapshotCompleted
}

// Candidates returns the ids to delete, oldest first. The age pass removes
// unprotected snapshots older than MaxAgeDays; the count pass then trims
// the oldest unprotected survivors until at most MaxCount remain or only
// protected ones are left.
func (p RetentionPolicy) Candidates(snapshots []Summary, now time.Time) []id.SnapshotID {
	sorted := make([]Summary, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	var (
		out       []id.SnapshotID
		survivors []Summary
	)
	maxAge := time.Duration(p.MaxAgeDays) * day
	for _, s := range sorted {
		if p.MaxAgeDays > 0 && now.Sub(s.CreatedAt) > maxAge && !p.protected(s) {
			out = append(out, s.ID)
			continue
		}
		survivors = append(survivors, s)
	}

	if p.MaxCount > 0 {
		excess := len(survivors) - p.MaxCount
		for _, s := range survivors {
			if excess <= 0 {
				break
			}
			if p.protected(s) {
				continue
			}
			out = append(out, s.ID)
			excess--
		}
	}
	return out
}
