// Package store persists snapshot records. Records are written once and
// only ever deleted; there is no update path.
package store

import (
	"context"
	"sort"
	"sync"

	"entrypass/internal/archive/models"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/sentinel"
)

// InMemoryStore keeps snapshots in a map. Slices are copied on the way in
// and out so a caller's edits never reach a stored record.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[id.SnapshotID]models.Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[id.SnapshotID]models.Snapshot)}
}

func (s *InMemoryStore) Create(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snap.ID]; ok {
		return sentinel.ErrConflict
	}
	s.snapshots[snap.ID] = clone(*snap)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, snapshotID id.SnapshotID) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[snapshotID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(snap)
	return &out, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Summary, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListByEntryInfo(_ context.Context, entryInfoID id.EntryInfoID) ([]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Summary
	for _, snap := range s.snapshots {
		if snap.EntryInfoID == entryInfoID {
			out = append(out, snap.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, snapshotID id.SnapshotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshotID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.snapshots, snapshotID)
	return nil
}

func clone(s models.Snapshot) models.Snapshot {
	s.PhotoManifest = append([]models.PhotoManifestItem(nil), s.PhotoManifest...)
	s.Funds = append([]traveler.FundItem(nil), s.Funds...)
	return s
}
