package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"entrypass/internal/archive/models"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func newSnapshot(entryInfoID id.EntryInfoID, createdAt time.Time) *models.Snapshot {
	return &models.Snapshot{
		ID:          id.SnapshotID(uuid.New()),
		EntryInfoID: entryInfoID,
		Status:      models.SnapshotCompleted,
		CreatedAt:   createdAt,
		Version:     models.SchemaVersion,
		Funds:       []traveler.FundItem{{ID: "fund-1", Amount: 100}},
		PhotoManifest: []models.PhotoManifestItem{
			{FundItemID: "fund-1", OriginalPath: "photos/fund-1.jpg", Status: models.PhotoSuccess, FileSize: 42},
		},
	}
}

func (s *InMemoryStoreSuite) TestCreateAndGet() {
	snap := newSnapshot(id.EntryInfoID(uuid.New()), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, snap))

	got, err := s.store.Get(s.ctx, snap.ID)
	s.Require().NoError(err)
	s.Equal(snap.ID, got.ID)
	s.Len(got.PhotoManifest, 1)

	s.Run("records are isolated from callers", func() {
		got.PhotoManifest[0].Status = models.PhotoFailed
		again, err := s.store.Get(s.ctx, snap.ID)
		s.Require().NoError(err)
		s.Equal(models.PhotoSuccess, again.PhotoManifest[0].Status)
	})

	s.Run("duplicate create conflicts", func() {
		s.ErrorIs(s.store.Create(s.ctx, snap), sentinel.ErrConflict)
	})
}

func (s *InMemoryStoreSuite) TestListOrdersByCreation() {
	entry := id.EntryInfoID(uuid.New())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := newSnapshot(entry, base.Add(time.Hour))
	earlier := newSnapshot(entry, base)
	other := newSnapshot(id.EntryInfoID(uuid.New()), base.Add(2*time.Hour))
	for _, snap := range []*models.Snapshot{later, earlier, other} {
		s.Require().NoError(s.store.Create(s.ctx, snap))
	}

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(earlier.ID, all[0].ID)
	s.Equal(other.ID, all[2].ID)

	mine, err := s.store.ListByEntryInfo(s.ctx, entry)
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(earlier.ID, mine[0].ID)
}

func (s *InMemoryStoreSuite) TestDelete() {
	snap := newSnapshot(id.EntryInfoID(uuid.New()), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, snap))

	s.Require().NoError(s.store.Delete(s.ctx, snap.ID))
	_, err := s.store.Get(s.ctx, snap.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, snap.ID), sentinel.ErrNotFound)
}
