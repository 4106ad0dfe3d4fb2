package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"entrypass/internal/entry/models"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/clock"
	"entrypass/pkg/platform/kv"
	"entrypass/pkg/platform/sentinel"
)

type EntryStoreSuite struct {
	suite.Suite
	clock *clock.FakeClock
	store *Store
	ctx   context.Context
}

func (s *EntryStoreSuite) SetupTest() {
	s.clock = clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s.store = New(kv.NewInMemoryStore(kv.WithClock(s.clock)))
	s.ctx = context.Background()
}

func TestEntryStoreSuite(t *testing.T) {
	suite.Run(t, new(EntryStoreSuite))
}

func (s *EntryStoreSuite) newInfo() *models.EntryInfo {
	info, err := models.NewEntryInfo(models.EntryInfoKey{
		UserID:        id.UserID(uuid.New()),
		DestinationID: "TH",
		TripID:        uuid.NewString(),
	}, s.clock.Now())
	s.Require().NoError(err)
	return info
}

func (s *EntryStoreSuite) TestEntryInfo() {
	s.Run("create is idempotent on id", func() {
		info := s.newInfo()
		created, err := s.store.CreateEntryInfo(s.ctx, info)
		s.Require().NoError(err)
		s.True(created)

		created, err = s.store.CreateEntryInfo(s.ctx, info)
		s.Require().NoError(err)
		s.False(created)
	})

	s.Run("save then find round-trips status and completion", func() {
		info := s.newInfo()
		info.ApplyCompletion(models.CompletionMetrics{"passport": models.NewCategoryCompletion(2, 2)}, s.clock.Now())
		s.Require().NoError(s.store.SaveEntryInfo(s.ctx, info))

		found, err := s.store.FindEntryInfo(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Equal(models.EntryInfoReady, found.Status)
		s.Equal(2, found.Completion["passport"].Complete)
	})

	s.Run("missing record is ErrNotFound", func() {
		_, err := s.store.FindEntryInfo(s.ctx, id.EntryInfoID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.True(IsNotFound(err))
	})
}

func (s *EntryStoreSuite) TestPackIndex() {
	entryInfoID := id.EntryInfoID(uuid.New())
	first := id.EntryPackID(uuid.New())
	second := id.EntryPackID(uuid.New())

	won, err := s.store.ClaimPackIndex(s.ctx, entryInfoID, first)
	s.Require().NoError(err)
	s.True(won)

	won, err = s.store.ClaimPackIndex(s.ctx, entryInfoID, second)
	s.Require().NoError(err)
	s.False(won)

	bound, err := s.store.PackIDFor(s.ctx, entryInfoID)
	s.Require().NoError(err)
	s.Equal(first, bound)

	pack := models.NewEntryPack(first, entryInfoID, s.clock.Now())
	s.Require().NoError(s.store.SavePack(s.ctx, pack))
	found, err := s.store.FindPackByEntryInfo(s.ctx, entryInfoID)
	s.Require().NoError(err)
	s.Equal(first, found.ID)
	s.Equal(models.PackInProgress, found.Status)
}

func (s *EntryStoreSuite) TestRecentMarker() {
	entryInfoID := id.EntryInfoID(uuid.New())
	marker := models.RecentSubmission{
		EntryInfoID: entryInfoID,
		PackID:      id.EntryPackID(uuid.New()),
		Submission: models.ArrivalCardSubmission{
			ArrCardNo: "TDAC-1", QRURI: "qr", SubmittedAt: s.clock.Now(), SubmissionMethod: models.MethodAPI,
		},
		StagedAt: s.clock.Now(),
	}

	s.Run("take consumes the marker once", func() {
		s.Require().NoError(s.store.StageRecent(s.ctx, marker, 5*time.Minute))

		got, err := s.store.TakeRecent(s.ctx, entryInfoID)
		s.Require().NoError(err)
		s.Equal("TDAC-1", got.Submission.ArrCardNo)

		_, err = s.store.TakeRecent(s.ctx, entryInfoID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("marker lapses after its window", func() {
		s.Require().NoError(s.store.StageRecent(s.ctx, marker, 5*time.Minute))
		s.clock.Advance(5 * time.Minute)

		_, err := s.store.TakeRecent(s.ctx, entryInfoID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
