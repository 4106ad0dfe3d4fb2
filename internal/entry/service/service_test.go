package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"entrypass/internal/entry/models"
	"entrypass/internal/entry/store"
	"entrypass/internal/submission/failure"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/audit/publisher"
	auditmemory "entrypass/pkg/platform/audit/store/memory"
	"entrypass/pkg/platform/clock"
	"entrypass/pkg/platform/kv"
	"entrypass/pkg/requestcontext"
)

type EntryServiceSuite struct {
	suite.Suite
	clock   *clock.FakeClock
	audit   *auditmemory.InMemoryStore
	service *Service
	ctx     context.Context
}

func TestEntryServiceSuite(t *testing.T) {
	suite.Run(t, new(EntryServiceSuite))
}

func (s *EntryServiceSuite) SetupTest() {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.clock = clock.Fake(start)
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(
		store.New(kv.NewInMemoryStore(kv.WithClock(s.clock))),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithMarkerTTL(5*time.Minute),
	)
	s.ctx = requestcontext.WithTime(context.Background(), start)
}

func (s *EntryServiceSuite) readyEntry() *models.EntryInfo {
	info, err := s.service.EnsureEntryInfo(s.ctx, models.EntryInfoKey{
		UserID:        id.UserID(uuid.New()),
		DestinationID: "TH",
		TripID:        uuid.NewString(),
	})
	s.Require().NoError(err)
	info, moved, err := s.service.UpdateCompletion(s.ctx, info.ID, models.CompletionMetrics{
		"passport": models.NewCategoryCompletion(7, 7),
		"travel":   models.NewCategoryCompletion(9, 9),
	})
	s.Require().NoError(err)
	s.Require().Equal(models.EntryInfoReady, moved)
	return info
}

func (s *EntryServiceSuite) submission(arrCardNo string) models.ArrivalCardSubmission {
	return models.ArrivalCardSubmission{
		ArrCardNo:   arrCardNo,
		QRURI:       "data:image/png;base64,QR" + arrCardNo,
		PDFPath:     "cards/" + arrCardNo + ".pdf",
		SubmittedAt: s.clock.Now(),
	}
}

// ===========================================
// EnsureEntryInfo / UpdateCompletion
// ===========================================

func (s *EntryServiceSuite) TestEnsureEntryInfo() {
	key := models.EntryInfoKey{UserID: id.UserID(uuid.New()), DestinationID: "TH", TripID: "bkk-2026"}

	s.Run("is idempotent for the same key", func() {
		first, err := s.service.EnsureEntryInfo(s.ctx, key)
		s.Require().NoError(err)
		second, err := s.service.EnsureEntryInfo(s.ctx, key)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
		s.Equal(models.EntryInfoIncomplete, second.Status)
	})

	s.Run("rejects a key without destination", func() {
		_, err := s.service.EnsureEntryInfo(s.ctx, models.EntryInfoKey{UserID: key.UserID})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *EntryServiceSuite) TestUpdateCompletion_MovesBackToIncomplete() {
	info := s.readyEntry()

	updated, moved, err := s.service.UpdateCompletion(s.ctx, info.ID, models.CompletionMetrics{
		"passport": models.NewCategoryCompletion(6, 7),
	})
	s.Require().NoError(err)
	s.Equal(models.EntryInfoIncomplete, moved)
	s.Equal(models.EntryInfoIncomplete, updated.Status)

	events, err := s.audit.ListBySubject(s.ctx, info.ID.String())
	s.Require().NoError(err)
	s.Len(events, 2, "ready then incomplete")
}

// ===========================================
// FindOrCreate
// ===========================================

func (s *EntryServiceSuite) TestFindOrCreate() {
	info := s.readyEntry()

	s.Run("returns the same pack on repeated calls", func() {
		first, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)
		second, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
		s.Equal(models.PackInProgress, second.Status)
		s.Equal(models.DisplayReady, second.DisplayStatus)
	})

	s.Run("concurrent callers converge on one pack", func() {
		other := s.readyEntry()
		var wg sync.WaitGroup
		ids := make([]id.EntryPackID, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pack, err := s.service.FindOrCreate(s.ctx, other.ID)
				s.NoError(err)
				if pack != nil {
					ids[i] = pack.ID
				}
			}(i)
		}
		wg.Wait()
		for _, got := range ids {
			s.Equal(ids[0], got)
		}
	})

	s.Run("unknown entry info is not found", func() {
		_, err := s.service.FindOrCreate(s.ctx, id.EntryInfoID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// ===========================================
// RecordSubmissionResult
// ===========================================

func (s *EntryServiceSuite) TestRecordSubmissionResult() {
	s.Run("records a confirmed submission and moves both records", func() {
		info := s.readyEntry()
		pack, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)

		pack, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, s.submission("TDAC-1"), models.MethodHybrid)
		s.Require().NoError(err)
		s.Equal(models.PackSubmitted, pack.Status)
		s.Require().Len(pack.SubmissionHistory, 1)
		s.Equal(1, pack.SubmissionHistory[0].AttemptNumber)
		s.Equal(models.MethodHybrid, pack.TDACSubmission.SubmissionMethod)
		s.Equal(models.DisplaySubmitted, pack.DisplayStatus)

		reloaded, err := s.service.GetEntryInfo(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Equal(models.EntryInfoSubmitted, reloaded.Status)

		events, err := s.audit.ListBySubject(s.ctx, pack.ID.String())
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(string(audit.EventSubmissionRecorded), events[0].Action)
	})

	s.Run("rejects an incomplete submission without changing state", func() {
		info := s.readyEntry()
		pack, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)

		partial := s.submission("TDAC-2")
		partial.QRURI = ""
		_, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, partial, models.MethodAPI)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		unchanged, err := s.service.GetPack(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Equal(models.PackInProgress, unchanged.Status)
		s.Empty(unchanged.SubmissionHistory)
	})

	s.Run("history grows by one per submission with increasing attempts", func() {
		info := s.readyEntry()
		pack, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)

		for i, no := range []string{"A-1", "A-2", "A-3"} {
			sub := s.submission(no)
			sub.SubmittedAt = sub.SubmittedAt.Add(time.Duration(i) * time.Minute)
			pack, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, sub, models.MethodAPI)
			s.Require().NoError(err)
		}
		s.Require().Len(pack.SubmissionHistory, 3)
		for i := 1; i < len(pack.SubmissionHistory); i++ {
			s.Greater(pack.SubmissionHistory[i].AttemptNumber, pack.SubmissionHistory[i-1].AttemptNumber)
		}
		s.Equal("A-3", pack.TDACSubmission.ArrCardNo)
	})

	s.Run("replaying the same submission does not duplicate history", func() {
		info := s.readyEntry()
		pack, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)

		sub := s.submission("R-1")
		_, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, sub, models.MethodAPI)
		s.Require().NoError(err)
		pack, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, sub, models.MethodAPI)
		s.Require().NoError(err)
		s.Len(pack.SubmissionHistory, 1)
	})

	s.Run("incomplete entry info cannot be submitted", func() {
		info, err := s.service.EnsureEntryInfo(s.ctx, models.EntryInfoKey{
			UserID: id.UserID(uuid.New()), DestinationID: "TH", TripID: "x",
		})
		s.Require().NoError(err)
		pack, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)

		_, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, s.submission("X-1"), models.MethodAPI)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *EntryServiceSuite) TestRecordSubmissionFailure() {
	info := s.readyEntry()
	pack, err := s.service.FindOrCreate(s.ctx, info.ID)
	s.Require().NoError(err)

	pack, err = s.service.RecordSubmissionFailure(s.ctx, pack.ID, models.MethodHybrid, &failure.ErrorResult{
		ErrorID:     "err-1",
		Category:    failure.CategoryTimeout,
		UserMessage: "The portal took too long to respond.",
	})
	s.Require().NoError(err)
	s.Equal(models.PackInProgress, pack.Status)
	s.Require().Len(pack.SubmissionHistory, 1)
	s.Equal(models.AttemptFailed, pack.SubmissionHistory[0].Status)
	s.Equal("timeout", pack.SubmissionHistory[0].Error.Category)

	pack, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, s.submission("F-1"), models.MethodWebView)
	s.Require().NoError(err)
	s.Equal(2, pack.SubmissionHistory[1].AttemptNumber)
}

// ===========================================
// Recent-submission marker
// ===========================================

func (s *EntryServiceSuite) TestFinalizeRecentSubmission() {
	s.Run("finalizes exactly once", func() {
		info := s.readyEntry()
		sub := s.submission("M-1")
		sub.SubmissionMethod = models.MethodHybrid
		s.Require().NoError(s.service.StageSubmission(s.ctx, info.ID, sub))

		pack, ok, err := s.service.FinalizeRecentSubmission(s.ctx, info.ID)
		s.Require().NoError(err)
		s.True(ok)
		s.Len(pack.SubmissionHistory, 1)

		_, ok, err = s.service.FinalizeRecentSubmission(s.ctx, info.ID)
		s.Require().NoError(err)
		s.False(ok, "second detection pass is a no-op")

		current, err := s.service.GetPack(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Len(current.SubmissionHistory, 1)
	})

	s.Run("concurrent detection passes record once", func() {
		info := s.readyEntry()
		sub := s.submission("M-2")
		sub.SubmissionMethod = models.MethodAPI
		s.Require().NoError(s.service.StageSubmission(s.ctx, info.ID, sub))

		var wg sync.WaitGroup
		results := make(chan bool, 4)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := s.service.FinalizeRecentSubmission(s.ctx, info.ID)
				s.NoError(err)
				results <- ok
			}()
		}
		wg.Wait()
		close(results)
		finalized := 0
		for ok := range results {
			if ok {
				finalized++
			}
		}
		s.Equal(1, finalized)
	})

	s.Run("expired marker is ignored", func() {
		info := s.readyEntry()
		sub := s.submission("M-3")
		sub.SubmissionMethod = models.MethodAPI
		s.Require().NoError(s.service.StageSubmission(s.ctx, info.ID, sub))
		s.clock.Advance(6 * time.Minute)

		_, ok, err := s.service.FinalizeRecentSubmission(s.ctx, info.ID)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("staging rejects an incomplete confirmation", func() {
		info := s.readyEntry()
		err := s.service.StageSubmission(s.ctx, info.ID, models.ArrivalCardSubmission{ArrCardNo: "M-4"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// ===========================================
// Transitions
// ===========================================

func (s *EntryServiceSuite) submitted() (*models.EntryInfo, *models.EntryPack) {
	info := s.readyEntry()
	pack, err := s.service.FindOrCreate(s.ctx, info.ID)
	s.Require().NoError(err)
	sub := s.submission("S-" + uuid.NewString()[:8])
	pack, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, sub, models.MethodAPI)
	s.Require().NoError(err)
	return info, pack
}

func (s *EntryServiceSuite) TestTransitions() {
	s.Run("superseded then resubmitted", func() {
		info, _ := s.submitted()
		pack, err := s.service.MarkSuperseded(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Equal(models.PackSuperseded, pack.Status)
		s.Equal(models.DisplayNeedsResubmission, pack.DisplayStatus)

		sub := s.submission("S-again")
		sub.SubmittedAt = sub.SubmittedAt.Add(time.Hour)
		pack, err = s.service.RecordSubmissionResult(s.ctx, pack.ID, sub, models.MethodHybrid)
		s.Require().NoError(err)
		s.Equal(models.PackSubmitted, pack.Status)
		s.Len(pack.SubmissionHistory, 2)
	})

	s.Run("left completes the pack and archive follows", func() {
		info, _ := s.submitted()
		pack, err := s.service.MarkLeft(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Equal(models.PackCompleted, pack.Status)

		archivedInfo, archivedPack, err := s.service.Archive(s.ctx, info.ID, "trip finished")
		s.Require().NoError(err)
		s.Equal(models.EntryInfoArchived, archivedInfo.Status)
		s.Equal(models.PackArchived, archivedPack.Status)
		s.NotNil(archivedPack.ArchivedAt)
	})

	s.Run("ready entry cannot be superseded", func() {
		info := s.readyEntry()
		_, err := s.service.MarkSuperseded(s.ctx, info.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("expire only after the deadline and only when unsubmitted", func() {
		info := s.readyEntry()
		_, err := s.service.FindOrCreate(s.ctx, info.ID)
		s.Require().NoError(err)

		deadline := s.clock.Now().Add(time.Hour)
		changed, err := s.service.ExpireIfOverdue(s.ctx, info.ID, deadline)
		s.Require().NoError(err)
		s.False(changed)

		later := requestcontext.WithTime(s.ctx, deadline.Add(time.Second))
		changed, err = s.service.ExpireIfOverdue(later, info.ID, deadline)
		s.Require().NoError(err)
		s.True(changed)

		pack, err := s.service.GetPack(s.ctx, info.ID)
		s.Require().NoError(err)
		s.Equal(models.PackExpired, pack.Status)

		submittedInfo, _ := s.submitted()
		changed, err = s.service.ExpireIfOverdue(later, submittedInfo.ID, deadline)
		s.Require().NoError(err)
		s.False(changed)
	})

	s.Run("archive leaves an expired entry expired", func() {
		info := s.readyEntry()
		deadline := s.clock.Now()
		_, err := s.service.ExpireIfOverdue(s.ctx, info.ID, deadline)
		s.Require().NoError(err)

		archived, pack, err := s.service.Archive(s.ctx, info.ID, "cleanup")
		s.Require().NoError(err)
		s.Equal(models.EntryInfoExpired, archived.Status)
		s.Nil(pack)
	})
}
