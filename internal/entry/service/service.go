package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"entrypass/internal/entry/models"
	"entrypass/internal/submission/failure"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/sentinel"
	"entrypass/pkg/requestcontext"
)

const defaultMarkerTTL = 5 * time.Minute

type Store interface {
	FindEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error)
	CreateEntryInfo(ctx context.Context, info *models.EntryInfo) (bool, error)
	SaveEntryInfo(ctx context.Context, info *models.EntryInfo) error
	FindPack(ctx context.Context, packID id.EntryPackID) (*models.EntryPack, error)
	FindPackByEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error)
	ClaimPackIndex(ctx context.Context, entryInfoID id.EntryInfoID, packID id.EntryPackID) (bool, error)
	SavePack(ctx context.Context, pack *models.EntryPack) error
	DeletePack(ctx context.Context, packID id.EntryPackID) error
	StageRecent(ctx context.Context, marker models.RecentSubmission, ttl time.Duration) error
	TakeRecent(ctx context.Context, entryInfoID id.EntryInfoID) (models.RecentSubmission, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns EntryInfo and EntryPack state. Every mutation runs under a
// single writer lock so history appends and the status change they cause
// are applied together; uniqueness across processes relies on the store's
// SetIfAbsent claims.
type Service struct {
	store          Store
	mu             sync.Mutex
	markerTTL      time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithMarkerTTL sets how long a staged submission stays detectable.
func WithMarkerTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.markerTTL = ttl
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, markerTTL: defaultMarkerTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureEntryInfo returns the record for key, creating it on first use. The
// id is derived from the key, so concurrent callers converge on one record.
func (s *Service) EnsureEntryInfo(ctx context.Context, key models.EntryInfoKey) (*models.EntryInfo, error) {
	info, err := models.NewEntryInfo(key, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	created, err := s.store.CreateEntryInfo(ctx, info)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create entry info")
	}
	if !created {
		return s.GetEntryInfo(ctx, info.ID)
	}
	s.logInfo(ctx, "entry info created", "entry_info_id", info.ID, "destination_id", info.DestinationID)
	return info, nil
}

func (s *Service) GetEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error) {
	info, err := s.store.FindEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, translate(err, "entry info")
	}
	return info, nil
}

// GetPack returns the pack bound to entryInfoID without creating one.
func (s *Service) GetPack(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error) {
	pack, err := s.store.FindPackByEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, translate(err, "entry pack")
	}
	return pack, nil
}

// UpdateCompletion stores fresh completion metrics and applies the
// incomplete/ready transition they imply. The returned status is the one
// moved to, or "" when unchanged.
func (s *Service) UpdateCompletion(ctx context.Context, entryInfoID id.EntryInfoID, metrics models.CompletionMetrics) (*models.EntryInfo, models.EntryInfoStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, "", err
	}
	from := info.Status
	moved := info.ApplyCompletion(metrics, requestcontext.Now(ctx))
	if err := s.store.SaveEntryInfo(ctx, info); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save entry info")
	}
	if moved != "" {
		s.emitInfoStatus(ctx, info, from, "completion")
		s.refreshDisplay(ctx, info)
	}
	return info, moved, nil
}

// FindOrCreate returns the pack for entryInfoID, creating an in_progress
// pack when none exists. Repeated and concurrent calls return the same pack.
func (s *Service) FindOrCreate(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOrCreate(ctx, entryInfoID)
}

func (s *Service) findOrCreate(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error) {
	pack, err := s.store.FindPackByEntryInfo(ctx, entryInfoID)
	if err == nil {
		return pack, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entry pack")
	}

	info, err := s.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	pack = models.NewEntryPack(id.EntryPackID(uuid.New()), entryInfoID, now)
	pack.DisplayStatus = models.DisplayStatus(pack.Status, info.Status)
	// The record is written before the index claim so a winning claim never
	// points at a missing pack.
	if err := s.store.SavePack(ctx, pack); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save entry pack")
	}
	won, err := s.store.ClaimPackIndex(ctx, entryInfoID, pack.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim entry pack index")
	}
	if !won {
		if err := s.store.DeletePack(ctx, pack.ID); err != nil {
			s.logWarn(ctx, "failed to remove losing entry pack", "pack_id", pack.ID, "error", err)
		}
		winner, err := s.store.FindPackByEntryInfo(ctx, entryInfoID)
		if err != nil {
			return nil, translate(err, "entry pack")
		}
		return winner, nil
	}
	s.logInfo(ctx, "entry pack created", "entry_info_id", entryInfoID, "pack_id", pack.ID)
	return pack, nil
}

// RecordSubmissionResult accepts a confirmed submission: it appends the next
// history item, makes sub the current confirmation and moves both records to
// submitted. An incomplete sub is rejected with a validation error and
// nothing changes. Recording the same (arrCardNo, submittedAt) again is a
// no-op that returns the current pack.
func (s *Service) RecordSubmissionResult(ctx context.Context, packID id.EntryPackID, sub models.ArrivalCardSubmission, method models.SubmissionMethod) (*models.EntryPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordSubmission(ctx, packID, sub, method)
}

func (s *Service) recordSubmission(ctx context.Context, packID id.EntryPackID, sub models.ArrivalCardSubmission, method models.SubmissionMethod) (*models.EntryPack, error) {
	if method != "" {
		sub.SubmissionMethod = method
	}
	if sub.Status == "" {
		sub.Status = models.AttemptSuccess
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	pack, err := s.store.FindPack(ctx, packID)
	if err != nil {
		return nil, translate(err, "entry pack")
	}
	info, err := s.GetEntryInfo(ctx, pack.EntryInfoID)
	if err != nil {
		return nil, err
	}

	if pack.HasRecorded(sub) {
		// A crash between the pack and entry info writes leaves the
		// entry info behind; bring it forward on replay.
		if info.Status != models.EntryInfoSubmitted && info.CanTransitionTo(models.EntryInfoSubmitted) == nil {
			if err := s.moveInfo(ctx, info, models.EntryInfoSubmitted, "submission replay"); err != nil {
				return nil, err
			}
		}
		return pack, nil
	}

	if err := pack.CanRecordSubmission(sub); err != nil {
		return nil, err
	}
	if err := info.CanTransitionTo(models.EntryInfoSubmitted); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	packFrom := pack.Status
	item := pack.ApplySubmission(sub, now)
	pack.DisplayStatus = models.DisplayStatus(pack.Status, models.EntryInfoSubmitted)
	if err := s.store.SavePack(ctx, pack); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save entry pack")
	}
	if err := s.moveInfo(ctx, info, models.EntryInfoSubmitted, "submission recorded"); err != nil {
		return nil, err
	}

	s.emit(ctx, audit.EventSubmissionRecorded, info.UserID, pack.ID.String(), "", map[string]string{
		"entry_info_id": info.ID.String(),
		"arr_card_no":   sub.ArrCardNo,
		"attempt":       strconv.Itoa(item.AttemptNumber),
		"method":        string(sub.SubmissionMethod),
	})
	if packFrom != pack.Status {
		s.emitPackStatus(ctx, info, pack, packFrom, "submission recorded")
	}
	return pack, nil
}

// RecordSubmissionFailure appends a failed attempt. Pack and entry info
// status are unchanged.
func (s *Service) RecordSubmissionFailure(ctx context.Context, packID id.EntryPackID, method models.SubmissionMethod, result *failure.ErrorResult) (*models.EntryPack, error) {
	if result == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "failure result is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pack, err := s.store.FindPack(ctx, packID)
	if err != nil {
		return nil, translate(err, "entry pack")
	}
	item := pack.ApplyFailure(method, models.AttemptError{
		ErrorID:  result.ErrorID,
		Category: string(result.Category),
		Message:  result.UserMessage,
	}, requestcontext.Now(ctx))
	if err := s.store.SavePack(ctx, pack); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save entry pack")
	}

	var userID id.UserID
	if info, err := s.store.FindEntryInfo(ctx, pack.EntryInfoID); err == nil {
		userID = info.UserID
	}
	s.emit(ctx, audit.EventSubmissionFailed, userID, pack.ID.String(), string(result.Category), map[string]string{
		"entry_info_id": pack.EntryInfoID.String(),
		"error_id":      result.ErrorID,
		"attempt":       strconv.Itoa(item.AttemptNumber),
		"method":        string(method),
	})
	return pack, nil
}

// StageSubmission writes the recent-submission marker for a confirmation
// that has not been recorded yet.
func (s *Service) StageSubmission(ctx context.Context, entryInfoID id.EntryInfoID, sub models.ArrivalCardSubmission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	pack, err := s.FindOrCreate(ctx, entryInfoID)
	if err != nil {
		return err
	}
	marker := models.RecentSubmission{
		EntryInfoID: entryInfoID,
		PackID:      pack.ID,
		Submission:  sub,
		StagedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.StageRecent(ctx, marker, s.markerTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to stage submission")
	}
	return nil
}

// FinalizeRecentSubmission consumes the marker for entryInfoID and records
// it. It reports false when there was nothing to finalize, which is the
// normal result of a second detection pass. A transient recording failure
// re-stages the marker for the rest of its window.
func (s *Service) FinalizeRecentSubmission(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker, err := s.store.TakeRecent(ctx, entryInfoID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read recent submission")
	}

	pack, err := s.recordSubmission(ctx, marker.PackID, marker.Submission, marker.Submission.SubmissionMethod)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			s.logWarn(ctx, "dropping unrecordable recent submission",
				"entry_info_id", entryInfoID, "pack_id", marker.PackID, "error", err)
			return nil, false, err
		}
		remaining := s.markerTTL - requestcontext.Now(ctx).Sub(marker.StagedAt)
		if remaining > 0 {
			if stageErr := s.store.StageRecent(ctx, marker, remaining); stageErr != nil {
				s.logWarn(ctx, "failed to re-stage recent submission", "entry_info_id", entryInfoID, "error", stageErr)
			}
		}
		return nil, false, err
	}
	s.logInfo(ctx, "recent submission finalized", "entry_info_id", entryInfoID, "pack_id", pack.ID)
	return pack, true, nil
}

// MarkSuperseded flags a submitted entry for re-submission, typically after
// the traveler edited submitted data.
func (s *Service) MarkSuperseded(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error) {
	return s.transitionBoth(ctx, entryInfoID, models.EntryInfoSuperseded, models.PackSuperseded, "superseded")
}

// MarkLeft records that the traveler has left the destination; the pack is
// complete from then on.
func (s *Service) MarkLeft(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error) {
	return s.transitionBoth(ctx, entryInfoID, models.EntryInfoLeft, models.PackCompleted, "left destination")
}

func (s *Service) transitionBoth(ctx context.Context, entryInfoID id.EntryInfoID, infoTo models.EntryInfoStatus, packTo models.EntryPackStatus, reason string) (*models.EntryPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, err
	}
	pack, err := s.findOrCreate(ctx, entryInfoID)
	if err != nil {
		return nil, err
	}
	if err := info.CanTransitionTo(infoTo); err != nil {
		return nil, err
	}
	if err := pack.CanTransitionTo(packTo); err != nil {
		return nil, err
	}
	if err := s.movePack(ctx, info, pack, packTo, infoTo, reason); err != nil {
		return nil, err
	}
	if err := s.moveInfo(ctx, info, infoTo, reason); err != nil {
		return nil, err
	}
	return pack, nil
}

// ExpireIfOverdue expires an entry that was not submitted before deadline.
// It reports whether anything changed.
func (s *Service) ExpireIfOverdue(ctx context.Context, entryInfoID id.EntryInfoID, deadline time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	if deadline.IsZero() || now.Before(deadline) {
		return false, nil
	}
	info, err := s.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return false, err
	}
	if info.CanTransitionTo(models.EntryInfoExpired) != nil {
		return false, nil
	}
	pack, err := s.store.FindPackByEntryInfo(ctx, entryInfoID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entry pack")
	}
	if pack != nil && pack.CanTransitionTo(models.PackExpired) == nil {
		if err := s.movePack(ctx, info, pack, models.PackExpired, models.EntryInfoExpired, "deadline passed"); err != nil {
			return false, err
		}
	}
	if err := s.moveInfo(ctx, info, models.EntryInfoExpired, "deadline passed"); err != nil {
		return false, err
	}
	return true, nil
}

// Archive moves both records to archived where the transition tables allow
// it. Records that cannot be archived (for example an expired entry) keep
// their status; the caller still gets both back.
func (s *Service) Archive(ctx context.Context, entryInfoID id.EntryInfoID, reason string) (*models.EntryInfo, *models.EntryPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, nil, err
	}
	pack, err := s.store.FindPackByEntryInfo(ctx, entryInfoID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entry pack")
	}

	infoTo := info.Status
	if info.CanTransitionTo(models.EntryInfoArchived) == nil {
		infoTo = models.EntryInfoArchived
	}
	if pack != nil && pack.CanTransitionTo(models.PackArchived) == nil {
		if err := s.movePack(ctx, info, pack, models.PackArchived, infoTo, reason); err != nil {
			return nil, nil, err
		}
	}
	if infoTo != info.Status {
		if err := s.moveInfo(ctx, info, infoTo, reason); err != nil {
			return nil, nil, err
		}
	}
	return info, pack, nil
}

func (s *Service) moveInfo(ctx context.Context, info *models.EntryInfo, to models.EntryInfoStatus, reason string) error {
	from := info.Status
	info.ApplyStatus(to, requestcontext.Now(ctx))
	if err := s.store.SaveEntryInfo(ctx, info); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save entry info")
	}
	if from != to {
		s.emitInfoStatus(ctx, info, from, reason)
	}
	return nil
}

func (s *Service) movePack(ctx context.Context, info *models.EntryInfo, pack *models.EntryPack, to models.EntryPackStatus, infoStatus models.EntryInfoStatus, reason string) error {
	from := pack.Status
	pack.ApplyStatus(to, requestcontext.Now(ctx))
	pack.DisplayStatus = models.DisplayStatus(pack.Status, infoStatus)
	if err := s.store.SavePack(ctx, pack); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save entry pack")
	}
	if from != to {
		s.emitPackStatus(ctx, info, pack, from, reason)
	}
	return nil
}

// refreshDisplay keeps an in_progress pack's label in step with readiness.
func (s *Service) refreshDisplay(ctx context.Context, info *models.EntryInfo) {
	pack, err := s.store.FindPackByEntryInfo(ctx, info.ID)
	if err != nil {
		return
	}
	label := models.DisplayStatus(pack.Status, info.Status)
	if label == pack.DisplayStatus {
		return
	}
	pack.DisplayStatus = label
	if err := s.store.SavePack(ctx, pack); err != nil {
		s.logWarn(ctx, "failed to refresh display status", "pack_id", pack.ID, "error", err)
	}
}

func translate(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
}
