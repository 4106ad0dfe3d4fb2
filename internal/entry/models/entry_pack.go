package models

import (
	"strings"
	"time"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// EntryPackStatus tracks the submission container.
type EntryPackStatus string

const (
	PackInProgress EntryPackStatus = "in_progress"
	PackSubmitted  EntryPackStatus = "submitted"
	PackSuperseded EntryPackStatus = "superseded"
	PackCompleted  EntryPackStatus = "completed"
	PackExpired    EntryPackStatus = "expired"
	PackArchived   EntryPackStatus = "archived"
)

var packTransitions = map[EntryPackStatus][]EntryPackStatus{
	PackInProgress: {PackSubmitted, PackExpired},
	PackSubmitted:  {PackSubmitted, PackSuperseded, PackCompleted, PackArchived},
	PackSuperseded: {PackSubmitted, PackArchived},
	PackCompleted:  {PackArchived},
}

func (s EntryPackStatus) CanTransitionTo(next EntryPackStatus) bool {
	for _, allowed := range packTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// requiresSubmission lists states only reachable with a recorded
// ArrivalCardSubmission.
func (s EntryPackStatus) requiresSubmission() bool {
	return s == PackSubmitted || s == PackCompleted || s == PackArchived
}

// Document is a file attached to the pack, such as the arrival card PDF.
type Document struct {
	Kind    string    `json:"kind"`
	Path    string    `json:"path"`
	AddedAt time.Time `json:"addedAt"`
}

// EntryPack holds the confirmed submission and the full attempt history for
// one EntryInfo. There is at most one pack per EntryInfo.
//
// Invariants:
//   - SubmissionHistory is append-only with strictly increasing AttemptNumber
//   - submitted, completed and archived require a validated TDACSubmission
type EntryPack struct {
	ID                id.EntryPackID          `json:"id"`
	EntryInfoID       id.EntryInfoID          `json:"entryInfoId"`
	Status            EntryPackStatus         `json:"status"`
	TDACSubmission    *ArrivalCardSubmission  `json:"tdacSubmission"`
	SubmissionHistory []SubmissionHistoryItem `json:"submissionHistory"`
	Documents         []Document              `json:"documents"`
	DisplayStatus     string                  `json:"displayStatus"`
	CreatedAt         time.Time               `json:"createdAt"`
	UpdatedAt         time.Time               `json:"updatedAt"`
	ArchivedAt        *time.Time              `json:"archivedAt,omitempty"`
}

func NewEntryPack(packID id.EntryPackID, entryInfoID id.EntryInfoID, now time.Time) *EntryPack {
	return &EntryPack{
		ID:                packID,
		EntryInfoID:       entryInfoID,
		Status:            PackInProgress,
		SubmissionHistory: []SubmissionHistoryItem{},
		Documents:         []Document{},
		DisplayStatus:     DisplayDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NextAttemptNumber is one past the last history item.
func (p *EntryPack) NextAttemptNumber() int {
	if n := len(p.SubmissionHistory); n > 0 {
		return p.SubmissionHistory[n-1].AttemptNumber + 1
	}
	return 1
}

// HasRecorded reports whether sub is already in the history as a success.
// Identity is the (arrCardNo, submittedAt) pair.
func (p *EntryPack) HasRecorded(sub ArrivalCardSubmission) bool {
	for _, item := range p.SubmissionHistory {
		if item.Status == AttemptSuccess && item.ArrCardNo == sub.ArrCardNo &&
			item.SubmittedAt.Equal(sub.SubmittedAt) {
			return true
		}
	}
	return false
}

// CanRecordSubmission validates sub and the pack's ability to reach submitted.
func (p *EntryPack) CanRecordSubmission(sub ArrivalCardSubmission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if !p.Status.CanTransitionTo(PackSubmitted) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"entry pack cannot accept a submission while "+string(p.Status))
	}
	return nil
}

// ApplySubmission appends a success history item and makes sub the current
// confirmed submission. Call CanRecordSubmission first.
func (p *EntryPack) ApplySubmission(sub ArrivalCardSubmission, now time.Time) SubmissionHistoryItem {
	item := SubmissionHistoryItem{
		AttemptNumber:    p.NextAttemptNumber(),
		SubmittedAt:      sub.SubmittedAt,
		SubmissionMethod: sub.SubmissionMethod,
		Status:           AttemptSuccess,
		ArrCardNo:        sub.ArrCardNo,
		QRURI:            sub.QRURI,
		PDFPath:          sub.PDFPath,
	}
	p.SubmissionHistory = append(p.SubmissionHistory, item)
	current := sub
	p.TDACSubmission = &current
	p.Status = PackSubmitted
	if sub.PDFPath != "" {
		p.Documents = append(p.Documents, Document{Kind: "arrival_card_pdf", Path: sub.PDFPath, AddedAt: now})
	}
	p.UpdatedAt = now
	return item
}

// ApplyFailure appends a failed attempt. Status is unchanged.
func (p *EntryPack) ApplyFailure(method SubmissionMethod, failure AttemptError, now time.Time) SubmissionHistoryItem {
	item := SubmissionHistoryItem{
		AttemptNumber:    p.NextAttemptNumber(),
		SubmittedAt:      now,
		SubmissionMethod: method,
		Status:           AttemptFailed,
		Error:            &failure,
	}
	p.SubmissionHistory = append(p.SubmissionHistory, item)
	p.UpdatedAt = now
	return item
}

// CanTransitionTo checks the transition table and the submission
// precondition.
func (p *EntryPack) CanTransitionTo(next EntryPackStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"entry pack cannot move from "+string(p.Status)+" to "+string(next))
	}
	if next.requiresSubmission() && (p.TDACSubmission == nil || p.TDACSubmission.Validate() != nil) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"entry pack has no confirmed submission")
	}
	return nil
}

// ApplyStatus moves the pack to next. Call CanTransitionTo first.
func (p *EntryPack) ApplyStatus(next EntryPackStatus, now time.Time) {
	p.Status = next
	p.UpdatedAt = now
	if next == PackArchived {
		at := now
		p.ArchivedAt = &at
	}
}

// Display strings shown to travelers.
const (
	DisplayDraft             = "Draft"
	DisplayReady             = "Ready to submit"
	DisplaySubmitted         = "Submitted"
	DisplayNeedsResubmission = "Needs resubmission"
	DisplayCompleted         = "Completed"
	DisplayExpired           = "Expired"
	DisplayArchived          = "Archived"
)

// DisplayStatus derives the traveler-facing label from both records.
func DisplayStatus(pack EntryPackStatus, info EntryInfoStatus) string {
	switch pack {
	case PackSubmitted:
		return DisplaySubmitted
	case PackSuperseded:
		return DisplayNeedsResubmission
	case PackCompleted:
		return DisplayCompleted
	case PackExpired:
		return DisplayExpired
	case PackArchived:
		return DisplayArchived
	}
	if info == EntryInfoReady {
		return DisplayReady
	}
	return DisplayDraft
}

// SubmissionMethod is the strategy that produced an attempt.
type SubmissionMethod string

const (
	MethodAPI     SubmissionMethod = "api"
	MethodWebView SubmissionMethod = "webview"
	MethodHybrid  SubmissionMethod = "hybrid"
)

func (m SubmissionMethod) IsValid() bool {
	return m == MethodAPI || m == MethodWebView || m == MethodHybrid
}

// ParseSubmissionMethod accepts the method names case-insensitively.
func ParseSubmissionMethod(s string) (SubmissionMethod, error) {
	m := SubmissionMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown submission method: "+s)
	}
	return m, nil
}

// AttemptStatus is the outcome of one history item.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// AttemptError is the part of a classified failure kept in history.
type AttemptError struct {
	ErrorID  string `json:"errorId"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// SubmissionHistoryItem is immutable once appended.
type SubmissionHistoryItem struct {
	AttemptNumber    int              `json:"attemptNumber"`
	SubmittedAt      time.Time        `json:"submittedAt"`
	SubmissionMethod SubmissionMethod `json:"submissionMethod"`
	Status           AttemptStatus    `json:"status"`
	ArrCardNo        string           `json:"arrCardNo,omitempty"`
	QRURI            string           `json:"qrUri,omitempty"`
	PDFPath          string           `json:"pdfPath,omitempty"`
	Error            *AttemptError    `json:"error,omitempty"`
}

// ArrivalCardSubmission is the authoritative confirmed result.
type ArrivalCardSubmission struct {
	ArrCardNo        string           `json:"arrCardNo"`
	QRURI            string           `json:"qrUri"`
	PDFPath          string           `json:"pdfPath"`
	SubmittedAt      time.Time        `json:"submittedAt"`
	SubmissionMethod SubmissionMethod `json:"submissionMethod"`
	Status           AttemptStatus    `json:"status"`
}

// Validate rejects partially populated confirmations.
func (a ArrivalCardSubmission) Validate() error {
	switch {
	case strings.TrimSpace(a.ArrCardNo) == "":
		return dErrors.New(dErrors.CodeValidation, "arrival card number is required")
	case strings.TrimSpace(a.QRURI) == "":
		return dErrors.New(dErrors.CodeValidation, "qr uri is required")
	case a.SubmittedAt.IsZero():
		return dErrors.New(dErrors.CodeValidation, "submitted at is required")
	case !a.SubmissionMethod.IsValid():
		return dErrors.New(dErrors.CodeValidation, "submission method is invalid")
	case a.Status != "" && a.Status != AttemptSuccess:
		return dErrors.New(dErrors.CodeValidation, "confirmed submission must have success status")
	}
	return nil
}
