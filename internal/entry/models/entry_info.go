package models

import (
	"time"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// EntryInfoStatus tracks a traveler's intent-to-travel record.
type EntryInfoStatus string

const (
	EntryInfoIncomplete EntryInfoStatus = "incomplete"
	EntryInfoReady      EntryInfoStatus = "ready"
	EntryInfoSubmitted  EntryInfoStatus = "submitted"
	EntryInfoSuperseded EntryInfoStatus = "superseded"
	EntryInfoExpired    EntryInfoStatus = "expired"
	EntryInfoArchived   EntryInfoStatus = "archived"
	EntryInfoLeft       EntryInfoStatus = "left"
)

var entryInfoTransitions = map[EntryInfoStatus][]EntryInfoStatus{
	EntryInfoIncomplete: {EntryInfoReady, EntryInfoExpired},
	EntryInfoReady:      {EntryInfoIncomplete, EntryInfoSubmitted, EntryInfoExpired},
	EntryInfoSubmitted:  {EntryInfoSubmitted, EntryInfoSuperseded, EntryInfoLeft, EntryInfoArchived},
	EntryInfoSuperseded: {EntryInfoSubmitted, EntryInfoExpired, EntryInfoArchived},
	EntryInfoLeft:       {EntryInfoArchived},
}

func (s EntryInfoStatus) IsValid() bool {
	switch s {
	case EntryInfoIncomplete, EntryInfoReady, EntryInfoSubmitted, EntryInfoSuperseded,
		EntryInfoExpired, EntryInfoArchived, EntryInfoLeft:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Expired and archived are terminal.
func (s EntryInfoStatus) CanTransitionTo(next EntryInfoStatus) bool {
	for _, allowed := range entryInfoTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EntryInfoKey identifies one (user, destination, trip) record.
type EntryInfoKey struct {
	UserID        id.UserID
	DestinationID string
	TripID        string
}

// EntryInfo is one traveler's destination-specific record. It is never
// deleted, only moved to archived.
//
// Invariants:
//   - Status changes only along entryInfoTransitions
//   - incomplete and ready are decided by Completion alone
type EntryInfo struct {
	ID            id.EntryInfoID    `json:"id"`
	UserID        id.UserID         `json:"userId"`
	DestinationID string            `json:"destinationId"`
	TripID        string            `json:"tripId"`
	Status        EntryInfoStatus   `json:"status"`
	Completion    CompletionMetrics `json:"completionMetrics"`
	CreatedAt     time.Time         `json:"createdAt"`
	LastUpdatedAt time.Time         `json:"lastUpdatedAt"`
}

// NewEntryInfo creates an incomplete record for key.
func NewEntryInfo(key EntryInfoKey, now time.Time) (*EntryInfo, error) {
	if key.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	if key.DestinationID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "destination id is required")
	}
	return &EntryInfo{
		ID:            id.DeriveEntryInfoID(key.UserID, key.DestinationID, key.TripID),
		UserID:        key.UserID,
		DestinationID: key.DestinationID,
		TripID:        key.TripID,
		Status:        EntryInfoIncomplete,
		Completion:    CompletionMetrics{},
		CreatedAt:     now,
		LastUpdatedAt: now,
	}, nil
}

// CanTransitionTo checks a status change against the transition table.
func (e *EntryInfo) CanTransitionTo(next EntryInfoStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"entry info cannot move from "+string(e.Status)+" to "+string(next))
	}
	return nil
}

// ApplyStatus moves the record to next. Call CanTransitionTo first.
func (e *EntryInfo) ApplyStatus(next EntryInfoStatus, now time.Time) {
	e.Status = next
	e.LastUpdatedAt = now
}

// ApplyCompletion stores metrics and derives incomplete/ready from them. It
// returns the status the record moved to, or "" when the status is unchanged.
// Records past ready keep their status.
func (e *EntryInfo) ApplyCompletion(metrics CompletionMetrics, now time.Time) EntryInfoStatus {
	e.Completion = metrics
	e.LastUpdatedAt = now

	var target EntryInfoStatus
	switch {
	case e.Status == EntryInfoIncomplete && metrics.AllComplete():
		target = EntryInfoReady
	case e.Status == EntryInfoReady && !metrics.AllComplete():
		target = EntryInfoIncomplete
	default:
		return ""
	}
	e.Status = target
	return target
}

// IsOpen reports whether the record can still be submitted or edited.
func (e *EntryInfo) IsOpen() bool {
	return e.Status == EntryInfoIncomplete || e.Status == EntryInfoReady
}
