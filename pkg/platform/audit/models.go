package audit

import (
	"context"
	"time"

	id "entrypass/pkg/domain"
)

// EventCategory classifies audit events by purpose so sinks can apply
// different retention.
type EventCategory string

const (
	// CategoryCompliance covers records of personal data being archived or destroyed.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine pipeline activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    id.UserID         `json:"user_id"`
	Subject   string            `json:"subject"`
	Action    string            `json:"action"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

type AuditEvent string

const (
	EventEntryInfoStatusChanged AuditEvent = "entry_info_status_changed"
	EventEntryPackStatusChanged AuditEvent = "entry_pack_status_changed"
	EventSubmissionRecorded     AuditEvent = "submission_recorded"
	EventSubmissionFailed       AuditEvent = "submission_failed"
	EventFallbackOffered        AuditEvent = "fallback_offered"

	EventSnapshotCreated          AuditEvent = "snapshot_created"
	EventSnapshotDeleted          AuditEvent = "snapshot_deleted"
	EventSnapshotOrphansReclaimed AuditEvent = "snapshot_orphans_reclaimed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSubmissionRecorded: CategoryCompliance,
	EventSnapshotCreated:    CategoryCompliance,
	EventSnapshotDeleted:    CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
