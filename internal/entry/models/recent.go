package models

import (
	"time"

	id "entrypass/pkg/domain"
)

// RecentSubmission is the short-lived marker written after a portal
// confirmed a submission and before it is recorded on the pack. A later
// detection pass consumes it exactly once.
type RecentSubmission struct {
	EntryInfoID id.EntryInfoID        `json:"entryInfoId"`
	PackID      id.EntryPackID        `json:"packId"`
	Submission  ArrivalCardSubmission `json:"submission"`
	StagedAt    time.Time             `json:"stagedAt"`
}
