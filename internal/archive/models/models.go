package models

import (
	"time"

	entry "entrypass/internal/entry/models"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// SchemaVersion is the current snapshot layout version.
const SchemaVersion = 1

// SnapshotStatus is why the entry was archived.
type SnapshotStatus string

const (
	SnapshotCompleted SnapshotStatus = "completed"
	SnapshotCancelled SnapshotStatus = "cancelled"
	SnapshotExpired   SnapshotStatus = "expired"
)

func (s SnapshotStatus) IsValid() bool {
	switch s {
	case SnapshotCompleted, SnapshotCancelled, SnapshotExpired:
		return true
	}
	return false
}

// ParseSnapshotStatus accepts the archival reason from callers.
func ParseSnapshotStatus(s string) (SnapshotStatus, error) {
	status := SnapshotStatus(s)
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "reason must be one of completed, cancelled, expired")
	}
	return status, nil
}

type PhotoStatus string

const (
	PhotoSuccess PhotoStatus = "success"
	PhotoMissing PhotoStatus = "missing"
	PhotoFailed  PhotoStatus = "failed"
	PhotoNone    PhotoStatus = "no_photo"
)

// PhotoManifestItem records what happened to one fund item's photo during
// snapshot creation. SnapshotPath and FileName are empty unless the copy
// was attempted.
type PhotoManifestItem struct {
	FundItemID   string      `json:"fundItemId"`
	OriginalPath string      `json:"originalPath"`
	SnapshotPath string      `json:"snapshotPath,omitempty"`
	FileName     string      `json:"fileName,omitempty"`
	FileSize     int64       `json:"fileSize"`
	Checksum     string      `json:"checksum,omitempty"`
	Status       PhotoStatus `json:"status"`
	Error        string      `json:"error,omitempty"`
}

// Metadata describes where and how the snapshot was made.
type Metadata struct {
	AppVersion     string `json:"appVersion,omitempty"`
	Platform       string `json:"platform,omitempty"`
	OS             string `json:"os,omitempty"`
	Browser        string `json:"browser,omitempty"`
	Mobile         bool   `json:"mobile,omitempty"`
	ClientIP       string `json:"clientIp,omitempty"`
	CreationMethod string `json:"creationMethod"`
}

// Encryption is attached when the data copies were sealed at creation.
type Encryption struct {
	Method  string `json:"method"`
	Payload []byte `json:"payload"`
}

// Snapshot is an immutable archival copy of one entry. When Encryption is
// set the traveler data copies are empty and live in Encryption.Payload;
// the photo manifest stays readable.
type Snapshot struct {
	ID             id.SnapshotID                `json:"snapshotId"`
	EntryInfoID    id.EntryInfoID               `json:"entryInfoId"`
	UserID         id.UserID                    `json:"userId"`
	DestinationID  string                       `json:"destinationId"`
	Status         SnapshotStatus               `json:"status"`
	CreatedAt      time.Time                    `json:"createdAt"`
	Version        int                          `json:"version"`
	Metadata       Metadata                     `json:"metadata"`
	Passport       *traveler.Passport           `json:"passport,omitempty"`
	PersonalInfo   *traveler.PersonalInfo       `json:"personalInfo,omitempty"`
	Funds          []traveler.FundItem          `json:"funds,omitempty"`
	Travel         *traveler.Travel             `json:"travel,omitempty"`
	TDACSubmission *entry.ArrivalCardSubmission `json:"tdacSubmission,omitempty"`
	Completeness   Completeness                 `json:"completenessIndicator"`
	PhotoManifest  []PhotoManifestItem          `json:"photoManifest"`
	Encryption     *Encryption                  `json:"encryption,omitempty"`
}

type Completeness struct {
	Percent    int                     `json:"percent"`
	Categories entry.CompletionMetrics `json:"categories,omitempty"`
}

// Sealed is the part of a snapshot an encryptor covers.
type Sealed struct {
	Passport       *traveler.Passport           `json:"passport,omitempty"`
	PersonalInfo   *traveler.PersonalInfo       `json:"personalInfo,omitempty"`
	Funds          []traveler.FundItem          `json:"funds,omitempty"`
	Travel         *traveler.Travel             `json:"travel,omitempty"`
	TDACSubmission *entry.ArrivalCardSubmission `json:"tdacSubmission,omitempty"`
}

func (s *Snapshot) Sealed() Sealed {
	return Sealed{
		Passport:       s.Passport,
		PersonalInfo:   s.PersonalInfo,
		Funds:          s.Funds,
		Travel:         s.Travel,
		TDACSubmission: s.TDACSubmission,
	}
}

// Seal replaces the plain data copies with an encrypted payload.
func (s *Snapshot) Seal(method string, payload []byte) {
	s.Passport = nil
	s.PersonalInfo = nil
	s.Funds = nil
	s.Travel = nil
	s.TDACSubmission = nil
	s.Encryption = &Encryption{Method: method, Payload: payload}
}

// PhotoBytes is the total size of the successfully copied photos.
func (s *Snapshot) PhotoBytes() int64 {
	var n int64
	for _, item := range s.PhotoManifest {
		if item.Status == PhotoSuccess {
			n += item.FileSize
		}
	}
	return n
}

// Summary is the listing view used by retention.
type Summary struct {
	ID          id.SnapshotID  `json:"id"`
	EntryInfoID id.EntryInfoID `json:"entryInfoId"`
	Status      SnapshotStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (s *Snapshot) Summary() Summary {
	return Summary{ID: s.ID, EntryInfoID: s.EntryInfoID, Status: s.Status, CreatedAt: s.CreatedAt}
}

type CleanupResult struct {
	DeletedCount int   `json:"deletedCount"`
	FreedBytes   int64 `json:"freedBytes"`
}

type OrphanResult struct {
	ReclaimedCount int   `json:"reclaimedCount"`
	FreedBytes     int64 `json:"freedBytes"`
}
