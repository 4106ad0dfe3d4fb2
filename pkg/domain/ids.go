package domain

import (
	"github.com/google/uuid"

	dErrors "entrypass/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so an EntryInfoID can never be passed
// where an EntryPackID is expected.
type (
	UserID      uuid.UUID
	EntryInfoID uuid.UUID
	EntryPackID uuid.UUID
	SnapshotID  uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is malformed")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, kind+" is malformed")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseEntryInfoID(s string) (EntryInfoID, error) {
	u, err := parseUUID(s, "entry info id")
	return EntryInfoID(u), err
}

func ParseEntryPackID(s string) (EntryPackID, error) {
	u, err := parseUUID(s, "entry pack id")
	return EntryPackID(u), err
}

func ParseSnapshotID(s string) (SnapshotID, error) {
	u, err := parseUUID(s, "snapshot id")
	return SnapshotID(u), err
}

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id EntryInfoID) String() string { return uuid.UUID(id).String() }
func (id EntryPackID) String() string { return uuid.UUID(id).String() }
func (id SnapshotID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EntryInfoID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntryPackID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SnapshotID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id EntryInfoID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id EntryPackID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SnapshotID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EntryInfoID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EntryPackID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SnapshotID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }

// entryInfoNamespace seeds deterministic EntryInfo ids.
var entryInfoNamespace = uuid.MustParse("6f1c2b9e-4d0a-5c3e-9a7b-2e8d41f0c5a3")

// DeriveEntryInfoID returns the same id for the same (user, destination,
// trip) triple, which makes EntryInfo creation idempotent.
func DeriveEntryInfoID(user UserID, destinationID, tripID string) EntryInfoID {
	name := user.String() + "|" + destinationID + "|" + tripID
	return EntryInfoID(uuid.NewSHA1(entryInfoNamespace, []byte(name)))
}
