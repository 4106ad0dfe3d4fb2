package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: key or record does not exist
//   - ErrConflict: a uniqueness claim was lost to another writer
//   - ErrExpired: a marker or record outlived its validity window
//   - ErrAlreadyUsed: a one-shot marker has already been consumed
//   - ErrInvalidState: entity in the wrong state for the operation
//   - ErrUnavailable: backing service temporarily unreachable
//
// Input problems are not sentinels; use pkg/domain-errors for those.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
