// Package failure turns raw submission errors into classified results that
// carry recoverability, retry advice and user-facing wording.
package failure

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Category is the failure taxonomy.
type Category string

const (
	CategoryNetwork       Category = "network"
	CategoryValidation    Category = "validation"
	CategorySystem        Category = "system"
	CategoryUserCancelled Category = "user_cancelled"
	CategoryTimeout       Category = "timeout"
)

var (
	// ErrUserCancelled marks an explicit abandonment by the traveler.
	ErrUserCancelled = errors.New("submission cancelled by user")
	// ErrHandshakeTimeout is raised when no token arrived before the deadline.
	ErrHandshakeTimeout = errors.New("challenge token not received before deadline")
	// ErrTokenMalformed is raised for implausible challenge tokens.
	ErrTokenMalformed = errors.New("challenge token malformed")
	// ErrIncompleteConfirmation is raised when the portal reports success
	// without an arrival card number or QR payload.
	ErrIncompleteConfirmation = errors.New("portal confirmation incomplete")
)

// PortalError is a non-2xx response from the destination portal.
type PortalError struct {
	StatusCode int
	Body       string
}

func (e *PortalError) Error() string {
	return fmt.Sprintf("portal responded %d: %s", e.StatusCode, e.Body)
}

// ErrorResult is the universal failure value returned from every submission
// boundary. It implements error so callers can wrap or surface it.
type ErrorResult struct {
	ErrorID           string        `json:"errorId"`
	Category          Category      `json:"category"`
	UserMessage       string        `json:"userMessage"`
	TechnicalMessage  string        `json:"technicalMessage"`
	Recoverable       bool          `json:"recoverable"`
	ShouldRetry       bool          `json:"shouldRetry"`
	RetryDelay        time.Duration `json:"-"`
	Suggestions       []string      `json:"suggestions"`
	SuggestedFallback string        `json:"suggestedFallback,omitempty"`
}

func (e *ErrorResult) Error() string {
	return string(e.Category) + ": " + e.TechnicalMessage
}

// MarshalJSON reports the retry delay in milliseconds.
func (e ErrorResult) MarshalJSON() ([]byte, error) {
	type plain ErrorResult
	return json.Marshal(struct {
		plain
		RetryDelayMs int64 `json:"retryDelay"`
	}{plain: plain(e), RetryDelayMs: e.RetryDelay.Milliseconds()})
}

// UnmarshalJSON reads the millisecond retry delay written by MarshalJSON.
func (e *ErrorResult) UnmarshalJSON(b []byte) error {
	type plain ErrorResult
	var aux struct {
		plain
		RetryDelayMs int64 `json:"retryDelay"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*e = ErrorResult(aux.plain)
	e.RetryDelay = time.Duration(aux.RetryDelayMs) * time.Millisecond
	return nil
}

// Counts reports whether the failure should count against error metrics.
// Cancellations are not errors.
func (e *ErrorResult) Counts() bool {
	return e != nil && e.Category != CategoryUserCancelled
}
