package failure

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/clock"
	"entrypass/pkg/platform/retry"
	"entrypass/pkg/platform/sentinel"
	pkgstrings "entrypass/pkg/platform/strings"
)

const maxSuggestions = 3

// Context describes where the failure happened.
type Context struct {
	Operation string
	Method    string
	Attempt   int
	// Fallback names the alternative method to suggest for transient failures.
	Fallback string
}

// DiagnosticEntry is one line of the exportable support log.
type DiagnosticEntry struct {
	ErrorID          string    `json:"errorId"`
	Timestamp        time.Time `json:"timestamp"`
	Operation        string    `json:"operation"`
	Method           string    `json:"method,omitempty"`
	Attempt          int       `json:"attempt"`
	Category         Category  `json:"category"`
	TechnicalMessage string    `json:"technicalMessage"`
}

// Classifier maps raw errors onto the failure taxonomy and keeps a bounded
// log of system failures for support export.
type Classifier struct {
	clock   clock.Clock
	logger  *slog.Logger
	backoff retry.Backoff

	mu          sync.Mutex
	diagnostics []DiagnosticEntry
	capacity    int
}

// Option configures a Classifier.
type Option func(*Classifier)

func WithClock(c clock.Clock) Option {
	return func(cl *Classifier) { cl.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Classifier) { cl.logger = logger }
}

// WithRetryBand sets the exponential retry delay band (default 2s to 30s).
func WithRetryBand(base, max time.Duration) Option {
	return func(cl *Classifier) { cl.backoff = retry.Exponential(base, max) }
}

// WithDiagnosticCapacity bounds the support log (default 100 entries).
func WithDiagnosticCapacity(n int) Option {
	return func(cl *Classifier) {
		if n > 0 {
			cl.capacity = n
		}
	}
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		clock:    clock.Real(),
		logger:   slog.Default(),
		backoff:  retry.Exponential(2*time.Second, 30*time.Second),
		capacity: 100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns nil for a nil error. An error that already is an
// *ErrorResult is returned unchanged.
func (c *Classifier) Classify(err error, fc Context) *ErrorResult {
	if err == nil {
		return nil
	}
	var existing *ErrorResult
	if errors.As(err, &existing) {
		return existing
	}

	result := &ErrorResult{
		ErrorID:          uuid.NewString(),
		Category:         categorize(err),
		TechnicalMessage: err.Error(),
	}

	attempt := max(fc.Attempt, 1)
	switch result.Category {
	case CategoryUserCancelled:
		result.Recoverable = true
		result.UserMessage = "The submission was cancelled."
		result.Suggestions = []string{"Start the submission again when you are ready"}
	case CategoryTimeout:
		result.Recoverable = true
		result.ShouldRetry = true
		result.RetryDelay = c.backoff(attempt + 1)
		result.UserMessage = "The immigration portal took too long to respond."
		result.Suggestions = []string{"Check your internet connection", "Try again in a moment"}
	case CategoryNetwork:
		result.Recoverable = true
		result.ShouldRetry = true
		result.RetryDelay = c.backoff(attempt + 1)
		result.UserMessage = "We could not reach the immigration portal."
		result.Suggestions = []string{"Check your internet connection", "Try again in a moment"}
		if errors.Is(err, ErrTokenMalformed) {
			result.UserMessage = "The immigration portal's security check did not complete."
			result.Suggestions = []string{"Try again in a moment"}
		}
	case CategoryValidation:
		result.Recoverable = true
		result.UserMessage = "Some of your details were not accepted."
		result.Suggestions = []string{"Review the highlighted fields", "Make sure names match your passport exactly"}
	default:
		result.UserMessage = "Something went wrong on our side."
		result.Suggestions = []string{"Contact support and quote the error ID"}
	}

	if fc.Fallback != "" && fc.Fallback != fc.Method && result.Category != CategoryUserCancelled && result.Category != CategorySystem {
		result.SuggestedFallback = fc.Fallback
		result.Suggestions = append([]string{"Try the " + fc.Fallback + " submission method instead"}, result.Suggestions...)
	}
	result.Suggestions = pkgstrings.DedupeAndTrimN(result.Suggestions, maxSuggestions)

	if result.Category == CategorySystem {
		c.record(result, fc)
	}
	return result
}

func categorize(err error) Category {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrUserCancelled) {
		return CategoryUserCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrHandshakeTimeout) {
		return CategoryTimeout
	}

	var portalErr *PortalError
	if errors.As(err, &portalErr) {
		switch {
		case portalErr.StatusCode == 408:
			return CategoryTimeout
		case portalErr.StatusCode == 429 || portalErr.StatusCode >= 500:
			return CategoryNetwork
		case portalErr.StatusCode >= 400:
			return CategoryValidation
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return CategoryNetwork
	}
	// A rejected challenge token is a failed portal exchange.
	if errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, sentinel.ErrUnavailable) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return CategoryNetwork
	}

	if errors.Is(err, ErrIncompleteConfirmation) ||
		dErrors.HasCode(err, dErrors.CodeValidation) ||
		dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
		dErrors.HasCode(err, dErrors.CodeBadRequest) {
		return CategoryValidation
	}
	if dErrors.HasCode(err, dErrors.CodeTimeout) {
		return CategoryTimeout
	}
	return CategorySystem
}

func (c *Classifier) record(result *ErrorResult, fc Context) {
	entry := DiagnosticEntry{
		ErrorID:          result.ErrorID,
		Timestamp:        c.clock.Now(),
		Operation:        fc.Operation,
		Method:           fc.Method,
		Attempt:          fc.Attempt,
		Category:         result.Category,
		TechnicalMessage: result.TechnicalMessage,
	}

	c.mu.Lock()
	c.diagnostics = append(c.diagnostics, entry)
	if over := len(c.diagnostics) - c.capacity; over > 0 {
		c.diagnostics = append([]DiagnosticEntry(nil), c.diagnostics[over:]...)
	}
	c.mu.Unlock()

	c.logger.Error("unexpected submission failure",
		"error_id", result.ErrorID,
		"operation", fc.Operation,
		"method", fc.Method,
		"attempt", fc.Attempt,
		"error", result.TechnicalMessage,
	)
}

// Diagnostics returns the retained support log, oldest first.
func (c *Classifier) Diagnostics() []DiagnosticEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DiagnosticEntry(nil), c.diagnostics...)
}

// Lookup finds a retained diagnostic entry by error id.
func (c *Classifier) Lookup(errorID string) (DiagnosticEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diagnostics {
		if d.ErrorID == errorID {
			return d, true
		}
	}
	return DiagnosticEntry{}, false
}

// ExportDiagnostics renders the support log as JSON.
func (c *Classifier) ExportDiagnostics() ([]byte, error) {
	return json.MarshalIndent(struct {
		ExportedAt time.Time         `json:"exportedAt"`
		Entries    []DiagnosticEntry `json:"entries"`
	}{ExportedAt: c.clock.Now(), Entries: c.Diagnostics()}, "", "  ")
}
