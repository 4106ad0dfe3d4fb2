// Package strategy turns validated traveler data into a confirmed arrival
// card. Every strategy returns the same Outcome shape and never a raw error,
// so callers stay strategy-agnostic.
package strategy

//go:generate mockgen -source=strategy.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"entrypass/internal/destination"
	"entrypass/internal/entry/models"
	"entrypass/internal/platform/metrics"
	"entrypass/internal/submission/failure"
	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
	"entrypass/pkg/platform/clock"
)

// Config is the per-call strategy configuration.
type Config struct {
	Destination destination.Config
	// Attempt is the 1-based attempt number, used for retry advice.
	Attempt int
	// Fallback is the method suggested when this one fails transiently.
	Fallback models.SubmissionMethod
}

// Outcome is the result of one submission attempt. Exactly one of the
// confirmation fields or Error is meaningful, depending on Success.
type Outcome struct {
	Success        bool                    `json:"success"`
	Method         models.SubmissionMethod `json:"method"`
	ArrCardNo      string                  `json:"arrCardNo,omitempty"`
	QRURI          string                  `json:"qrUri,omitempty"`
	PDFPath        string                  `json:"pdfPath,omitempty"`
	SubmittedAt    time.Time               `json:"submittedAt,omitzero"`
	Duration       time.Duration           `json:"-"`
	UnfilledFields []string                `json:"unfilledFields,omitempty"`
	Validation     *validation.Result      `json:"validation,omitempty"`
	Error          *failure.ErrorResult    `json:"error,omitempty"`
}

// MarshalJSON reports the duration in milliseconds.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	return json.Marshal(struct {
		plain
		DurationMs int64 `json:"durationMs"`
	}{plain: plain(o), DurationMs: o.Duration.Milliseconds()})
}

// Submission converts a successful outcome into the confirmed record.
func (o Outcome) Submission() models.ArrivalCardSubmission {
	return models.ArrivalCardSubmission{
		ArrCardNo:        o.ArrCardNo,
		QRURI:            o.QRURI,
		PDFPath:          o.PDFPath,
		SubmittedAt:      o.SubmittedAt,
		SubmissionMethod: o.Method,
		Status:           models.AttemptSuccess,
	}
}

type Strategy interface {
	Method() models.SubmissionMethod
	Submit(ctx context.Context, data traveler.Data, cfg Config) Outcome
}

// Confirmation is what the portal returns for an accepted submission.
type Confirmation struct {
	ArrCardNo string `json:"arrCardNo"`
	QRURI     string `json:"qrUri"`
	PDFPath   string `json:"pdfUrl"`
}

// PortalClient posts a submission payload to the destination endpoint.
// Non-2xx responses are returned as *failure.PortalError.
type PortalClient interface {
	Submit(ctx context.Context, endpoint string, payload Payload, headers map[string]string) (Confirmation, error)
}

// base holds what every strategy needs to validate and classify.
type base struct {
	validator  *validation.Validator
	classifier *failure.Classifier
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*base)

func WithClock(c clock.Clock) Option {
	return func(b *base) { b.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) { b.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

func newBase(validator *validation.Validator, classifier *failure.Classifier, opts []Option) base {
	b := base{
		validator:  validator,
		classifier: classifier,
		clock:      clock.Real(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// precheck validates data. The second return is false when the data is
// invalid and the returned outcome must be used as is.
func (b base) precheck(data traveler.Data, cfg Config, method models.SubmissionMethod, started time.Time) (Outcome, bool) {
	res := b.validator.Validate(data, cfg.Destination)
	if res.IsValid {
		return Outcome{}, true
	}
	// Switching methods does not fix bad input, so no fallback is offered.
	cfg.Fallback = ""
	out := b.failed(validationError(res), cfg, method, started)
	out.Validation = &res
	return out, false
}

func (b base) failed(err error, cfg Config, method models.SubmissionMethod, started time.Time) Outcome {
	result := b.classifier.Classify(err, failure.Context{
		Operation: "submit",
		Method:    string(method),
		Attempt:   max(cfg.Attempt, 1),
		Fallback:  string(cfg.Fallback),
	})
	return Outcome{
		Success:  false,
		Method:   method,
		Duration: b.clock.Since(started),
		Error:    result,
	}
}

func (b base) succeeded(conf Confirmation, method models.SubmissionMethod, started time.Time) Outcome {
	now := b.clock.Now()
	return Outcome{
		Success:     true,
		Method:      method,
		ArrCardNo:   conf.ArrCardNo,
		QRURI:       conf.QRURI,
		PDFPath:     conf.PDFPath,
		SubmittedAt: now,
		Duration:    now.Sub(started),
	}
}
