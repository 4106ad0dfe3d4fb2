package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	archivemodels "entrypass/internal/archive/models"
	archive "entrypass/internal/archive/service"
	"entrypass/internal/destination"
	"entrypass/internal/entry/models"
	"entrypass/internal/submission/failure"
	"entrypass/internal/submission/strategy"
	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/retry"
	"entrypass/pkg/platform/sentinel"
)

type SubmitRequest struct {
	EntryInfoID id.EntryInfoID
	// Method overrides the configured default when set.
	Method models.SubmissionMethod
}

// SubmitResult reports the final outcome. A failed Outcome is not an error:
// the returned error is reserved for problems loading or recording state.
type SubmitResult struct {
	Outcome         strategy.Outcome        `json:"outcome"`
	Attempts        int                     `json:"attempts"`
	Pack            *models.EntryPack       `json:"pack,omitempty"`
	FallbackOffered models.SubmissionMethod `json:"fallbackOffered,omitempty"`
	SnapshotID      *id.SnapshotID          `json:"snapshotId,omitempty"`
}

// Submit runs one submission for the entry. Invalid data never reaches a
// strategy. Transient failures are retried with the classifier's delay;
// once retries run out the fallback method is offered, or run when
// AutoFallback is set.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Submit",
		trace.WithAttributes(attribute.String("entry_info_id", req.EntryInfoID.String())))
	defer span.End()

	result, err := o.submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(
		attribute.Bool("success", result.Outcome.Success),
		attribute.String("method", string(result.Outcome.Method)),
		attribute.Int("attempts", result.Attempts),
	)
	return result, nil
}

func (o *Orchestrator) submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	info, dest, data, err := o.load(ctx, req.EntryInfoID)
	if err != nil {
		return SubmitResult{}, err
	}

	requested := req.Method
	if requested == "" {
		requested = o.cfg.DefaultMethod
	}
	if _, ok := o.strategies[requested]; !ok {
		return SubmitResult{}, dErrors.New(dErrors.CodeInvalidInput, "submission method not available: "+string(requested))
	}

	if res := o.validator.Validate(data, dest); !res.IsValid {
		o.logger.InfoContext(ctx, "submission blocked by validation",
			"entry_info_id", info.ID, "fields", res.FieldNames())
		return SubmitResult{Outcome: o.rejected(res, requested)}, nil
	}

	expired, err := o.entries.ExpireIfOverdue(ctx, info.ID, Deadline(data))
	if err != nil {
		return SubmitResult{}, err
	}
	if expired {
		o.cancelReminders(ctx, info.ID)
		return SubmitResult{}, dErrors.New(dErrors.CodeConflict, "entry expired before it was submitted")
	}

	if !info.Status.CanTransitionTo(models.EntryInfoSubmitted) {
		o.logger.InfoContext(ctx, "submission refused for closed entry",
			"entry_info_id", info.ID, "status", info.Status)
		return SubmitResult{}, dErrors.New(dErrors.CodeConflict, "entry cannot be submitted while "+string(info.Status))
	}
	pack, err := o.entries.FindOrCreate(ctx, info.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	// The portal is never asked for a card the pack could not record.
	if !pack.Status.CanTransitionTo(models.PackSubmitted) {
		o.logger.InfoContext(ctx, "submission refused for closed entry pack",
			"entry_info_id", info.ID, "pack_status", pack.Status)
		return SubmitResult{}, dErrors.New(dErrors.CodeConflict, "entry pack cannot be submitted while "+string(pack.Status))
	}

	method, ok := o.route(ctx, requested)
	if !ok {
		out := o.unavailable(requested)
		return SubmitResult{Outcome: out}, nil
	}

	out, attempts := o.attempt(ctx, method, data, dest)
	result := SubmitResult{Outcome: out, Attempts: attempts}
	if !out.Success {
		o.recordFailure(ctx, pack.ID, out)
		if fallback := o.fallbackFor(method, out.Error); fallback != "" {
			if o.cfg.AutoFallback && o.breakers[fallback].Allow() {
				o.metrics.IncrementFallback(string(method), "auto")
				o.logger.InfoContext(ctx, "running fallback submission method",
					"entry_info_id", info.ID, "method", method, "fallback", fallback)
				fbOut, fbAttempts := o.attempt(ctx, fallback, data, dest)
				result.Outcome = fbOut
				result.Attempts += fbAttempts
				if !fbOut.Success {
					o.recordFailure(ctx, pack.ID, fbOut)
				}
			} else {
				o.metrics.IncrementFallback(string(method), "offered")
				result.FallbackOffered = fallback
			}
		}
	}
	if !result.Outcome.Success {
		return result, nil
	}

	// The portal accepted the card; persistence must not be abandoned with
	// the caller's request.
	persistCtx := context.WithoutCancel(ctx)
	if err := o.entries.StageSubmission(persistCtx, info.ID, result.Outcome.Submission()); err != nil {
		o.logger.ErrorContext(ctx, "confirmed submission could not be staged",
			"entry_info_id", info.ID, "arr_card_no", result.Outcome.ArrCardNo, "error", err)
		return result, err
	}
	finalized, ok, err := o.entries.FinalizeRecentSubmission(persistCtx, info.ID)
	switch {
	case err != nil && unrecordable(err):
		// The marker is gone; the caller is the only one left holding the card.
		o.logger.ErrorContext(ctx, "confirmed submission could not be recorded",
			"entry_info_id", info.ID, "arr_card_no", result.Outcome.ArrCardNo, "error", err)
		return result, err
	case err != nil:
		o.logger.WarnContext(ctx, "submission left staged for the next detection pass",
			"entry_info_id", info.ID, "error", err)
	case ok:
		result.Pack = finalized
	}
	o.cancelReminders(persistCtx, info.ID)

	if o.cfg.ArchiveOnSubmit {
		snap, err := o.archiver.CreateSnapshot(persistCtx, archive.Request{
			EntryInfoID:    info.ID,
			Status:         archivemodels.SnapshotCompleted,
			CreationMethod: "on_submit",
		})
		if err != nil {
			o.logger.WarnContext(ctx, "archive on submit failed", "entry_info_id", info.ID, "error", err)
		} else {
			result.SnapshotID = &snap.ID
		}
	}
	return result, nil
}

func unrecordable(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeInvariantViolation)
}

func (o *Orchestrator) load(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, destination.Config, traveler.Data, error) {
	info, err := o.entries.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, destination.Config{}, traveler.Data{}, err
	}
	dest, err := o.destinations.Get(info.DestinationID)
	if err != nil {
		return nil, destination.Config{}, traveler.Data{}, err
	}
	data, err := o.travelers.Get(ctx, entryInfoID)
	if err != nil {
		return nil, destination.Config{}, traveler.Data{}, err
	}
	return info, dest, data, nil
}

// route returns requested unless its breaker is open, in which case the
// fallback method is used while its own breaker allows it.
func (o *Orchestrator) route(ctx context.Context, requested models.SubmissionMethod) (models.SubmissionMethod, bool) {
	if o.breakers[requested].Allow() {
		return requested, true
	}
	fallback := o.cfg.FallbackMethod
	if b, ok := o.breakers[fallback]; ok && fallback != requested && b.Allow() {
		o.logger.WarnContext(ctx, "submission method circuit open, routing to fallback",
			"method", requested, "fallback", fallback)
		return fallback, true
	}
	return "", false
}

// attempt runs method with bounded automatic retries and returns the last
// outcome and the number of attempts made.
func (o *Orchestrator) attempt(ctx context.Context, method models.SubmissionMethod, data traveler.Data, dest destination.Config) (strategy.Outcome, int) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.attempt", trace.WithAttributes(attribute.String("method", string(method))))
	defer span.End()

	strat := o.strategies[method]
	var out strategy.Outcome
	loop := retry.Loop{
		MaxAttempts: o.cfg.MaxRetries + 1,
		Backoff: func(int) time.Duration {
			if out.Error != nil {
				return out.Error.RetryDelay
			}
			return 0
		},
		Clock: o.clock,
	}
	attempts, err := loop.Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		if attempt > 1 {
			o.metrics.IncrementRetry(string(method))
			o.logger.InfoContext(ctx, "retrying submission", "method", method, "attempt", attempt)
		}
		out = strat.Submit(ctx, data, strategy.Config{
			Destination: dest,
			Attempt:     attempt,
			Fallback:    o.offerable(method),
		})
		o.observe(method, out)
		return out.Success || out.Error == nil || !out.Error.ShouldRetry, nil
	})
	if err != nil && !errors.Is(err, retry.ErrExhausted) {
		// Cancelled while waiting to retry.
		out = strategy.Outcome{
			Method: method,
			Error: o.classifier.Classify(err, failure.Context{
				Operation: "submit", Method: string(method), Attempt: max(attempts, 1),
			}),
		}
	}
	span.SetAttributes(attribute.Int("attempts", attempts), attribute.Bool("success", out.Success))
	return out, attempts
}

func (o *Orchestrator) observe(method models.SubmissionMethod, out strategy.Outcome) {
	breaker := o.breakers[method]
	if out.Success {
		o.metrics.ObserveSubmission(string(method), "success", "", out.Duration)
		if _, change := breaker.RecordSuccess(); change.Closed {
			o.logger.Info("submission method circuit closed", "method", method)
		}
		return
	}
	category := ""
	if out.Error != nil {
		category = string(out.Error.Category)
	}
	o.metrics.ObserveSubmission(string(method), "failure", category, out.Duration)
	if !tripsBreaker(out.Error) {
		return
	}
	if _, change := breaker.RecordFailure(); change.Opened {
		o.logger.Warn("submission method circuit opened", "method", method)
	}
}

// tripsBreaker is true for failures of the path itself, not of the input.
func tripsBreaker(res *failure.ErrorResult) bool {
	if res == nil {
		return true
	}
	switch res.Category {
	case failure.CategoryNetwork, failure.CategoryTimeout, failure.CategorySystem:
		return true
	}
	return false
}

// offerable is the fallback a strategy may suggest for method.
func (o *Orchestrator) offerable(method models.SubmissionMethod) models.SubmissionMethod {
	fb := o.cfg.FallbackMethod
	if fb == "" || fb == method {
		return ""
	}
	if _, ok := o.strategies[fb]; !ok {
		return ""
	}
	return fb
}

// fallbackFor decides whether a failed method warrants its fallback.
// Input problems and cancellations do not.
func (o *Orchestrator) fallbackFor(method models.SubmissionMethod, res *failure.ErrorResult) models.SubmissionMethod {
	fb := o.offerable(method)
	if fb == "" || res == nil || !res.Recoverable {
		return ""
	}
	if res.Category == failure.CategoryValidation || res.Category == failure.CategoryUserCancelled {
		return ""
	}
	if !o.breakers[fb].Available() {
		return ""
	}
	return fb
}

func (o *Orchestrator) recordFailure(ctx context.Context, packID id.EntryPackID, out strategy.Outcome) {
	if out.Error == nil {
		return
	}
	if _, err := o.entries.RecordSubmissionFailure(context.WithoutCancel(ctx), packID, out.Method, out.Error); err != nil {
		o.logger.WarnContext(ctx, "failed to record submission failure",
			"pack_id", packID, "error_id", out.Error.ErrorID, "error", err)
	}
}

func (o *Orchestrator) rejected(res validation.Result, method models.SubmissionMethod) strategy.Outcome {
	err := dErrors.New(dErrors.CodeValidation, "invalid fields: "+strings.Join(res.FieldNames(), ", "))
	return strategy.Outcome{
		Method:     method,
		Validation: &res,
		Error:      o.classifier.Classify(err, failure.Context{Operation: "validate", Method: string(method), Attempt: 1}),
	}
}

func (o *Orchestrator) unavailable(method models.SubmissionMethod) strategy.Outcome {
	return strategy.Outcome{
		Method: method,
		Error: o.classifier.Classify(
			errors.Join(sentinel.ErrUnavailable, errors.New("every submission method is temporarily disabled")),
			failure.Context{Operation: "submit", Method: string(method), Attempt: 1},
		),
	}
}
