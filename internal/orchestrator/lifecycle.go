package orchestrator

import (
	"context"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	archivemodels "entrypass/internal/archive/models"
	archive "entrypass/internal/archive/service"
	"entrypass/internal/destination"
	"entrypass/internal/entry/models"
	"entrypass/internal/notification"
	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/requestcontext"
)

const arrivalLayout = "2006-01-02"

// PrepareResult describes the entry after new traveler data was saved.
type PrepareResult struct {
	Info       *models.EntryInfo      `json:"entryInfo"`
	Validation validation.Result      `json:"validation"`
	Moved      models.EntryInfoStatus `json:"movedTo,omitempty"`
	Superseded bool                   `json:"superseded"`
}

// Prepare saves traveler data, recomputes completion and applies the
// incomplete/ready transition. Reaching ready schedules the reminders;
// falling back to incomplete cancels them. Changing data after a
// submission marks the entry for re-submission.
func (o *Orchestrator) Prepare(ctx context.Context, entryInfoID id.EntryInfoID, data traveler.Data) (PrepareResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Prepare",
		trace.WithAttributes(attribute.String("entry_info_id", entryInfoID.String())))
	defer span.End()

	res, err := o.prepare(ctx, entryInfoID, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (o *Orchestrator) prepare(ctx context.Context, entryInfoID id.EntryInfoID, data traveler.Data) (PrepareResult, error) {
	info, err := o.entries.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return PrepareResult{}, err
	}
	switch info.Status {
	case models.EntryInfoExpired, models.EntryInfoArchived, models.EntryInfoLeft:
		return PrepareResult{}, dErrors.New(dErrors.CodeConflict, "entry can no longer be edited")
	}
	dest, err := o.destinations.Get(info.DestinationID)
	if err != nil {
		return PrepareResult{}, err
	}
	data.EntryInfoID = info.ID
	data.DestinationID = info.DestinationID

	changed := true
	if previous, err := o.travelers.Get(ctx, info.ID); err == nil {
		changed = !reflect.DeepEqual(previous, data)
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return PrepareResult{}, err
	}
	if err := o.travelers.Save(ctx, data); err != nil {
		return PrepareResult{}, err
	}

	info, moved, err := o.entries.UpdateCompletion(ctx, info.ID, validation.Completion(data, dest))
	if err != nil {
		return PrepareResult{}, err
	}
	result := PrepareResult{Info: info, Validation: o.validator.Validate(data, dest), Moved: moved}

	if changed && info.Status == models.EntryInfoSubmitted {
		if _, err := o.entries.MarkSuperseded(ctx, info.ID); err != nil {
			return PrepareResult{}, err
		}
		if result.Info, err = o.entries.GetEntryInfo(ctx, info.ID); err != nil {
			return PrepareResult{}, err
		}
		result.Superseded = true
		o.logger.InfoContext(ctx, "submitted entry changed, re-submission required", "entry_info_id", info.ID)
	}

	switch moved {
	case models.EntryInfoReady:
		o.scheduleReminders(ctx, info, data, dest)
	case models.EntryInfoIncomplete:
		o.cancelReminders(ctx, info.ID)
	}
	return result, nil
}

// Archive snapshots the entry and then moves its lifecycle to archived
// where the transition tables allow it. reason is the snapshot status:
// completed, cancelled or expired.
func (o *Orchestrator) Archive(ctx context.Context, entryInfoID id.EntryInfoID, reason string) (*archivemodels.Snapshot, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Archive",
		trace.WithAttributes(attribute.String("entry_info_id", entryInfoID.String()), attribute.String("reason", reason)))
	defer span.End()

	status, err := archivemodels.ParseSnapshotStatus(reason)
	if err != nil {
		return nil, err
	}
	snap, err := o.archiver.CreateSnapshot(ctx, archive.Request{
		EntryInfoID:    entryInfoID,
		Status:         status,
		CreationMethod: "manual",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if _, _, err := o.entries.Archive(ctx, entryInfoID, reason); err != nil {
		span.RecordError(err)
		return snap, err
	}
	o.cancelReminders(ctx, entryInfoID)
	span.SetAttributes(attribute.String("snapshot_id", snap.ID.String()))
	return snap, nil
}

// FinalizeRecent is the detection pass run when the traveler returns to
// the entry: a staged submission is recorded exactly once. It reports
// whether anything was finalized and returns the current pack.
func (o *Orchestrator) FinalizeRecent(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, bool, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.FinalizeRecent",
		trace.WithAttributes(attribute.String("entry_info_id", entryInfoID.String())))
	defer span.End()

	pack, finalized, err := o.entries.FinalizeRecentSubmission(ctx, entryInfoID)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("finalized", finalized))
	if finalized {
		o.cancelReminders(ctx, entryInfoID)
		return pack, true, nil
	}
	pack, err = o.entries.GetPack(ctx, entryInfoID)
	if err != nil {
		return nil, false, err
	}
	return pack, false, nil
}

// Deadline is the end of the arrival day in UTC, after which an
// unsubmitted entry expires. It is zero when the arrival date is unset.
func Deadline(data traveler.Data) time.Time {
	arrival, err := time.Parse(arrivalLayout, data.Travel.ArrivalDate)
	if err != nil {
		return time.Time{}
	}
	return arrival.Add(24 * time.Hour)
}

func (o *Orchestrator) scheduleReminders(ctx context.Context, info *models.EntryInfo, data traveler.Data, dest destination.Config) {
	deadline := Deadline(data)
	if deadline.IsZero() {
		return
	}
	now := requestcontext.Now(ctx)
	windowOpens := deadline.Add(-24*time.Hour - dest.SubmissionWindow)
	if windowOpens.Before(now) {
		windowOpens = now
	}
	reminders := []notification.Reminder{
		{Type: notification.TypeSubmissionWindow, At: windowOpens},
		{Type: notification.TypeDeadline, At: deadline.Add(-24 * time.Hour)},
	}
	for _, r := range reminders {
		if r.At.Before(now) || !o.notifier.IsEnabled(ctx, info.UserID, r.Type) {
			continue
		}
		r.EntryInfoID = info.ID
		r.UserID = info.UserID
		if err := o.notifier.Schedule(ctx, r); err != nil {
			o.logger.WarnContext(ctx, "failed to schedule reminder", "entry_info_id", info.ID, "type", r.Type, "error", err)
		}
	}
}

func (o *Orchestrator) cancelReminders(ctx context.Context, entryInfoID id.EntryInfoID) {
	for _, t := range []notification.Type{notification.TypeSubmissionWindow, notification.TypeDeadline} {
		if err := o.notifier.Cancel(ctx, entryInfoID, t); err != nil {
			o.logger.WarnContext(ctx, "failed to cancel reminder", "entry_info_id", entryInfoID, "type", t, "error", err)
		}
	}
}
