// Package notification is the reminder port the orchestrator calls on
// lifecycle transitions. Content, quiet hours and frequency belong to the
// delivery side.
package notification

//go:generate mockgen -source=notification.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "entrypass/pkg/domain"
)

// Type names a reminder kind.
type Type string

const (
	// TypeSubmissionWindow fires when the destination starts accepting
	// arrival cards for the trip.
	TypeSubmissionWindow Type = "submission_window"
	// TypeDeadline fires shortly before an unsubmitted entry expires.
	TypeDeadline Type = "submission_deadline"
)

// Reminder is one scheduled notification. Its key is (EntryInfoID, Type):
// scheduling again replaces the earlier reminder.
type Reminder struct {
	Type        Type           `json:"type"`
	EntryInfoID id.EntryInfoID `json:"entryInfoId"`
	UserID      id.UserID      `json:"userId"`
	At          time.Time      `json:"at"`
}

type Notifier interface {
	Schedule(ctx context.Context, r Reminder) error
	Cancel(ctx context.Context, entryInfoID id.EntryInfoID, typ Type) error
	IsEnabled(ctx context.Context, userID id.UserID, typ Type) bool
}

type key struct {
	entryInfoID id.EntryInfoID
	typ         Type
}

// LogNotifier records reminders in memory and writes each change to the
// log. It stands in wherever no delivery service is wired.
type LogNotifier struct {
	mu        sync.Mutex
	scheduled map[key]Reminder
	disabled  map[Type]bool
	logger    *slog.Logger
}

type Option func(*LogNotifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *LogNotifier) { n.logger = logger }
}

// WithDisabled turns reminder types off for every user.
func WithDisabled(types ...Type) Option {
	return func(n *LogNotifier) {
		for _, t := range types {
			n.disabled[t] = true
		}
	}
}

func NewLogNotifier(opts ...Option) *LogNotifier {
	n := &LogNotifier{
		scheduled: make(map[key]Reminder),
		disabled:  make(map[Type]bool),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *LogNotifier) Schedule(ctx context.Context, r Reminder) error {
	n.mu.Lock()
	n.scheduled[key{r.EntryInfoID, r.Type}] = r
	n.mu.Unlock()
	n.logger.InfoContext(ctx, "reminder scheduled",
		"type", r.Type, "entry_info_id", r.EntryInfoID, "user_id", r.UserID, "at", r.At)
	return nil
}

// Cancel is a no-op for reminders that were never scheduled.
func (n *LogNotifier) Cancel(ctx context.Context, entryInfoID id.EntryInfoID, typ Type) error {
	n.mu.Lock()
	_, ok := n.scheduled[key{entryInfoID, typ}]
	delete(n.scheduled, key{entryInfoID, typ})
	n.mu.Unlock()
	if ok {
		n.logger.InfoContext(ctx, "reminder cancelled", "type", typ, "entry_info_id", entryInfoID)
	}
	return nil
}

func (n *LogNotifier) IsEnabled(_ context.Context, _ id.UserID, typ Type) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.disabled[typ]
}

// Pending returns the scheduled reminder for (entryInfoID, typ).
func (n *LogNotifier) Pending(entryInfoID id.EntryInfoID, typ Type) (Reminder, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.scheduled[key{entryInfoID, typ}]
	return r, ok
}
