package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "entrypass/pkg/domain"
	"entrypass/pkg/testutil"
)

func TestLogNotifier_ScheduleReplacesAndCancels(t *testing.T) {
	ctx := context.Background()
	n := NewLogNotifier(WithLogger(testutil.DiscardLogger()))
	entryInfoID := id.EntryInfoID(uuid.New())
	at := time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)

	require.NoError(t, n.Schedule(ctx, Reminder{Type: TypeSubmissionWindow, EntryInfoID: entryInfoID, At: at}))
	require.NoError(t, n.Schedule(ctx, Reminder{Type: TypeSubmissionWindow, EntryInfoID: entryInfoID, At: at.Add(time.Hour)}))

	got, ok := n.Pending(entryInfoID, TypeSubmissionWindow)
	require.True(t, ok)
	assert.Equal(t, at.Add(time.Hour), got.At)

	require.NoError(t, n.Cancel(ctx, entryInfoID, TypeSubmissionWindow))
	_, ok = n.Pending(entryInfoID, TypeSubmissionWindow)
	assert.False(t, ok)

	assert.NoError(t, n.Cancel(ctx, entryInfoID, TypeDeadline), "cancelling nothing is fine")
}

func TestLogNotifier_Disabled(t *testing.T) {
	n := NewLogNotifier(WithDisabled(TypeDeadline))
	userID := id.UserID(uuid.New())

	assert.False(t, n.IsEnabled(context.Background(), userID, TypeDeadline))
	assert.True(t, n.IsEnabled(context.Background(), userID, TypeSubmissionWindow))
}
