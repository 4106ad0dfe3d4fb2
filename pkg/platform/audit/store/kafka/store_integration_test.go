//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "entrypass/pkg/platform/audit"
	"entrypass/pkg/testutil/containers"
)

func TestStore_ProducesEvents(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := New([]string{rp.Broker}, "entrypass.audit")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureTopic(ctx, 1, 1))
	require.NoError(t, store.EnsureTopic(ctx, 1, 1), "second call is a no-op")

	require.NoError(t, store.Append(ctx, audit.Event{
		Subject:  "snap-1",
		Action:   string(audit.EventSnapshotCreated),
		Category: audit.CategoryCompliance,
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics("entrypass.audit"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, "snap-1", got.Subject)
}
