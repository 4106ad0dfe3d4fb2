package traveler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/kv"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore(kv.NewInMemoryStore())
	ctx := context.Background()
	entryID := id.EntryInfoID(uuid.New())

	_, err := store.Get(ctx, entryID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	data := Data{
		EntryInfoID:   entryID,
		DestinationID: "TH",
		Passport:      Passport{PassportNo: "X1234567", FamilyName: "DOE"},
		Funds:         []FundItem{{ID: "f1", Type: "cash", PhotoPath: "photos/f1.jpg"}},
	}
	require.NoError(t, store.Save(ctx, data))

	got, err := store.Get(ctx, entryID)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "X1234567", got.Fields()["passportNo"])
}

func TestStore_RejectsMissingID(t *testing.T) {
	store := NewStore(kv.NewInMemoryStore())
	err := store.Save(context.Background(), Data{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
