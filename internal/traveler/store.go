package traveler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/kv"
	"entrypass/pkg/platform/sentinel"
)

const keyPrefix = "traveler:"

// Store persists traveler data as JSON in the key-value collaborator.
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) Save(ctx context.Context, data Data) error {
	if data.EntryInfoID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "entry info id is required")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal traveler data: %w", err)
	}
	if err := s.kv.Set(ctx, keyPrefix+data.EntryInfoID.String(), string(raw), 0); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save traveler data")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, entryInfoID id.EntryInfoID) (Data, error) {
	raw, err := s.kv.Get(ctx, keyPrefix+entryInfoID.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		return Data{}, dErrors.New(dErrors.CodeNotFound, "traveler data not found")
	}
	if err != nil {
		return Data{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load traveler data")
	}
	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Data{}, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt traveler data")
	}
	return data, nil
}
