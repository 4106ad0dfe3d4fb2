package service

import (
	"context"

	entry "entrypass/internal/entry/models"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// Source is everything a snapshot copies. Pack is nil when the entry was
// never submitted.
type Source struct {
	Info *entry.EntryInfo
	Pack *entry.EntryPack
	Data traveler.Data
}

// EntrySource loads snapshot sources. It returns a CodeNotFound error when
// the EntryInfo does not exist.
type EntrySource interface {
	LoadSnapshotSource(ctx context.Context, entryInfoID id.EntryInfoID) (Source, error)
}

type entryReader interface {
	GetEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*entry.EntryInfo, error)
	GetPack(ctx context.Context, entryInfoID id.EntryInfoID) (*entry.EntryPack, error)
}

type travelerReader interface {
	Get(ctx context.Context, entryInfoID id.EntryInfoID) (traveler.Data, error)
}

// StoreSource reads from the entry service and the traveler store.
type StoreSource struct {
	entries   entryReader
	travelers travelerReader
}

func NewStoreSource(entries entryReader, travelers travelerReader) *StoreSource {
	return &StoreSource{entries: entries, travelers: travelers}
}

func (s *StoreSource) LoadSnapshotSource(ctx context.Context, entryInfoID id.EntryInfoID) (Source, error) {
	info, err := s.entries.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		return Source{}, err
	}
	src := Source{Info: info}

	pack, err := s.entries.GetPack(ctx, entryInfoID)
	switch {
	case err == nil:
		src.Pack = pack
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		return Source{}, err
	}

	data, err := s.travelers.Get(ctx, entryInfoID)
	switch {
	case err == nil:
		src.Data = data
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		return Source{}, err
	}
	return src, nil
}
