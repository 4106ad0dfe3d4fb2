// Package store persists EntryInfo and EntryPack records in the key-value
// collaborator.
//
// Keys:
//   - entry_info:<entryInfoID>        EntryInfo JSON
//   - entry_pack:<packID>             EntryPack JSON
//   - entry_pack_index:<entryInfoID>  packID, claimed once with SetIfAbsent
//   - recent_submission:<entryInfoID> RecentSubmission JSON with a TTL
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entrypass/internal/entry/models"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/kv"
	"entrypass/pkg/platform/sentinel"
)

const (
	entryInfoPrefix = "entry_info:"
	packPrefix      = "entry_pack:"
	packIndexPrefix = "entry_pack_index:"
	recentPrefix    = "recent_submission:"
)

// Store returns sentinel errors; callers translate them to domain errors.
type Store struct {
	kv kv.Store
}

func New(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) FindEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error) {
	var info models.EntryInfo
	if err := s.load(ctx, entryInfoPrefix+entryInfoID.String(), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateEntryInfo stores info unless a record with the same id exists. It
// reports whether this call created it.
func (s *Store) CreateEntryInfo(ctx context.Context, info *models.EntryInfo) (bool, error) {
	raw, err := json.Marshal(info)
	if err != nil {
		return false, fmt.Errorf("marshal entry info: %w", err)
	}
	return s.kv.SetIfAbsent(ctx, entryInfoPrefix+info.ID.String(), string(raw), 0)
}

func (s *Store) SaveEntryInfo(ctx context.Context, info *models.EntryInfo) error {
	return s.save(ctx, entryInfoPrefix+info.ID.String(), info, 0)
}

func (s *Store) FindPack(ctx context.Context, packID id.EntryPackID) (*models.EntryPack, error) {
	var pack models.EntryPack
	if err := s.load(ctx, packPrefix+packID.String(), &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// FindPackByEntryInfo resolves the pack through the index key.
func (s *Store) FindPackByEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error) {
	packID, err := s.PackIDFor(ctx, entryInfoID)
	if err != nil {
		return nil, err
	}
	return s.FindPack(ctx, packID)
}

func (s *Store) PackIDFor(ctx context.Context, entryInfoID id.EntryInfoID) (id.EntryPackID, error) {
	raw, err := s.kv.Get(ctx, packIndexPrefix+entryInfoID.String())
	if err != nil {
		return id.EntryPackID{}, err
	}
	packID, err := id.ParseEntryPackID(raw)
	if err != nil {
		return id.EntryPackID{}, fmt.Errorf("corrupt pack index for %s: %w", entryInfoID, err)
	}
	return packID, nil
}

// ClaimPackIndex binds packID to entryInfoID if no pack is bound yet. Only
// one concurrent caller wins.
func (s *Store) ClaimPackIndex(ctx context.Context, entryInfoID id.EntryInfoID, packID id.EntryPackID) (bool, error) {
	return s.kv.SetIfAbsent(ctx, packIndexPrefix+entryInfoID.String(), packID.String(), 0)
}

func (s *Store) SavePack(ctx context.Context, pack *models.EntryPack) error {
	return s.save(ctx, packPrefix+pack.ID.String(), pack, 0)
}

// DeletePack removes a pack record that lost the index claim.
func (s *Store) DeletePack(ctx context.Context, packID id.EntryPackID) error {
	return s.kv.Remove(ctx, packPrefix+packID.String())
}

// StageRecent writes the duplicate-submission marker. A newer marker
// replaces an older one.
func (s *Store) StageRecent(ctx context.Context, marker models.RecentSubmission, ttl time.Duration) error {
	return s.save(ctx, recentPrefix+marker.EntryInfoID.String(), marker, ttl)
}

// TakeRecent consumes the marker. A second call returns sentinel.ErrNotFound.
func (s *Store) TakeRecent(ctx context.Context, entryInfoID id.EntryInfoID) (models.RecentSubmission, error) {
	raw, err := s.kv.Take(ctx, recentPrefix+entryInfoID.String())
	if err != nil {
		return models.RecentSubmission{}, err
	}
	var marker models.RecentSubmission
	if err := json.Unmarshal([]byte(raw), &marker); err != nil {
		return models.RecentSubmission{}, fmt.Errorf("decode recent submission: %w", err)
	}
	return marker, nil
}

func (s *Store) load(ctx context.Context, key string, v any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(raw), ttl)
}

// IsNotFound reports whether err is a missing-key error from this store.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
