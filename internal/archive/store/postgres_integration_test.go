//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/sentinel"
	"entrypass/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(Migrate(context.Background(), s.pg.DB))
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.Exec(`TRUNCATE snapshots CASCADE`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	entry := id.EntryInfoID(uuid.New())
	snap := newSnapshot(entry, time.Now().UTC().Truncate(time.Microsecond))

	s.Require().NoError(s.store.Create(ctx, snap))
	s.ErrorIs(s.store.Create(ctx, snap), sentinel.ErrConflict)

	got, err := s.store.Get(ctx, snap.ID)
	s.Require().NoError(err)
	s.Equal(snap.PhotoManifest, got.PhotoManifest)

	var photos int
	s.Require().NoError(s.pg.DB.QueryRow(`SELECT count(*) FROM snapshot_photos WHERE snapshot_id = $1`, snap.ID.String()).Scan(&photos))
	s.Equal(1, photos)

	list, err := s.store.ListByEntryInfo(ctx, entry)
	s.Require().NoError(err)
	s.Len(list, 1)

	s.Require().NoError(s.store.Delete(ctx, snap.ID))
	s.Require().NoError(s.pg.DB.QueryRow(`SELECT count(*) FROM snapshot_photos WHERE snapshot_id = $1`, snap.ID.String()).Scan(&photos))
	s.Zero(photos)
}
