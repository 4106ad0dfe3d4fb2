//go:build integration

package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"entrypass/pkg/platform/sentinel"
	"entrypass/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.redis.Client, WithKeyPrefix("test:"))
}

func (s *RedisStoreSuite) SetupTest() {
	require.NoError(s.T(), s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSetIfAbsentAndTake() {
	ctx := context.Background()

	ok, err := s.store.SetIfAbsent(ctx, "entry_pack_index:e1", "p1", 0)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.SetIfAbsent(ctx, "entry_pack_index:e1", "p2", 0)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.Set(ctx, "recent_submission:e1", "payload", 5*time.Minute))
	v, err := s.store.Take(ctx, "recent_submission:e1")
	s.Require().NoError(err)
	s.Equal("payload", v)

	_, err = s.store.Take(ctx, "recent_submission:e1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
