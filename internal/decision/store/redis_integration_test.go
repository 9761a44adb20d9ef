//go:build integration

package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"riskcast/internal/decision"
	"riskcast/pkg/platform/sentinel"
	"riskcast/pkg/testutil"
	"riskcast/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	now   time.Time
	store *RedisStore
	ctx   context.Context
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.now = testutil.ReferenceTime
	s.store = NewRedisStore(s.redis.Client,
		WithRetention(time.Hour),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *RedisStoreSuite) TestRoundTrip() {
	d := sampleDecision("dec_1", "cust-acme", s.now)
	s.Require().NoError(s.store.Save(s.ctx, d))

	got, err := s.store.Get(s.ctx, "dec_1")
	s.Require().NoError(err)
	s.Equal(d.CustomerID, got.CustomerID)
	s.True(d.ExpiresAt.Equal(got.ExpiresAt))

	ttl, err := s.redis.Client.TTL(s.ctx, decisionKeyPrefix+"dec_1").Result()
	s.Require().NoError(err)
	s.InDelta((decision.DefaultTTL + time.Hour).Seconds(), ttl.Seconds(), 5)
}

func (s *RedisStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "dec_missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSaveAfterExpiryIsReadable() {
	d := sampleDecision("dec_old", "cust-acme", s.now.Add(-48*time.Hour))
	s.Require().NoError(s.store.Save(s.ctx, d))

	got, err := s.store.Get(s.ctx, "dec_old")
	s.Require().NoError(err)
	s.True(got.IsExpired(s.now))

	ttl, err := s.redis.Client.TTL(s.ctx, decisionKeyPrefix+"dec_old").Result()
	s.Require().NoError(err)
	s.InDelta(time.Hour.Seconds(), ttl.Seconds(), 5)
}

func (s *RedisStoreSuite) TestListByCustomerPrunesAgedOut() {
	s.Require().NoError(s.store.Save(s.ctx, sampleDecision("dec_a", "cust-acme", s.now.Add(-time.Hour))))
	s.Require().NoError(s.store.Save(s.ctx, sampleDecision("dec_b", "cust-acme", s.now)))
	s.Require().NoError(s.redis.Client.Del(s.ctx, decisionKeyPrefix+"dec_a").Err())

	got, err := s.store.ListByCustomer(s.ctx, "cust-acme")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("dec_b", got[0].DecisionID)

	members, err := s.redis.Client.SMembers(s.ctx, customerKeyPrefix+"cust-acme:decisions").Result()
	s.Require().NoError(err)
	s.Equal([]string{"dec_b"}, members)
}

// failingSRem fails every SREM so index pruning errors can be observed.
type failingSRem struct{}

func (failingSRem) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failingSRem) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "srem" {
			err := errors.New("READONLY replica")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failingSRem) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (s *RedisStoreSuite) TestPruneFailureIsLogged() {
	opts, err := redis.ParseURL(s.redis.URL)
	s.Require().NoError(err)
	client := redis.NewClient(opts)
	defer client.Close()
	client.AddHook(failingSRem{})

	var logs bytes.Buffer
	st := NewRedisStore(client,
		WithRetention(time.Hour),
		WithClock(func() time.Time { return s.now }),
		WithStoreLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)
	s.Require().NoError(st.Save(s.ctx, sampleDecision("dec_a", "cust-acme", s.now)))
	s.Require().NoError(st.Save(s.ctx, sampleDecision("dec_b", "cust-acme", s.now)))
	s.Require().NoError(client.Del(s.ctx, decisionKeyPrefix+"dec_a").Err())

	got, err := st.ListByCustomer(s.ctx, "cust-acme")
	s.Require().NoError(err)
	s.Len(got, 1)
	s.Contains(logs.String(), "failed to prune decision index")
	s.Contains(logs.String(), "READONLY replica")
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}
