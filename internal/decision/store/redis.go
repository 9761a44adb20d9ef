package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"riskcast/internal/decision"
	"riskcast/pkg/platform/sentinel"
)

const (
	decisionKeyPrefix = "riskcast:decision:"
	customerKeyPrefix = "riskcast:customer:"

	// DefaultRetention is how long a decision is kept past its expiry so
	// late acknowledgements and feedback still find it.
	DefaultRetention = 7 * 24 * time.Hour

	minTTL = time.Minute
)

// RedisStore keeps decisions as JSON values with a TTL of expiry plus
// retention. A decision saved after it already expired, as in a replay
// pinned to an old reference time, is kept for one retention window from the
// save. A per-customer set indexes decision IDs.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRetention sets how long decisions outlive their expiry.
func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithClock sets the clock used to compute key TTLs.
func WithClock(clock func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithStoreLogger sets the logger for background index maintenance.
func WithStoreLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		retention: DefaultRetention,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Save(ctx context.Context, d *decision.DecisionObject) error {
	if d == nil || d.DecisionID == "" {
		return fmt.Errorf("save decision: missing decision id: %w", sentinel.ErrInvalidState)
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", d.DecisionID, err)
	}
	ttl := s.ttl(d)

	indexKey := customerKeyPrefix + d.CustomerID + ":decisions"
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, decisionKeyPrefix+d.DecisionID, raw, ttl)
	pipe.SAdd(ctx, indexKey, d.DecisionID)
	pipe.ExpireGT(ctx, indexKey, ttl)
	pipe.ExpireNX(ctx, indexKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save decision %s: %w", d.DecisionID, errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, decisionID string) (*decision.DecisionObject, error) {
	raw, err := s.client.Get(ctx, decisionKeyPrefix+decisionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("decision %s: %w", decisionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision %s: %w", decisionID, errors.Join(sentinel.ErrUnavailable, err))
	}
	var d decision.DecisionObject
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode decision %s: %w", decisionID, err)
	}
	return &d, nil
}

// ListByCustomer returns the customer's retained decisions, newest first.
// Index entries whose decision has aged out are pruned.
func (s *RedisStore) ListByCustomer(ctx context.Context, customerID string) ([]*decision.DecisionObject, error) {
	indexKey := customerKeyPrefix + customerID + ":decisions"
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list decisions for %s: %w", customerID, errors.Join(sentinel.ErrUnavailable, err))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = decisionKeyPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load decisions for %s: %w", customerID, errors.Join(sentinel.ErrUnavailable, err))
	}

	var (
		out   []*decision.DecisionObject
		stale []any
	)
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var d decision.DecisionObject
		if err := json.Unmarshal([]byte(str), &d); err != nil {
			return nil, fmt.Errorf("decode decision %s: %w", ids[i], err)
		}
		out = append(out, &d)
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			s.logger.WarnContext(ctx, "failed to prune decision index",
				"customer_id", customerID,
				"stale", len(stale),
				"error", err,
			)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisStore) ttl(d *decision.DecisionObject) time.Duration {
	floor := max(s.retention, minTTL)
	return max(d.ExpiresAt.Add(s.retention).Sub(s.clock()), floor)
}
