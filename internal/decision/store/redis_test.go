package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"riskcast/internal/decision"
	"riskcast/pkg/testutil"
)

func TestRedisStoreTTL(t *testing.T) {
	now := testutil.ReferenceTime
	s := NewRedisStore(nil,
		WithRetention(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	t.Run("live decision keeps expiry plus retention", func(t *testing.T) {
		d := sampleDecision("dec_live", "cust-acme", now)
		assert.Equal(t, decision.DefaultTTL+time.Hour, s.ttl(d))
	})

	t.Run("decision saved after expiry keeps one retention window", func(t *testing.T) {
		d := sampleDecision("dec_replay", "cust-acme", now.Add(-30*24*time.Hour))
		assert.Equal(t, time.Hour, s.ttl(d))
	})

	t.Run("zero retention still writes with a floor", func(t *testing.T) {
		bare := NewRedisStore(nil, WithRetention(0), WithClock(func() time.Time { return now }))
		d := sampleDecision("dec_replay", "cust-acme", now.Add(-30*24*time.Hour))
		assert.Equal(t, minTTL, bare.ttl(d))
	})
}
