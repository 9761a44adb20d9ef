package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Engine.DecisionTTL)
	assert.Equal(t, 10_000, cfg.Engine.Samples)
	assert.Equal(t, 168*time.Hour, cfg.Redis.DecisionRetention)
	assert.False(t, cfg.StreamEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RISKCAST_LEDGER_DRIVER", "pgx")
	t.Setenv("RISKCAST_LEDGER_DSN", "postgres://riskcast@localhost/riskcast")
	t.Setenv("RISKCAST_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RISKCAST_KAFKA_FLUSH_INTERVAL", "2s")
	t.Setenv("RISKCAST_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Ledger.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Kafka.FlushInterval)
	assert.Equal(t, uint64(42), cfg.Engine.Seed)
	assert.True(t, cfg.StreamEnabled())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	t.Setenv("RISKCAST_LOG_FORMAT", "xml")
	t.Setenv("RISKCAST_LEDGER_DRIVER", "mysql")
	t.Setenv("RISKCAST_DECISION_TTL", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "RISKCAST_LOG_FORMAT")
	assert.ErrorContains(t, err, "RISKCAST_LEDGER_DRIVER")
	assert.ErrorContains(t, err, "RISKCAST_DECISION_TTL")
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("RISKCAST_DECISION_TTL", "a day")
	_, err := Load()
	assert.Error(t, err)
}
