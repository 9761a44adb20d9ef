// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration.
type Config struct {
	LogFormat string `env:"RISKCAST_LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"RISKCAST_LOG_LEVEL"  envDefault:"info"`

	Ledger LedgerConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Engine EngineConfig
}

// LedgerConfig selects the audit ledger backend.
type LedgerConfig struct {
	Driver string `env:"RISKCAST_LEDGER_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"RISKCAST_LEDGER_DSN"    envDefault:"riskcast-ledger.db"`
}

// RedisConfig configures the decision cache. An empty URL keeps decisions
// in process memory.
type RedisConfig struct {
	URL               string        `env:"RISKCAST_REDIS_URL"`
	PoolSize          int           `env:"RISKCAST_REDIS_POOL_SIZE"          envDefault:"10"`
	MinIdleConns      int           `env:"RISKCAST_REDIS_MIN_IDLE_CONNS"     envDefault:"2"`
	DialTimeout       time.Duration `env:"RISKCAST_REDIS_DIAL_TIMEOUT"       envDefault:"5s"`
	ReadTimeout       time.Duration `env:"RISKCAST_REDIS_READ_TIMEOUT"       envDefault:"3s"`
	WriteTimeout      time.Duration `env:"RISKCAST_REDIS_WRITE_TIMEOUT"      envDefault:"3s"`
	DecisionRetention time.Duration `env:"RISKCAST_REDIS_DECISION_RETENTION" envDefault:"168h"`
}

// KafkaConfig configures the audit record stream. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string      `env:"RISKCAST_KAFKA_BROKERS"        envSeparator:","`
	Topic         string        `env:"RISKCAST_KAFKA_TOPIC"          envDefault:"riskcast.audit.records"`
	Partitions    int32         `env:"RISKCAST_KAFKA_PARTITIONS"     envDefault:"1"`
	Replication   int16         `env:"RISKCAST_KAFKA_REPLICATION"    envDefault:"1"`
	BufferSize    int           `env:"RISKCAST_KAFKA_BUFFER_SIZE"    envDefault:"10000"`
	BatchSize     int           `env:"RISKCAST_KAFKA_BATCH_SIZE"     envDefault:"100"`
	FlushInterval time.Duration `env:"RISKCAST_KAFKA_FLUSH_INTERVAL" envDefault:"500ms"`
}

// EngineConfig tunes reasoning and composition.
type EngineConfig struct {
	ThresholdsFile string        `env:"RISKCAST_THRESHOLDS_FILE"`
	DecisionTTL    time.Duration `env:"RISKCAST_DECISION_TTL"    envDefault:"24h"`
	Samples        int           `env:"RISKCAST_SAMPLES"         envDefault:"10000"`
	Seed           uint64        `env:"RISKCAST_SEED"`
	BatchLimit     int           `env:"RISKCAST_BATCH_LIMIT"     envDefault:"8"`
	ModelVersion   string        `env:"RISKCAST_MODEL_VERSION"   envDefault:"riskcast-core-1"`
}

// StreamEnabled reports whether audit records are streamed to Kafka.
func (c Config) StreamEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

var (
	ledgerDrivers = []string{"sqlite", "postgres", "pgx", "memory"}
	logFormats    = []string{"json", "text"}
)

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(logFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("RISKCAST_LOG_FORMAT must be one of %v, got %q", logFormats, c.LogFormat))
	}
	if !slices.Contains(ledgerDrivers, c.Ledger.Driver) {
		errs = append(errs, fmt.Errorf("RISKCAST_LEDGER_DRIVER must be one of %v, got %q", ledgerDrivers, c.Ledger.Driver))
	}
	if c.Ledger.Driver != "memory" && c.Ledger.DSN == "" {
		errs = append(errs, errors.New("RISKCAST_LEDGER_DSN is required"))
	}
	if c.Engine.DecisionTTL <= 0 {
		errs = append(errs, errors.New("RISKCAST_DECISION_TTL must be positive"))
	}
	if c.Engine.Samples < 1000 {
		errs = append(errs, fmt.Errorf("RISKCAST_SAMPLES must be at least 1000, got %d", c.Engine.Samples))
	}
	if c.StreamEnabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("RISKCAST_KAFKA_TOPIC is required when brokers are set"))
	}
	return errors.Join(errs...)
}
