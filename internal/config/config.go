// Package config holds the service configuration and its defaults.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// HTTP listen address.
	Addr string `koanf:"addr"`

	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	DedupeSize  int `koanf:"dedupe_size"`

	// Attempts of the read-compute-write cycle before a conflict surfaces.
	RecalcMaxAttempts int `koanf:"recalc_max_attempts"`
	RecalcBackoffMS   int `koanf:"recalc_backoff_ms"`

	WeightsCacheTTLMS int `koanf:"weights_cache_ttl_ms"`

	// Cron spec of the sweeper that replays failed recompute requests.
	RetrySchedule    string `koanf:"retry_schedule"`
	RetryMaxAttempts int    `koanf:"retry_max_attempts"`
	RetryBufferSize  int    `koanf:"retry_buffer_size"`

	HistoryDefaultLimit int `koanf:"history_default_limit"`
	HistoryMaxLimit     int `koanf:"history_max_limit"`

	// Required in X-Admin-Token for admin endpoints when non-empty.
	AdminToken string `koanf:"admin_token"`

	// Kafka transport is used only when brokers are set.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
	KafkaGroupID string   `koanf:"kafka_group_id"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBDriver:            DriverSQLite,
		DBDSN:               "trustscore.db",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          100_000,
		RecalcMaxAttempts:   5,
		RecalcBackoffMS:     20,
		WeightsCacheTTLMS:   5_000,
		RetrySchedule:       "@every 30s",
		RetryMaxAttempts:    5,
		RetryBufferSize:     1_000,
		HistoryDefaultLimit: 20,
		HistoryMaxLimit:     100,
		KafkaTopic:          "reputation.recompute",
		KafkaGroupID:        "trustscore",
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.RecalcMaxAttempts <= 0:
		return fmt.Errorf("%w: recalc_max_attempts must be positive", ErrInvalidConfig)
	case c.RecalcBackoffMS < 0 || c.WeightsCacheTTLMS < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.RetrySchedule) == "":
		return fmt.Errorf("%w: retry_schedule must not be empty", ErrInvalidConfig)
	case c.RetryMaxAttempts <= 0 || c.RetryBufferSize <= 0:
		return fmt.Errorf("%w: retry limits must be positive", ErrInvalidConfig)
	case c.HistoryDefaultLimit <= 0 || c.HistoryMaxLimit <= 0:
		return fmt.Errorf("%w: history limits must be positive", ErrInvalidConfig)
	case c.HistoryDefaultLimit > c.HistoryMaxLimit:
		return fmt.Errorf("%w: history_default_limit exceeds history_max_limit", ErrInvalidConfig)
	case len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "":
		return fmt.Errorf("%w: kafka_topic must be set with kafka_brokers", ErrInvalidConfig)
	}
	return nil
}

// RecalcBackoff is the base delay between conflicting recalculation attempts.
func (c *Config) RecalcBackoff() time.Duration {
	return time.Duration(c.RecalcBackoffMS) * time.Millisecond
}

// WeightsCacheTTL is how long resolved weights are served from memory.
func (c *Config) WeightsCacheTTL() time.Duration {
	return time.Duration(c.WeightsCacheTTLMS) * time.Millisecond
}

// KafkaEnabled reports whether recompute requests travel over Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
