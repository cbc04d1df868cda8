// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Addr            string        `env:"VALIDBUS_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"VALIDBUS_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"VALIDBUS_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// DatabaseURL is the PostgreSQL DSN. When empty the service falls back to
	// the in-memory store, which is only suitable for local development.
	DatabaseURL string `env:"VALIDBUS_DATABASE_URL"`

	// RedisURL enables the validator outcome cache when set.
	RedisURL        string        `env:"VALIDBUS_REDIS_URL"`
	OutcomeCacheTTL time.Duration `env:"VALIDBUS_OUTCOME_CACHE_TTL" envDefault:"15m"`

	// KafkaBrokers enables the audit trail publisher when non-empty.
	KafkaBrokers    []string `env:"VALIDBUS_KAFKA_BROKERS"`
	AuditTopic      string   `env:"VALIDBUS_AUDIT_TOPIC" envDefault:"validbus.audit"`
	AuditBufferSize int      `env:"VALIDBUS_AUDIT_BUFFER" envDefault:"1024"`

	// APIKeys is the JSON registry of API keys to caller grants, consumed by
	// auth.ParseKeyStore.
	APIKeys string `env:"VALIDBUS_API_KEYS"`
}

// Load reads and validates configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.OutcomeCacheTTL <= 0 {
		return Config{}, fmt.Errorf("VALIDBUS_OUTCOME_CACHE_TTL must be positive")
	}
	if cfg.AuditBufferSize <= 0 {
		return Config{}, fmt.Errorf("VALIDBUS_AUDIT_BUFFER must be positive")
	}
	return cfg, nil
}
