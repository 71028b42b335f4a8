package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends selectable through ARBOR_STORE.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config holds the process-level settings of the arbor CLI. Flags override
// these values; the environment only provides defaults.
type Config struct {
	Store        string        `env:"ARBOR_STORE" envDefault:"memory"`
	StorePath    string        `env:"ARBOR_STORE_PATH"`
	RedisAddr    string        `env:"ARBOR_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix  string        `env:"ARBOR_REDIS_PREFIX" envDefault:"arbor:session:"`
	SessionTTL   time.Duration `env:"ARBOR_SESSION_TTL"`
	LogLevel     string        `env:"ARBOR_LOG_LEVEL" envDefault:"info"`
	LogJSON      bool          `env:"ARBOR_LOG_JSON"`
	MetricsAddr  string        `env:"ARBOR_METRICS_ADDR"`
	OTelEndpoint string        `env:"ARBOR_OTEL_ENDPOINT"`

	// EncryptionKey is a base64 AES-256 key. When set, sessions are sealed
	// before they reach the store.
	EncryptionKey  string   `env:"ARBOR_ENCRYPTION_KEY"`
	FallbackKeys   []string `env:"ARBOR_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`
	RedactPatterns []string `env:"ARBOR_REDACT" envSeparator:","`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the store selection.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("ARBOR_STORE=sqlite requires ARBOR_STORE_PATH")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("negative session TTL %s", c.SessionTTL)
	}
	if c.EncryptionKey == "" && len(c.FallbackKeys) > 0 {
		return fmt.Errorf("ARBOR_ENCRYPTION_FALLBACK_KEYS requires ARBOR_ENCRYPTION_KEY")
	}
	if _, _, err := c.Keys(); err != nil {
		return err
	}
	return nil
}

// Keys decodes the active and fallback encryption keys. active is nil when
// encryption is disabled.
func (c Config) Keys() (active []byte, fallback [][]byte, err error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = base64.StdEncoding.DecodeString(c.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("ARBOR_ENCRYPTION_KEY: %w", err)
	}
	for i, k := range c.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, nil, fmt.Errorf("ARBOR_ENCRYPTION_FALLBACK_KEYS[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}
