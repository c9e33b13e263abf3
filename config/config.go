// Package config loads and validates the application configuration from a
// JSON file with environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fulqrun/crmstore/errors"
)

// NATSConfig holds the connection settings for the storage substrate.
type NATSConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	Bucket        string        `json:"bucket,omitempty"`
}

// HTTPConfig holds the settings for the health and metrics endpoint.
type HTTPConfig struct {
	Addr            string        `json:"addr,omitempty"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty"`
}

// StoreConfig holds data-layer tuning.
type StoreConfig struct {
	IndexCacheSize int  `json:"index_cache_size,omitempty"`
	SeedSampleData bool `json:"seed_sample_data,omitempty"`
}

// Config is the complete application configuration.
type Config struct {
	NATS  NATSConfig  `json:"nats"`
	HTTP  HTTPConfig  `json:"http,omitempty"`
	Store StoreConfig `json:"store,omitempty"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Bucket:        "crmstore",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			IndexCacheSize: 1024,
		},
	}
}

// Load reads a JSON config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "read config file")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "nats.url required")
	}
	if c.NATS.Bucket == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "nats.bucket required")
	}
	if c.Store.IndexCacheSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("index_cache_size must be >= 0, got %d", c.Store.IndexCacheSize))
	}
	return nil
}
