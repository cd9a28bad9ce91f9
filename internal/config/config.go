// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a .env file, an optional YAML file and COFFEE_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches log output to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// AdminToken guards the /admin routes. Empty disables them.
	AdminToken string `koanf:"admin_token"`

	// DataDir is the BadgerDB directory. Empty keeps state in memory.
	DataDir string `koanf:"data_dir"`

	// HistoryDir receives one "<round>.txt" file per generated round and
	// seeds the history on first start. Empty disables round files.
	HistoryDir string `koanf:"history_dir"`

	// QueueSize bounds the in-memory notification queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of notification workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many notification ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// NotifyRate caps deliveries per second across all workers; 0 disables it.
	NotifyRate float64 `koanf:"notify_rate"`

	// NotifyBurst is the limiter burst.
	NotifyBurst int `koanf:"notify_burst"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// MaxRepeatsLimit caps GET /admin/repeats?limit.
	MaxRepeatsLimit int `koanf:"max_repeats_limit"`

	// Seed makes pairing reproducible when non-zero.
	Seed uint64 `koanf:"seed"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          100_000,
		NotifyRate:          25,
		NotifyBurst:         5,
		MaxLeaderboardLimit: 100,
		MaxRepeatsLimit:     100,
	}
}

// Validate checks the values that cannot be defaulted away.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.NotifyRate < 0:
		return fmt.Errorf("%w: notify_rate must not be negative", ErrInvalidConfig)
	case c.NotifyRate > 0 && c.NotifyBurst < 1:
		return fmt.Errorf("%w: notify_burst must be positive when notify_rate is set", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.MaxRepeatsLimit < 1:
		return fmt.Errorf("%w: max_repeats_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
