// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches the log handler from text to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of rating workers.
	WorkerCount int `koanf:"worker_count"`

	// SweepParallelism bounds concurrent rates inside one sweep.
	SweepParallelism int `koanf:"sweep_parallelism"`

	// DedupeSize bounds the chart fingerprint index.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of result store shards.
	ShardCount int `koanf:"shard_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// MaxNotes rejects charts with more onsets than this.
	MaxNotes int `koanf:"max_notes"`

	// JobTimeout bounds the time a worker spends on one job.
	JobTimeout time.Duration `koanf:"job_timeout"`

	// CalibrationPath points at an optional tuning YAML. When set it is
	// loaded at start and watched for changes.
	CalibrationPath string `koanf:"calibration_path"`
}

// New creates a Config with defaults. The context is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		SweepParallelism:    2,
		DedupeSize:          100_000,
		ShardCount:          8,
		MaxLeaderboardLimit: 100,
		MaxNotes:            200_000,
		JobTimeout:          30 * time.Second,
	}
}
