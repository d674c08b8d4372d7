package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/skillcalc/internal/domain/calibration"
)

// Environment names.
const (
	EnvPrefix = "SKILLCALC_"
	EnvConfig = "SKILLCALC_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if SKILLCALC_CONFIG is set
//  3. env (prefix SKILLCALC_)
func Load(ctx context.Context) (*Config, error) {
	cfg := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// SKILLCALC_QUEUE_SIZE -> queue_size; flat keys keep their underscores.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.SweepParallelism <= 0:
		return fmt.Errorf("%w: sweep_parallelism must be positive", ErrInvalidConfig)
	case c.ShardCount <= 0:
		return fmt.Errorf("%w: shard_count must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.MaxNotes <= 0:
		return fmt.Errorf("%w: max_notes must be positive", ErrInvalidConfig)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadCalibration reads a tuning YAML on top of calibration.Default and
// validates the result. Keys absent from the file keep their defaults.
func LoadCalibration(_ context.Context, path string) (calibration.Params, error) {
	return loadCalibration(file.Provider(path))
}

func loadCalibration(p koanf.Provider) (calibration.Params, error) {
	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return calibration.Params{}, fmt.Errorf("%w: calibration: %w", ErrLoadConfig, err)
	}
	params := calibration.Default()
	if err := k.UnmarshalWithConf("", &params, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return calibration.Params{}, fmt.Errorf("%w: calibration: %w", ErrLoadConfig, err)
	}
	if err := params.Validate(); err != nil {
		return calibration.Params{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return params, nil
}

// WatchCalibration reloads the tuning file whenever it changes and hands
// every valid result to onChange. Invalid files are reported to onError and
// the previous tuning stays in effect. Watching stops when ctx is done.
func WatchCalibration(ctx context.Context, path string, onChange func(calibration.Params), onError func(error)) error {
	fp := file.Provider(path)
	err := fp.Watch(func(_ interface{}, err error) {
		if err != nil {
			onError(fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, path, err))
			return
		}
		params, err := loadCalibration(fp)
		if err != nil {
			onError(err)
			return
		}
		onChange(params)
	})
	if err != nil {
		return fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, path, err)
	}
	go func() {
		<-ctx.Done()
		_ = fp.Unwatch()
	}()
	return nil
}
