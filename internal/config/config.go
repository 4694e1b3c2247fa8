// Package config loads the optional deepsearchd.yaml service configuration.
// Process-level settings (listen address, database path, log level) come
// from environment variables in cmd/deepsearchd; this file tunes the cache
// itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the top-level deepsearchd.yaml structure.
type File struct {
	Cache     CacheConfig     `yaml:"cache"`
	Generator GeneratorConfig `yaml:"generator"`
	Retention RetentionConfig `yaml:"retention"`
}

// CacheConfig tunes the cache service.
type CacheConfig struct {
	// TopN is the size of the most-reused leaderboard in cache-stats.
	TopN int `yaml:"top_n"`

	// DegradedMode allows generate to bypass an unreachable store and call
	// the generator directly (still single-flighted), flagging the response
	// as degraded. Off by default: the safe behavior is to fail closed.
	DegradedMode bool `yaml:"degraded_mode"`
}

// GeneratorConfig configures the external generator call.
type GeneratorConfig struct {
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetentionConfig controls out-of-band pruning of stale entries.
type RetentionConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxAgeDays prunes entries not used for this many days.
	MaxAgeDays int `yaml:"max_age_days"`

	// MaxUsage protects popular entries: only entries with usage_count at
	// or below this survive-threshold are pruned.
	MaxUsage int64 `yaml:"max_usage"`

	// IntervalMin is how often the pruner runs.
	IntervalMin int `yaml:"interval_min"`
}

// Default returns the configuration used when no file is present.
func Default() *File {
	return &File{
		Cache: CacheConfig{TopN: 10},
		Generator: GeneratorConfig{
			Model:      "gpt-4o-mini",
			TimeoutSec: 120,
		},
		Retention: RetentionConfig{
			MaxAgeDays:  180,
			MaxUsage:    2,
			IntervalMin: 60,
		},
	}
}

// LoadFile reads, parses, and validates a YAML config file, applying
// defaults for unset fields.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data.
func Parse(data []byte) (*File, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *File) error {
	if cfg.Cache.TopN <= 0 {
		return fmt.Errorf("cache.top_n must be positive, got %d", cfg.Cache.TopN)
	}
	if cfg.Generator.Model == "" {
		return fmt.Errorf("generator.model must not be empty")
	}
	if cfg.Generator.TimeoutSec <= 0 {
		return fmt.Errorf("generator.timeout_sec must be positive, got %d", cfg.Generator.TimeoutSec)
	}
	if cfg.Retention.Enabled {
		if cfg.Retention.MaxAgeDays <= 0 {
			return fmt.Errorf("retention.max_age_days must be positive, got %d", cfg.Retention.MaxAgeDays)
		}
		if cfg.Retention.IntervalMin <= 0 {
			return fmt.Errorf("retention.interval_min must be positive, got %d", cfg.Retention.IntervalMin)
		}
	}
	return nil
}

// GeneratorTimeout returns the generator timeout as a duration.
func (f *File) GeneratorTimeout() time.Duration {
	return time.Duration(f.Generator.TimeoutSec) * time.Second
}

// RetentionMaxAge returns the pruning age cutoff as a duration.
func (f *File) RetentionMaxAge() time.Duration {
	return time.Duration(f.Retention.MaxAgeDays) * 24 * time.Hour
}

// RetentionInterval returns how often the pruner runs.
func (f *File) RetentionInterval() time.Duration {
	return time.Duration(f.Retention.IntervalMin) * time.Minute
}
