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
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if VARCORE_CONFIG is set
//  3. env (prefix VARCORE_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("VARCORE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrLoadConfig)
		}
	}

	// Environment variables: VARCORE_PROVIDER_URL, VARCORE_QUEUE_SIZE, ...
	// Map env keys like VARCORE_QUEUE_SIZE -> queue_size (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("VARCORE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "varcore_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrLoadConfig)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrLoadConfig)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations no component can run with. MetricsAddr
// and CachePath stay unchecked; empty disables the feature.
func (c *Config) validate() error {
	if c.ProviderURL == "" {
		return fmt.Errorf("provider_url must not be empty: %w", ErrInvalidConfig)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive: %w", ErrInvalidConfig)
	}
	switch c.PlayDirection {
	case "+y", "-y":
	default:
		return fmt.Errorf("play_direction must be +y or -y: %w", ErrInvalidConfig)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive: %w", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive: %w", ErrInvalidConfig)
	}
	return nil
}
