// Package config defines analyzer configuration and loading.
//
// Conventions:
// - New(ctx) builds a Config with defaults; Load(ctx) layers an optional
//   YAML file and environment variables on top and validates the result.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"runtime"

	"github.com/offsidezero/varcore/internal/domain/types"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the Prometheus listen address, e.g. ":9090".
	// Empty disables the listener.
	MetricsAddr string `koanf:"metrics_addr"`

	// ProviderURL is the base URL of the vision sidecar.
	ProviderURL string `koanf:"provider_url"`

	// ProviderModels are tried in order per batch; first success wins.
	// Empty uses the provider's built-in fallback list.
	ProviderModels []string `koanf:"provider_models"`

	// ProviderTimeoutMS bounds one provider call.
	ProviderTimeoutMS int `koanf:"provider_timeout_ms"`

	// ProviderMaxRetries bounds retry cycles after timeout-class failures.
	ProviderMaxRetries int `koanf:"provider_max_retries"`

	// ProviderBackoffMS is the base backoff, doubled each retry cycle.
	ProviderBackoffMS int `koanf:"provider_backoff_ms"`

	// BatchSize is the number of frames per provider batch.
	BatchSize int `koanf:"batch_size"`

	// FrameRate is the clip frame rate in frames per second.
	FrameRate float64 `koanf:"frame_rate"`

	// PlayDirection is "+y" or "-y": the attacking team's direction after
	// pitch normalization.
	PlayDirection string `koanf:"play_direction"`

	// InvolvementRadiusM gates offside involvement, in meters from the ball.
	InvolvementRadiusM float64 `koanf:"involvement_radius_m"`

	// ExcludeKeeper drops the rearmost defender from the offside line.
	ExcludeKeeper bool `koanf:"exclude_keeper"`

	// NaturalThreshold is the arm extension ratio above which the arm
	// position counts as unnatural.
	NaturalThreshold float64 `koanf:"natural_threshold"`

	// ContactRadiusM is the ball-to-arm contact distance in meters.
	ContactRadiusM float64 `koanf:"contact_radius_m"`

	// SlowFactor is replay speed relative to real time.
	SlowFactor float64 `koanf:"slow_factor"`

	// EventQueueSize bounds the in-memory decision event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers. Zero picks a
	// CPU-proportional default.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the frame deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// CachePath locates the SQLite analysis cache. Empty disables caching.
	CachePath string `koanf:"cache_path"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:           "info",
		MetricsAddr:        ":9090",
		ProviderURL:        "http://127.0.0.1:8089",
		ProviderTimeoutMS:  30_000,
		ProviderMaxRetries: 2,
		ProviderBackoffMS:  500,
		BatchSize:          16,
		FrameRate:          25,
		PlayDirection:      "+y",
		InvolvementRadiusM: 9.0,
		NaturalThreshold:   0.6,
		ContactRadiusM:     0.45,
		SlowFactor:         0.25,
		EventQueueSize:     1024,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         100_000,
	}
	return c
}

// Direction maps the configured play direction onto the domain enum.
func (c *Config) Direction() types.PlayDirection {
	if c.PlayDirection == "-y" {
		return types.PlayTowardNegativeY
	}
	return types.PlayTowardPositiveY
}
