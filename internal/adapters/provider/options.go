// Package provider is the boundary to the external vision collaborator
// that turns encoded video frames into per-frame observations.
package provider

import (
	"net/http"
	"time"

	"github.com/offsidezero/varcore/internal/domain/dedupe"
)

// HTTPOption applies a configuration option to the HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithModels replaces the model fallback list. Order is the try order.
func WithModels(models ...string) HTTPOption {
	return func(p *HTTPProvider) {
		if len(models) > 0 {
			p.models = models
		}
	}
}

// WithMaxRetries bounds the retry cycles after the first attempt.
func WithMaxRetries(n int) HTTPOption {
	return func(p *HTTPProvider) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithBackoffBase sets the first retry delay; later delays double.
func WithBackoffBase(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		if d > 0 {
			p.backoffBase = d
		}
	}
}

// WithRequestTimeout bounds a single sidecar call.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// IngestorOption applies a configuration option to the Ingestor.
type IngestorOption func(*Ingestor)

// WithDeduper replaces the idempotency guard.
func WithDeduper(d dedupe.Deduper) IngestorOption {
	return func(i *Ingestor) {
		if d != nil {
			i.deduper = d
		}
	}
}
