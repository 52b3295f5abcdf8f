// Package provider is the boundary to the external vision collaborator
// that turns encoded video frames into per-frame observations.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/pkg/logger"
	"github.com/offsidezero/varcore/pkg/metrics"
)

// Default HTTP provider configuration constants.
const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 2 // max 2 retries = 3 total attempts
	defaultBackoffBase    = 500 * time.Millisecond
)

// defaultModels is the ordered fallback list tried until one succeeds.
func defaultModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-3-flash-preview",
		"gemini-2.5-pro",
	}
}

// HTTPProvider posts JPEG frame batches to a vision sidecar and decodes
// the per-frame observations it reports back.
type HTTPProvider struct {
	baseURL     string
	models      []string
	maxRetries  int
	backoffBase time.Duration
	client      *http.Client
	log         logger.Logger
}

// NewHTTPProvider creates an HTTP provider for the sidecar at baseURL.
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:     baseURL,
		models:      defaultModels(),
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
		client:      &http.Client{Timeout: defaultRequestTimeout},
		log:         logger.Get().Named("provider"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Observe implements Provider. Models are tried in order and the first
// success wins; quota exhaustion never falls through to another model.
// Timeout-class failures retry the whole cycle with exponential backoff
// up to the bounded attempt count.
func (p *HTTPProvider) Observe(ctx context.Context, batch FrameBatch) ([]model.FrameObservation, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordProviderRetry()
			if err := p.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		for _, name := range p.models {
			obs, err := p.observeOnce(ctx, name, batch)
			if err == nil {
				return obs, nil
			}
			if errors.Is(err, ErrProviderQuota) {
				metrics.RecordProviderFailure("quota")
				return nil, err
			}
			p.log.Warn(ctx, "model attempt failed",
				logger.String("model", name),
				logger.String("segment", batch.SegmentID),
				logger.Error(err))
			lastErr = err
		}

		// Only timeout-class failures earn another cycle. A malformed
		// response decodes no better on a retry of identical input.
		if !errors.Is(lastErr, ErrProviderTimeout) {
			break
		}
	}

	switch {
	case errors.Is(lastErr, ErrProviderTimeout):
		metrics.RecordProviderFailure("timeout")
	case errors.Is(lastErr, ErrProviderMalformed):
		metrics.RecordProviderFailure("malformed")
	}
	return nil, fmt.Errorf("all models failed for segment %s: %w", batch.SegmentID, lastErr)
}

// observeOnce performs a single POST against one model.
func (p *HTTPProvider) observeOnce(ctx context.Context, modelName string, batch FrameBatch) ([]model.FrameObservation, error) {
	metrics.RecordProviderCall()
	started := time.Now()

	body, contentType, err := encodeBatch(modelName, batch)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}

	url := fmt.Sprintf("%s/observe", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		// Transport failures retry like timeouts.
		return nil, fmt.Errorf("posting batch: %v: %w", transportReason(err), ErrProviderTimeout)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %v: %w", err, ErrProviderTimeout)
	}

	if err := classifyStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	obs, err := decodeResponse(respBody)
	if err != nil {
		return nil, err
	}

	metrics.RecordProviderLatency(float64(time.Since(started).Milliseconds()))
	p.log.Debug(ctx, "batch observed",
		logger.String("model", modelName),
		logger.String("segment", batch.SegmentID),
		logger.Int("frames", len(obs)))
	return obs, nil
}

// encodeBatch builds the multipart request body: identification fields,
// the prior-context JSON and one file part per frame.
func encodeBatch(modelName string, batch FrameBatch) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := []struct{ key, value string }{
		{"clip_id", batch.ClipID},
		{"segment_id", batch.SegmentID},
		{"frame_rate", strconv.FormatFloat(batch.FrameRate, 'f', -1, 64)},
		{"model", modelName},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.key, f.value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", f.key, err)
		}
	}

	if len(batch.Prior) > 0 {
		prior, err := json.Marshal(batch.Prior)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling prior context: %w", err)
		}
		if err := writer.WriteField("prior", string(prior)); err != nil {
			return nil, "", fmt.Errorf("writing prior context: %w", err)
		}
	}

	for _, frame := range batch.Frames {
		part, err := writer.CreateFormFile("frames", fmt.Sprintf("%d.jpg", frame.Index))
		if err != nil {
			return nil, "", fmt.Errorf("creating frame part %d: %w", frame.Index, err)
		}
		if _, err := part.Write(frame.JPEG); err != nil {
			return nil, "", fmt.Errorf("writing frame %d: %w", frame.Index, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

// classifyStatus maps HTTP status codes onto the failure taxonomy.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %s: %w", status, body, ErrProviderQuota)
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return fmt.Errorf("status %d: %s: %w", status, body, ErrProviderTimeout)
	default:
		return fmt.Errorf("status %d: %s: %w", status, body, ErrProviderMalformed)
	}
}

// backoff waits before the next retry cycle, doubling per attempt.
func (p *HTTPProvider) backoff(ctx context.Context, attempt int) error {
	delay := p.backoffBase << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transportReason prefers the net.Error timeout detail when present.
func transportReason(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return err.Error()
}
