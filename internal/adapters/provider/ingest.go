// Package provider is the boundary to the external vision collaborator
// that turns encoded video frames into per-frame observations.
package provider

import (
	"context"

	"github.com/offsidezero/varcore/internal/domain/dedupe"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/pkg/logger"
	"github.com/offsidezero/varcore/pkg/metrics"
)

// Ingestor wraps a Provider with the frame-index idempotency guard so
// retried batches never duplicate observations downstream.
type Ingestor struct {
	provider Provider
	deduper  dedupe.Deduper
	log      logger.Logger
}

// NewIngestor creates an ingestor over the given provider. Use one
// ingestor per clip run; frame indices are unique within a clip only.
func NewIngestor(p Provider, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		provider: p,
		deduper:  dedupe.NewInMemoryDeduper(),
		log:      logger.Get().Named("ingest"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Observe implements Provider. Observations whose frame index was already
// ingested are dropped.
func (i *Ingestor) Observe(ctx context.Context, batch FrameBatch) ([]model.FrameObservation, error) {
	obs, err := i.provider.Observe(ctx, batch)
	if err != nil {
		return nil, err
	}

	kept := make([]model.FrameObservation, 0, len(obs))
	for _, o := range obs {
		if i.deduper.SeenAndRecord(ctx, o.FrameIndex) {
			metrics.RecordFrameDuplicate()
			i.log.Debug(ctx, "duplicate frame dropped",
				logger.String("segment", batch.SegmentID),
				logger.Int("frame", int(o.FrameIndex)))
			continue
		}
		metrics.RecordFrameObserved()
		kept = append(kept, o)
	}
	return kept, nil
}
