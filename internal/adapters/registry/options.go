// Package registry resolves id references between frozen pipeline outputs.
package registry

import "github.com/offsidezero/varcore/internal/domain/model"

// Option applies a configuration option to the InMemoryRegistry.
type Option func(*InMemoryRegistry)

// WithCapacityHint presizes the internal maps for an expected clip size.
func WithCapacityHint(tracks, segments, events int) Option {
	return func(r *InMemoryRegistry) {
		if tracks > 0 {
			r.tracks = make(map[string]*model.Track, tracks)
		}
		if segments > 0 {
			r.bySegment = make(map[string][]*model.Track, segments)
			r.calibs = make(map[string]*model.Calibration, segments)
		}
		if events > 0 {
			r.rulings = make(map[string]*model.Ruling, events)
		}
	}
}
