// Package registry resolves id references between frozen pipeline outputs.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/offsidezero/varcore/internal/domain/model"
)

// InMemoryRegistry implements Registry with mutex-guarded maps. Writes
// happen while a clip run assembles; evaluators and the overlay stage
// read concurrently afterwards. Registered values are frozen and shared,
// never copied.
type InMemoryRegistry struct {
	mu        sync.RWMutex
	tracks    map[string]*model.Track
	bySegment map[string][]*model.Track
	calibs    map[string]*model.Calibration
	ranges    []*model.Calibration // sorted by ValidRange.Start
	rulings   map[string]*model.Ruling
	ruled     []string // event ids in registration order
}

// NewInMemoryRegistry creates an empty registry.
func NewInMemoryRegistry(opts ...Option) *InMemoryRegistry {
	r := &InMemoryRegistry{
		tracks:    make(map[string]*model.Track),
		bySegment: make(map[string][]*model.Track),
		calibs:    make(map[string]*model.Calibration),
		rulings:   make(map[string]*model.Ruling),
	}

	// Apply all options
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// PutTrack registers a frozen track.
func (r *InMemoryRegistry) PutTrack(ctx context.Context, t *model.Track) error {
	if t == nil {
		return fmt.Errorf("track: %w", ErrNilValue)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tracks[t.ID]; exists {
		return fmt.Errorf("track %s: %w", t.ID, ErrDuplicateID)
	}
	r.tracks[t.ID] = t
	r.bySegment[t.SegmentID] = append(r.bySegment[t.SegmentID], t)
	return nil
}

// PutCalibration registers a segment calibration. Valid ranges must not
// overlap; at most one calibration may cover any frame.
func (r *InMemoryRegistry) PutCalibration(ctx context.Context, c *model.Calibration) error {
	if c == nil {
		return fmt.Errorf("calibration: %w", ErrNilValue)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.calibs[c.SegmentID]; exists {
		return fmt.Errorf("segment %s: %w", c.SegmentID, ErrDuplicateID)
	}
	for _, other := range r.ranges {
		if c.ValidRange.Overlaps(other.ValidRange) {
			return fmt.Errorf("segments %s and %s: %w",
				c.SegmentID, other.SegmentID, ErrOverlappingRange)
		}
	}

	r.calibs[c.SegmentID] = c
	i := sort.Search(len(r.ranges), func(i int) bool {
		return r.ranges[i].ValidRange.Start >= c.ValidRange.Start
	})
	r.ranges = append(r.ranges, nil)
	copy(r.ranges[i+1:], r.ranges[i:])
	r.ranges[i] = c
	return nil
}

// PutRuling registers the ruling composed for one decision event.
func (r *InMemoryRegistry) PutRuling(ctx context.Context, ruling *model.Ruling) error {
	if ruling == nil {
		return fmt.Errorf("ruling: %w", ErrNilValue)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rulings[ruling.EventID]; exists {
		return fmt.Errorf("event %s: %w", ruling.EventID, ErrDuplicateID)
	}
	r.rulings[ruling.EventID] = ruling
	r.ruled = append(r.ruled, ruling.EventID)
	return nil
}

// Track implements Registry.
func (r *InMemoryRegistry) Track(ctx context.Context, id string) (*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// TracksBySegment implements Registry.
func (r *InMemoryRegistry) TracksBySegment(ctx context.Context, segmentID string) []*model.Track {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks := r.bySegment[segmentID]
	out := make([]*model.Track, len(tracks))
	copy(out, tracks)
	return out
}

// Calibration implements Registry.
func (r *InMemoryRegistry) Calibration(ctx context.Context, segmentID string) (*model.Calibration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.calibs[segmentID]
	if !ok {
		return nil, fmt.Errorf("segment %s: %w", segmentID, ErrNotFound)
	}
	return c, nil
}

// CalibrationAt implements Registry. Ranges never overlap, so at most one
// candidate exists: the last range starting at or before frame.
func (r *InMemoryRegistry) CalibrationAt(ctx context.Context, frame int64) (*model.Calibration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := sort.Search(len(r.ranges), func(i int) bool {
		return r.ranges[i].ValidRange.Start > frame
	})
	if i == 0 {
		return nil, fmt.Errorf("frame %d: %w", frame, ErrNotFound)
	}
	c := r.ranges[i-1]
	if !c.ValidRange.Contains(frame) {
		return nil, fmt.Errorf("frame %d: %w", frame, ErrNotFound)
	}
	return c, nil
}

// Ruling implements Registry.
func (r *InMemoryRegistry) Ruling(ctx context.Context, eventID string) (*model.Ruling, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rl, ok := r.rulings[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return rl, nil
}

// Rulings implements Registry.
func (r *InMemoryRegistry) Rulings(ctx context.Context) []*model.Ruling {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Ruling, 0, len(r.ruled))
	for _, id := range r.ruled {
		out = append(out, r.rulings[id])
	}
	return out
}

// Stats implements Registry.
func (r *InMemoryRegistry) Stats(ctx context.Context) Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Tracks:       len(r.tracks),
		Calibrations: len(r.calibs),
		Rulings:      len(r.rulings),
	}
}
