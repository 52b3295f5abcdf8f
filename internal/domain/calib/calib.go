// Package calib fits per-segment pixel-to-pitch homographies from landmark
// observations and exposes the projection operations over them.
package calib

import (
	"context"
	"fmt"
	"sync"

	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
)

// Default calibrator configuration constants.
const (
	// defaultResidualTolerance is the reprojection RMS, in meters, above
	// which a fit is rejected.
	defaultResidualTolerance = 0.5
	// minLandmarks is the minimum number of distinct landmark
	// correspondences needed for a fit.
	minLandmarks = 4
	// degenerateSpread is the perpendicular spread, in meters, below which
	// a landmark set counts as collinear.
	degenerateSpread = 0.25
)

// Option applies a configuration option to the Calibrator.
type Option func(*Calibrator)

// WithResidualTolerance sets the reprojection RMS ceiling, in meters,
// above which fits are rejected.
func WithResidualTolerance(tol float64) Option {
	return func(c *Calibrator) {
		if tol > 0 {
			c.residualTolerance = tol
		}
	}
}

// WithTemplate replaces the canonical landmark coordinate table, e.g. for
// non-standard pitch dimensions.
func WithTemplate(template map[types.LandmarkID]geometry.Point) Option {
	return func(c *Calibrator) {
		if len(template) > 0 {
			c.template = template
		}
	}
}

// segment accumulates landmark correspondences for one camera-stable
// segment and caches the last fit.
type segment struct {
	id    string
	frames types.FrameRange
	// latest observed pixel position per landmark; refitting uses one
	// correspondence per landmark id.
	landmarks map[types.LandmarkID]geometry.Point
	dirty     bool
	calib     *model.Calibration
	fitErr    error
}

// Calibrator owns the per-segment homography fits. Correspondences are
// accumulated per segment; fits happen lazily on the first projection
// query after the landmark set changes.
type Calibrator struct {
	mu                sync.Mutex
	segments          map[string]*segment
	template          map[types.LandmarkID]geometry.Point
	residualTolerance float64
	log               logger.Logger
}

// New creates a Calibrator with the standard pitch template.
func New(opts ...Option) *Calibrator {
	c := &Calibrator{
		segments:          make(map[string]*segment),
		template:          PitchTemplate(),
		residualTolerance: defaultResidualTolerance,
		log:               logger.Get().Named("calib"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Observe folds one frame's landmark sightings into the segment's
// correspondence set and widens the segment's valid frame range. Landmarks
// without template coordinates are ignored. Changing the set marks the
// segment dirty; the next query refits.
func (c *Calibrator) Observe(ctx context.Context, segmentID string, obs model.FrameObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seg, ok := c.segments[segmentID]
	if !ok {
		seg = &segment{
			id:        segmentID,
			frames:    types.FrameRange{Start: obs.FrameIndex, End: obs.FrameIndex},
			landmarks: make(map[types.LandmarkID]geometry.Point),
		}
		c.segments[segmentID] = seg
	}

	if obs.FrameIndex < seg.frames.Start {
		seg.frames.Start = obs.FrameIndex
	}
	if obs.FrameIndex > seg.frames.End {
		seg.frames.End = obs.FrameIndex
	}

	for _, lm := range obs.Landmarks {
		if _, known := c.template[lm.ID]; !known {
			c.log.Debug(ctx, "ignoring landmark without template coordinates",
				logger.String("landmark", string(lm.ID)),
				logger.String("segment", segmentID))
			continue
		}
		seg.landmarks[lm.ID] = lm.ImagePoint
		seg.dirty = true
	}
}

// Calibration returns the fitted calibration for a segment, refitting
// lazily when the landmark set changed since the last fit. The error wraps
// ErrInsufficientLandmarks, ErrDegenerateLandmarks or ErrResidualTooHigh
// when the segment cannot be calibrated.
func (c *Calibrator) Calibration(ctx context.Context, segmentID string) (*model.Calibration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seg, ok := c.segments[segmentID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown segment %q", ErrInsufficientLandmarks, segmentID)
	}
	if seg.dirty {
		seg.calib, seg.fitErr = c.fit(ctx, seg)
		seg.dirty = false
	}
	if seg.fitErr != nil {
		return nil, seg.fitErr
	}
	if seg.calib == nil {
		// Frames arrived but none carried a usable template landmark, so
		// the segment was never marked for fitting.
		return nil, fmt.Errorf("%w: segment %q has 0, need %d",
			ErrInsufficientLandmarks, segmentID, minLandmarks)
	}
	if seg.calib.ValidRange != seg.frames {
		// Frames observed since the fit extend the segment's coverage;
		// the transform itself is unchanged.
		fresh := *seg.calib
		fresh.ValidRange = seg.frames
		seg.calib = &fresh
	}
	return seg.calib, nil
}

// fit computes the least-squares homography for a segment's current
// correspondence set. Caller holds c.mu.
func (c *Calibrator) fit(ctx context.Context, seg *segment) (*model.Calibration, error) {
	if len(seg.landmarks) < minLandmarks {
		return nil, fmt.Errorf("%w: segment %q has %d, need %d",
			ErrInsufficientLandmarks, seg.id, len(seg.landmarks), minLandmarks)
	}

	pixels := make([]geometry.Point, 0, len(seg.landmarks))
	pitch := make([]geometry.Point, 0, len(seg.landmarks))
	for id, px := range seg.landmarks {
		pixels = append(pixels, px)
		pitch = append(pitch, c.template[id])
	}

	if geometry.Collinear(pitch, degenerateSpread) {
		return nil, fmt.Errorf("%w: segment %q landmarks span a single line", ErrDegenerateLandmarks, seg.id)
	}

	h, err := geometry.FitHomography(pixels, pitch)
	if err != nil {
		return nil, fmt.Errorf("%w: segment %q: %v", ErrDegenerateLandmarks, seg.id, err)
	}
	inv, err := h.Invert()
	if err != nil {
		return nil, fmt.Errorf("%w: segment %q: %v", ErrDegenerateLandmarks, seg.id, err)
	}

	residual := geometry.ReprojectionRMS(h, pixels, pitch)
	if residual > c.residualTolerance {
		return nil, fmt.Errorf("%w: segment %q residual %.3fm exceeds %.3fm",
			ErrResidualTooHigh, seg.id, residual, c.residualTolerance)
	}

	c.log.Info(ctx, "segment calibrated",
		logger.String("segment", seg.id),
		logger.Int("landmarks", len(seg.landmarks)),
		logger.Float64("residual_m", residual))

	return &model.Calibration{
		SegmentID:  seg.id,
		Homography: h,
		Inverse:    inv,
		ValidRange: seg.frames,
		Residual:   residual,
	}, nil
}

// PixelToPitch maps an image point to pitch coordinates through a fitted
// calibration. It fails with ErrOutOfCalibratedRange when frame lies
// outside the calibration's valid range; it never clamps.
func PixelToPitch(c *model.Calibration, frame int64, p geometry.Point) (geometry.Point, error) {
	if !c.ValidRange.Contains(frame) {
		return geometry.Point{}, fmt.Errorf("%w: frame %d outside [%d,%d] of segment %q",
			ErrOutOfCalibratedRange, frame, c.ValidRange.Start, c.ValidRange.End, c.SegmentID)
	}
	mapped, ok := c.Homography.Apply(p)
	if !ok {
		return geometry.Point{}, fmt.Errorf("pixel (%.1f,%.1f) projects to infinity in segment %q",
			p.X, p.Y, c.SegmentID)
	}
	return mapped, nil
}

// PitchToPixel maps a pitch point back to image coordinates through a
// fitted calibration. Same range guard as PixelToPitch.
func PitchToPixel(c *model.Calibration, frame int64, p geometry.Point) (geometry.Point, error) {
	if !c.ValidRange.Contains(frame) {
		return geometry.Point{}, fmt.Errorf("%w: frame %d outside [%d,%d] of segment %q",
			ErrOutOfCalibratedRange, frame, c.ValidRange.Start, c.ValidRange.End, c.SegmentID)
	}
	mapped, ok := c.Inverse.Apply(p)
	if !ok {
		return geometry.Point{}, fmt.Errorf("pitch (%.1f,%.1f) projects to infinity in segment %q",
			p.X, p.Y, c.SegmentID)
	}
	return mapped, nil
}
