// Package overlay projects ruling geometry back into replay frames.
package overlay

import (
	"context"
	"fmt"
	"time"

	"github.com/offsidezero/varcore/internal/domain/calib"
	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/pkg/logger"
)

const (
	// defaultSlowFactor is the replay speed relative to real time.
	defaultSlowFactor = 0.25

	// defaultFrameRate is the source clip frame rate in frames per second.
	defaultFrameRate = 25.0

	// Banner anchor in pixel coordinates. The decision banner is screen
	// anchored, never projected.
	bannerAnchorX = 32.0
	bannerAnchorY = 32.0
)

// Synchronizer walks a ruling's event window and emits one OverlayFrame per
// source frame: the ruling's pitch geometry projected into pixels, a
// decision banner, the key-instant mark and a slow-motion presentation
// timestamp.
type Synchronizer struct {
	slowFactor float64
	frameRate  float64
	log        logger.Logger
}

// Option applies a configuration option to the Synchronizer.
type Option func(*Synchronizer)

// WithSlowFactor sets the replay speed relative to real time.
func WithSlowFactor(f float64) Option {
	return func(s *Synchronizer) {
		if f > 0 {
			s.slowFactor = f
		}
	}
}

// WithFrameRate sets the source clip frame rate in frames per second.
func WithFrameRate(r float64) Option {
	return func(s *Synchronizer) {
		if r > 0 {
			s.frameRate = r
		}
	}
}

// NewSynchronizer creates an overlay synchronizer.
func NewSynchronizer(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		slowFactor: defaultSlowFactor,
		frameRate:  defaultFrameRate,
		log:        logger.Get().Named("overlay"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Render emits one OverlayFrame per frame of the event window, in order.
// Frames the calibration does not cover ship without artifacts; projection
// trouble never drops a frame from the replay.
func (s *Synchronizer) Render(ctx context.Context, ev *model.DecisionEvent, ruling *model.Ruling, cal *model.Calibration) []model.OverlayFrame {
	banner := model.ImageArtifact{
		Kind:   model.ArtifactLabel,
		Label:  fmt.Sprintf("%s: %s (%.0f%%)", ruling.Type, ruling.Verdict, ruling.Confidence*100),
		Points: []geometry.Point{{X: bannerAnchorX, Y: bannerAnchorY}},
	}

	frames := make([]model.OverlayFrame, 0, ev.Window.Len())
	stale := 0
	for f := ev.Window.Start; f <= ev.Window.End; f++ {
		frame := model.OverlayFrame{
			FrameIndex:   f,
			IsKeyInstant: f == ev.InstantFrame,
			Presentation: s.presentation(f - ev.Window.Start),
		}

		if cal == nil || !cal.ValidRange.Contains(f) {
			stale++
			s.log.Warn(ctx, "frame left without overlay",
				logger.String("event", ev.ID),
				logger.Int("frame", int(f)),
				logger.Error(ErrStaleCalibration),
			)
			frames = append(frames, frame)
			continue
		}

		arts := make([]model.ImageArtifact, 0, len(ruling.Geometry)+1)
		for _, g := range ruling.Geometry {
			img, err := s.project(g, cal, f)
			if err != nil {
				s.log.Warn(ctx, "artifact dropped from frame",
					logger.String("event", ev.ID),
					logger.String("label", g.Label),
					logger.Int("frame", int(f)),
					logger.Error(err),
				)
				continue
			}
			arts = append(arts, img)
		}
		frame.Artifacts = append(arts, banner)
		frames = append(frames, frame)
	}

	s.log.Info(ctx, "overlay rendered",
		logger.String("event", ev.ID),
		logger.Int("frames", len(frames)),
		logger.Int("stale", stale),
	)
	return frames
}

// project maps one pitch-space artifact into pixel space for a frame. The
// marker radius carries over unscaled; the renderer sizes markers.
func (s *Synchronizer) project(a model.Artifact, cal *model.Calibration, frame int64) (model.ImageArtifact, error) {
	img := model.ImageArtifact{
		Kind:   a.Kind,
		Label:  a.Label,
		Radius: a.Radius,
		Points: make([]geometry.Point, 0, len(a.Points)),
	}
	for _, p := range a.Points {
		px, err := calib.PitchToPixel(cal, frame, p)
		if err != nil {
			return model.ImageArtifact{}, err
		}
		img.Points = append(img.Points, px)
	}
	return img, nil
}

// presentation stretches the window offset into slow-motion playback time.
func (s *Synchronizer) presentation(offset int64) time.Duration {
	perFrame := time.Duration(float64(time.Second) / (s.frameRate * s.slowFactor))
	return time.Duration(offset) * perFrame
}
