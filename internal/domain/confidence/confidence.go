// Package confidence composes evaluator assessments into final rulings.
package confidence

import (
	"context"
	"math"

	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/rules"
	"github.com/offsidezero/varcore/pkg/logger"
)

const (
	// Margin scales control how fast confidence saturates per margin unit.
	// A margin equal to the scale lands around 0.88; at zero margin the
	// mapping passes through 0.5.
	defaultMeterScale = 0.5
	defaultRatioScale = 0.25
	defaultUnitScale  = 1.0

	// residualReliabilityScale converts the calibration residual, in meters,
	// into a reliability between 0 and 1.
	residualReliabilityScale = 1.0
)

// Composer maps assessment margins into confidence and assembles the
// explanation trace in causal order. The final confidence never exceeds the
// weakest contributing step's reliability.
type Composer struct {
	meterScale float64
	ratioScale float64
	log        logger.Logger
}

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// WithMeterScale sets the margin scale for meter-unit margins.
func WithMeterScale(s float64) Option {
	return func(c *Composer) {
		if s > 0 {
			c.meterScale = s
		}
	}
}

// WithRatioScale sets the margin scale for ratio-unit margins.
func WithRatioScale(s float64) Option {
	return func(c *Composer) {
		if s > 0 {
			c.ratioScale = s
		}
	}
}

// NewComposer creates a confidence composer.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{
		meterScale: defaultMeterScale,
		ratioScale: defaultRatioScale,
		log:        logger.Get().Named("confidence"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compose turns one assessment into an immutable Ruling. Steps run in
// causal order: calibration quality, tracking quality, the evaluator's own
// steps, then the verdict itself. tracks are the tracks the event
// referenced; their mean confidence is the tracking discount.
func (c *Composer) Compose(ctx context.Context, a *rules.Assessment, cal *model.Calibration, tracks []*model.Track) *model.Ruling {
	calStep := c.calibrationStep(cal)
	trackStep := c.trackingStep(tracks)

	steps := make([]model.ExplanationStep, 0, len(a.Steps)+3)
	steps = append(steps, calStep, trackStep)
	steps = append(steps, a.Steps...)

	conf := c.base(a.Margin, a.MarginUnit)
	conf *= calStep.Reliability * trackStep.Reliability
	for _, s := range steps {
		if s.Reliability < conf {
			conf = s.Reliability
		}
	}
	conf = clamp01(conf)

	steps = append(steps, model.ExplanationStep{
		Claim:       "verdict " + string(a.Verdict),
		Measurement: a.Margin,
		Unit:        a.MarginUnit,
		Weight:      1,
		Reliability: conf,
	})

	c.log.Debug(ctx, "ruling composed",
		logger.String("event", a.EventID),
		logger.String("verdict", string(a.Verdict)),
		logger.Float64("confidence", conf),
	)

	return &model.Ruling{
		EventID:     a.EventID,
		Type:        a.Type,
		Verdict:     a.Verdict,
		Confidence:  conf,
		Explanation: steps,
		Geometry:    a.Artifacts,
	}
}

// base maps a non-negative margin to a confidence in [0.5, 1): zero margin
// sits on the boundary at 0.5 and larger margins saturate toward 1.
func (c *Composer) base(margin float64, unit string) float64 {
	scale := defaultUnitScale
	switch unit {
	case rules.UnitMeters:
		scale = c.meterScale
	case rules.UnitRatio:
		scale = c.ratioScale
	}
	return 0.5 + 0.5*math.Tanh(margin/scale)
}

func (c *Composer) calibrationStep(cal *model.Calibration) model.ExplanationStep {
	step := model.ExplanationStep{
		Claim:  "calibration fit residual",
		Unit:   rules.UnitMeters,
		Weight: 1,
	}
	if cal == nil {
		return step
	}
	step.Measurement = cal.Residual
	step.Reliability = math.Exp(-cal.Residual / residualReliabilityScale)
	return step
}

func (c *Composer) trackingStep(tracks []*model.Track) model.ExplanationStep {
	step := model.ExplanationStep{
		Claim:  "mean tracking confidence across referenced tracks",
		Unit:   rules.UnitRatio,
		Weight: 1,
	}
	if len(tracks) == 0 {
		return step
	}
	var sum float64
	for _, t := range tracks {
		sum += t.MeanConfidence()
	}
	step.Measurement = sum / float64(len(tracks))
	step.Reliability = step.Measurement
	return step
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
