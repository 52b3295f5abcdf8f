// Package rules implements the offside and handball evaluators.
package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
)

const (
	// defaultNaturalThreshold is the arm-extension ratio above which the arm
	// no longer counts as a natural position.
	defaultNaturalThreshold = 0.6

	// defaultContactRadius is the ball-to-keypoint distance, in meters,
	// under which a body part counts as the contact point.
	defaultContactRadius = 0.45

	// defaultDisambiguationMargin is the minimum separation, in meters,
	// between the nearest arm and non-arm keypoints before the contacting
	// part counts as identified.
	defaultDisambiguationMargin = 0.10

	// defaultPlayerHeight is the fallback height estimate, in meters, when
	// the projected pose cannot support one.
	defaultPlayerHeight = 1.80

	// headHipHeightFactor scales the projected head-to-hip distance into a
	// height estimate.
	headHipHeightFactor = 4.4

	// Estimates outside this band mean the player is too upright in the
	// top-down projection for the head-hip rule to hold.
	minEstimatedHeight = 1.5
	maxEstimatedHeight = 2.2

	// heightFallbackReliability discounts steps that lean on the fallback
	// height instead of a measured one.
	heightFallbackReliability = 0.8

	// incomingSpeedSpan is how many frames before contact feed the incoming
	// ball speed measurement.
	incomingSpeedSpan = 3

	// contactPointRadius is the marker radius for the contact point.
	contactPointRadius = 0.3
)

// Keypoints that can make a handball versus the rest of the silhouette.
var (
	armParts  = []types.Keypoint{types.KeypointHand, types.KeypointElbow}
	bodyParts = []types.Keypoint{types.KeypointHead, types.KeypointShoulder, types.KeypointTorso, types.KeypointHip, types.KeypointFoot}
)

// Handball rules on handball DecisionEvents.
type Handball struct {
	naturalThreshold     float64
	contactRadius        float64
	disambiguationMargin float64
	log                  logger.Logger
}

// HandballOption applies a configuration option to the Handball evaluator.
type HandballOption func(*Handball)

// WithNaturalThreshold sets the arm-extension ratio above which the arm
// position stops being natural.
func WithNaturalThreshold(r float64) HandballOption {
	return func(h *Handball) {
		if r > 0 {
			h.naturalThreshold = r
		}
	}
}

// WithContactRadius sets the ball-to-keypoint contact distance in meters.
func WithContactRadius(r float64) HandballOption {
	return func(h *Handball) {
		if r > 0 {
			h.contactRadius = r
		}
	}
}

// WithDisambiguationMargin sets the minimum separation, in meters, between
// arm and body contact distances before the contacting part is identified.
func WithDisambiguationMargin(m float64) HandballOption {
	return func(h *Handball) {
		if m >= 0 {
			h.disambiguationMargin = m
		}
	}
}

// NewHandball creates a handball evaluator.
func NewHandball(opts ...HandballOption) *Handball {
	h := &Handball{
		naturalThreshold:     defaultNaturalThreshold,
		contactRadius:        defaultContactRadius,
		disambiguationMargin: defaultDisambiguationMargin,
		log:                  logger.Get().Named("handball"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Evaluate rules on one handball event against frozen tracks. Data quality
// problems downgrade to an inconclusive assessment; only evaluator misuse
// returns an error.
func (h *Handball) Evaluate(ctx context.Context, ev *model.DecisionEvent, cal *model.Calibration, ball *model.Track, players []*model.Track) (*Assessment, error) {
	if ev.Type != types.EventHandball {
		return nil, fmt.Errorf("event %s is %s: %w", ev.ID, ev.Type, ErrWrongEventType)
	}

	a := &Assessment{EventID: ev.ID, Type: ev.Type, MarginUnit: UnitRatio}
	instant := ev.InstantFrame

	if cal == nil {
		return a.inconclusive("segment is uncalibrated, contact geometry unavailable", 0, UnitMeters), nil
	}
	subject := findTrack(players, ev.SubjectTrackID)
	if subject == nil {
		return a.inconclusive("contacting player track unavailable", 0, UnitCount), nil
	}
	if ball == nil {
		return a.inconclusive("no ball track covers the instant", float64(instant), UnitFrame), nil
	}
	ballPt, ok := ball.At(instant)
	if !ok {
		return a.inconclusive("ball position unknown at the instant", float64(instant), UnitFrame), nil
	}

	_, armPt, armDist, armOK := nearestPart(subject, armParts, instant, ballPt.Pitch)
	_, bodyPt, bodyDist, bodyOK := nearestPart(subject, bodyParts, instant, ballPt.Pitch)

	if !armOK {
		return a.inconclusive("no hand or elbow keypoint tracked at the contact instant", 0, UnitCount), nil
	}
	if bodyOK && math.Abs(armDist-bodyDist) < h.disambiguationMargin {
		return a.inconclusive("contacting body part cannot be disambiguated", math.Abs(armDist-bodyDist), UnitMeters), nil
	}

	armContact := armDist <= h.contactRadius && (!bodyOK || armDist < bodyDist)
	bodyContact := bodyOK && bodyDist <= h.contactRadius && bodyDist < armDist
	if !armContact && !bodyContact {
		return a.inconclusive("no body part within contact range at the instant", armDist, UnitMeters), nil
	}

	if prev, ok := ball.At(instant - incomingSpeedSpan); ok {
		a.Steps = append(a.Steps, model.ExplanationStep{
			Claim:       "ball incoming speed before contact",
			Measurement: geometry.Dist(prev.Pitch, ballPt.Pitch) / float64(incomingSpeedSpan),
			Unit:        "m/frame",
			Weight:      1,
			Reliability: math.Min(prev.Confidence, ballPt.Confidence),
		})
	}

	if bodyContact {
		a.Verdict = types.VerdictNo
		a.Margin = (armDist - bodyDist) / h.contactRadius
		a.Steps = append(a.Steps, model.ExplanationStep{
			Claim:       "ball contact on a non-hand body part",
			Measurement: bodyDist,
			Unit:        UnitMeters,
			Weight:      1,
			Reliability: math.Min(ballPt.Confidence, bodyPt.Confidence),
		})
		a.Artifacts = append(a.Artifacts, model.Artifact{
			Kind:   model.ArtifactPoint,
			Label:  "contact_point",
			Points: []geometry.Point{bodyPt.Pitch},
			Radius: contactPointRadius,
		})

		h.log.Debug(ctx, "handball ruled",
			logger.String("event", ev.ID),
			logger.String("verdict", string(a.Verdict)),
			logger.Float64("margin", a.Margin),
		)
		return a, nil
	}

	a.Steps = append(a.Steps, model.ExplanationStep{
		Claim:       "ball contact on hand or elbow",
		Measurement: armDist,
		Unit:        UnitMeters,
		Weight:      1,
		Reliability: math.Min(ballPt.Confidence, armPt.Confidence),
	})

	torsoRef, torsoConf, ok := h.torsoReference(subject, instant)
	if !ok {
		return a.inconclusive("torso reference unavailable at the instant", float64(instant), UnitFrame), nil
	}
	height, heightRel := h.estimateHeight(subject, instant)
	ratio := geometry.Dist(armPt.Pitch, torsoRef) / height

	a.Steps = append(a.Steps, model.ExplanationStep{
		Claim:       "arm extension from torso centerline relative to height",
		Measurement: ratio,
		Unit:        UnitRatio,
		Weight:      1,
		Reliability: math.Min(armPt.Confidence, torsoConf) * heightRel,
	})

	if ratio > h.naturalThreshold {
		a.Verdict = types.VerdictYes
		a.Margin = ratio - h.naturalThreshold
	} else {
		a.Verdict = types.VerdictNo
		a.Margin = h.naturalThreshold - ratio
	}

	a.Artifacts = append(a.Artifacts,
		model.Artifact{
			Kind:   model.ArtifactPoint,
			Label:  "contact_point",
			Points: []geometry.Point{armPt.Pitch},
			Radius: contactPointRadius,
		},
		model.Artifact{
			Kind:   model.ArtifactLine,
			Label:  "arm_extension",
			Points: []geometry.Point{torsoRef, armPt.Pitch},
		},
	)

	h.log.Debug(ctx, "handball ruled",
		logger.String("event", ev.ID),
		logger.String("verdict", string(a.Verdict)),
		logger.Float64("margin", a.Margin),
	)
	return a, nil
}

// torsoReference anchors the torso centerline: the torso keypoint when
// tracked, otherwise the track's own body position.
func (h *Handball) torsoReference(subject *model.Track, instant int64) (geometry.Point, float64, bool) {
	if pt, ok := subject.KeypointAt(types.KeypointTorso, instant); ok {
		return pt.Pitch, pt.Confidence, true
	}
	if pt, ok := subject.At(instant); ok {
		return pt.Pitch, pt.Confidence, true
	}
	return geometry.Point{}, 0, false
}

// estimateHeight scales the projected head-to-hip distance into a height.
// Poses too upright for the projection to carry height information fall back
// to an average build with a reliability discount.
func (h *Handball) estimateHeight(subject *model.Track, instant int64) (float64, float64) {
	head, okHead := subject.KeypointAt(types.KeypointHead, instant)
	hip, okHip := subject.KeypointAt(types.KeypointHip, instant)
	if okHead && okHip {
		est := headHipHeightFactor * geometry.Dist(head.Pitch, hip.Pitch)
		if est >= minEstimatedHeight && est <= maxEstimatedHeight {
			return est, math.Min(head.Confidence, hip.Confidence)
		}
	}
	return defaultPlayerHeight, heightFallbackReliability
}

// nearestPart finds the keypoint among parts closest to the ball at the
// instant.
func nearestPart(t *model.Track, parts []types.Keypoint, instant int64, ball geometry.Point) (types.Keypoint, model.TrackPoint, float64, bool) {
	var bestKp types.Keypoint
	var bestPt model.TrackPoint
	bestDist := -1.0
	for _, kp := range parts {
		pt, ok := t.KeypointAt(kp, instant)
		if !ok {
			continue
		}
		if d := geometry.Dist(pt.Pitch, ball); bestDist < 0 || d < bestDist {
			bestKp, bestPt, bestDist = kp, pt, d
		}
	}
	return bestKp, bestPt, bestDist, bestDist >= 0
}
