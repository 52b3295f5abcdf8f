// Package rules implements the offside and handball evaluators.
package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
)

const (
	// defaultInvolvementRadius is how close to the ball, in meters, an
	// offside-positioned attacker must come inside the event window to count
	// as involved in the immediate play.
	defaultInvolvementRadius = 9.0

	// defaultDecisionResidual is the decision-grade calibration ceiling, in
	// meters. Segments fitted worse than this cannot carry a yes/no offside
	// verdict.
	defaultDecisionResidual = 0.35

	// flaggedPointRadius is the marker radius for highlighted players.
	flaggedPointRadius = 0.5

	// ballPointRadius is the marker radius for the ball.
	ballPointRadius = 0.3
)

// Offside rules on offside DecisionEvents.
//
// The offside line sits on the second defending player counted from the
// attacking team's side of the field. An attacker is offside-positioned when
// strictly beyond both that line and the ball along the play direction;
// level is onside.
type Offside struct {
	direction         types.PlayDirection
	involvementRadius float64
	decisionResidual  float64
	excludeKeeper     bool
	log               logger.Logger
}

// OffsideOption applies a configuration option to the Offside evaluator.
type OffsideOption func(*Offside)

// WithPlayDirection sets the attacking team's direction of play.
func WithPlayDirection(d types.PlayDirection) OffsideOption {
	return func(o *Offside) {
		o.direction = d
	}
}

// WithInvolvementRadius sets the involvement radius in meters.
func WithInvolvementRadius(r float64) OffsideOption {
	return func(o *Offside) {
		if r > 0 {
			o.involvementRadius = r
		}
	}
}

// WithDecisionResidual sets the decision-grade calibration ceiling in meters.
func WithDecisionResidual(r float64) OffsideOption {
	return func(o *Offside) {
		if r > 0 {
			o.decisionResidual = r
		}
	}
}

// WithKeeperExcluded removes the deepest defending player from the line pool.
func WithKeeperExcluded() OffsideOption {
	return func(o *Offside) {
		o.excludeKeeper = true
	}
}

// NewOffside creates an offside evaluator.
func NewOffside(opts ...OffsideOption) *Offside {
	o := &Offside{
		direction:         types.PlayTowardPositiveY,
		involvementRadius: defaultInvolvementRadius,
		decisionResidual:  defaultDecisionResidual,
		log:               logger.Get().Named("offside"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// placed is a track pinned to its sample at the decision instant. adv is the
// signed position along the play direction.
type placed struct {
	track *model.Track
	pt    model.TrackPoint
	adv   float64
}

// Evaluate rules on one offside event against frozen tracks. Data quality
// problems downgrade to an inconclusive assessment; only evaluator misuse
// returns an error.
func (o *Offside) Evaluate(ctx context.Context, ev *model.DecisionEvent, cal *model.Calibration, ball *model.Track, players []*model.Track) (*Assessment, error) {
	if ev.Type != types.EventOffside {
		return nil, fmt.Errorf("event %s is %s: %w", ev.ID, ev.Type, ErrWrongEventType)
	}

	a := &Assessment{EventID: ev.ID, Type: ev.Type, MarginUnit: UnitMeters}
	instant := ev.InstantFrame
	sign := o.direction.Sign()

	if cal == nil {
		return a.inconclusive("segment is uncalibrated, offside geometry unavailable", 0, UnitMeters), nil
	}
	if cal.Residual > o.decisionResidual {
		return a.inconclusive("calibration residual above decision grade", cal.Residual, UnitMeters), nil
	}

	defenders := o.placedAt(players, types.TeamDefending, instant)
	if o.excludeKeeper {
		defenders = dropDeepest(defenders)
	}
	if len(defenders) < 2 {
		return a.inconclusive("fewer than two defending players tracked at the instant", float64(len(defenders)), UnitCount), nil
	}

	sort.SliceStable(defenders, func(i, j int) bool { return defenders[i].adv < defenders[j].adv })
	lineAdv := defenders[1].adv
	lineY := lineAdv * sign

	if ball == nil {
		return a.inconclusive("no ball track covers the instant", float64(instant), UnitFrame), nil
	}
	ballPt, ok := ball.At(instant)
	if !ok {
		return a.inconclusive("ball position unknown at the instant", float64(instant), UnitFrame), nil
	}
	ballAdv := sign * ballPt.Pitch.Y

	attackers := o.placedAt(players, types.TeamAttacking, instant)
	if len(attackers) == 0 {
		return a.inconclusive("no attacking players tracked at the instant", 0, UnitCount), nil
	}

	var flagged, involved []placed
	for _, at := range attackers {
		if at.adv > lineAdv && at.adv > ballAdv {
			flagged = append(flagged, at)
			if o.isInvolved(at.track, ball, instant, ev.Window.End) {
				involved = append(involved, at)
			}
		}
	}

	a.Steps = append(a.Steps,
		model.ExplanationStep{
			Claim:       "offside line set by the second defending player",
			Measurement: lineY,
			Unit:        UnitMeters,
			Weight:      1,
			Reliability: meanConfidence(defenders),
		},
		model.ExplanationStep{
			Claim:       "ball position at the instant",
			Measurement: ballPt.Pitch.Y,
			Unit:        UnitMeters,
			Weight:      1,
			Reliability: ballPt.Confidence,
		},
	)

	if len(involved) > 0 {
		best := involved[0]
		for _, at := range involved[1:] {
			if at.adv > best.adv {
				best = at
			}
		}
		a.Verdict = types.VerdictYes
		a.Margin = best.adv - lineAdv
		a.Steps = append(a.Steps, model.ExplanationStep{
			Claim:       "attacker beyond both the offside line and the ball",
			Measurement: a.Margin,
			Unit:        UnitMeters,
			Weight:      1,
			Reliability: best.pt.Confidence,
		})
	} else {
		a.Verdict = types.VerdictNo
		a.Margin = o.onsideMargin(attackers, flagged, ball, lineAdv, ballAdv, instant, ev.Window.End)
		a.Steps = append(a.Steps, model.ExplanationStep{
			Claim:       "no involved attacker beyond the offside boundary",
			Measurement: a.Margin,
			Unit:        UnitMeters,
			Weight:      1,
			Reliability: meanConfidence(attackers),
		})
	}

	a.Artifacts = append(a.Artifacts,
		model.Artifact{
			Kind:   model.ArtifactLine,
			Label:  "offside_line",
			Points: []geometry.Point{{X: 0, Y: lineY}, {X: geometry.PitchLength, Y: lineY}},
		},
		model.Artifact{
			Kind:   model.ArtifactPoint,
			Label:  "ball",
			Points: []geometry.Point{ballPt.Pitch},
			Radius: ballPointRadius,
		},
	)
	for _, at := range flagged {
		a.Artifacts = append(a.Artifacts, model.Artifact{
			Kind:   model.ArtifactPoint,
			Label:  "offside_player",
			Points: []geometry.Point{at.pt.Pitch},
			Radius: flaggedPointRadius,
		})
	}

	o.log.Debug(ctx, "offside ruled",
		logger.String("event", ev.ID),
		logger.String("verdict", string(a.Verdict)),
		logger.Float64("margin", a.Margin),
	)
	return a, nil
}

// onsideMargin measures how clearly the "no" holds: the smallest shortfall
// among attackers, either spatial (distance short of the binding boundary)
// or, for offside-positioned but uninvolved attackers, how far outside the
// involvement radius they stayed.
func (o *Offside) onsideMargin(attackers, flagged []placed, ball *model.Track, lineAdv, ballAdv float64, instant, windowEnd int64) float64 {
	bound := lineAdv
	if ballAdv > bound {
		bound = ballAdv
	}

	margin := -1.0
	isFlagged := make(map[*model.Track]bool, len(flagged))
	for _, at := range flagged {
		isFlagged[at.track] = true
	}
	for _, at := range attackers {
		var short float64
		if isFlagged[at.track] {
			short = o.minBallDistance(at.track, ball, instant, windowEnd) - o.involvementRadius
		} else {
			short = bound - at.adv
		}
		if margin < 0 || short < margin {
			margin = short
		}
	}
	if margin < 0 {
		margin = 0
	}
	return margin
}

// isInvolved reports whether the track comes within the involvement radius
// of the ball between the instant and the end of the event window.
func (o *Offside) isInvolved(t *model.Track, ball *model.Track, instant, windowEnd int64) bool {
	return o.minBallDistance(t, ball, instant, windowEnd) <= o.involvementRadius
}

func (o *Offside) minBallDistance(t *model.Track, ball *model.Track, instant, windowEnd int64) float64 {
	best := -1.0
	for f := instant; f <= windowEnd; f++ {
		bp, ok := ball.At(f)
		if !ok {
			continue
		}
		pp, ok := t.At(f)
		if !ok {
			continue
		}
		if d := geometry.Dist(pp.Pitch, bp.Pitch); best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		// Never co-sampled with the ball; treat as unreachable.
		return o.involvementRadius * 1000
	}
	return best
}

// placedAt pins team members to their samples at the instant. Tracks without
// a sample there are out of the pool.
func (o *Offside) placedAt(players []*model.Track, team types.Team, instant int64) []placed {
	sign := o.direction.Sign()
	var out []placed
	for _, p := range players {
		if p.Team != team {
			continue
		}
		pt, ok := p.At(instant)
		if !ok {
			continue
		}
		out = append(out, placed{track: p, pt: pt, adv: sign * pt.Pitch.Y})
	}
	return out
}

// dropDeepest removes the defender closest to the defended goal, which is
// taken to be the goalkeeper.
func dropDeepest(defenders []placed) []placed {
	if len(defenders) == 0 {
		return defenders
	}
	deepest := 0
	for i, d := range defenders[1:] {
		if d.adv > defenders[deepest].adv {
			deepest = i + 1
		}
	}
	return append(defenders[:deepest], defenders[deepest+1:]...)
}

func meanConfidence(pool []placed) float64 {
	if len(pool) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pool {
		sum += p.pt.Confidence
	}
	return sum / float64(len(pool))
}
