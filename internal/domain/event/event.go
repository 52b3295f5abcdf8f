// Package event locates the decision instants that evaluators rule on.
package event

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
)

const (
	// defaultContactThreshold is the ball-to-arm distance, in meters, under
	// which a frame counts as contact.
	defaultContactThreshold = 0.45

	// defaultPossessionRadius is how close, in meters, the ball must come to
	// a player for a distance minimum to count as a release.
	defaultPossessionRadius = 2.5

	// defaultWindowPadding is the number of frames either side of an instant
	// included in the event window.
	defaultWindowPadding = 12

	// defaultMinSeparation is the minimum frame distance between two release
	// candidates before they collapse into one.
	defaultMinSeparation = 3

	// relativeStrengthFloor keeps every release candidate whose strength is
	// within this fraction of the strongest one. Near-equal candidates all
	// become events; guessing is the evaluators' job, not ours.
	relativeStrengthFloor = 0.8
)

// armKeypoints are the body points a handball contact can land on.
var armKeypoints = []types.Keypoint{types.KeypointHand, types.KeypointElbow}

// Localizer scans frozen tracks for pass releases and ball-to-arm contacts.
type Localizer struct {
	contactThreshold float64
	possessionRadius float64
	windowPadding    int64
	minSeparation    int64
	log              logger.Logger
}

// NewLocalizer creates an event localizer.
func NewLocalizer(opts ...Option) *Localizer {
	l := &Localizer{
		contactThreshold: defaultContactThreshold,
		possessionRadius: defaultPossessionRadius,
		windowPadding:    defaultWindowPadding,
		minSeparation:    defaultMinSeparation,
		log:              logger.Get().Named("event"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Localize returns one DecisionEvent per candidate instant found inside
// window. Zero events is a valid outcome. Ambiguous windows deliberately
// produce several events; downstream stages resolve or surface all of them.
func (l *Localizer) Localize(ctx context.Context, window types.FrameRange, ball *model.Track, players []*model.Track) []*model.DecisionEvent {
	if ball == nil || len(ball.Points) == 0 {
		l.log.Debug(ctx, "no ball track, nothing to localize")
		return nil
	}

	events := l.passReleases(ctx, window, ball, players)
	events = append(events, l.handContacts(ctx, window, ball, players)...)

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].InstantFrame != events[j].InstantFrame {
			return events[i].InstantFrame < events[j].InstantFrame
		}
		return events[i].Type < events[j].Type
	})

	l.log.Info(ctx, "localization complete",
		logger.String("segment", ball.SegmentID),
		logger.Int("events", len(events)),
	)
	return events
}

// releaseCandidate is a frame where the ball plausibly left a passer's foot.
type releaseCandidate struct {
	frame    int64
	passer   *model.Track
	strength float64
}

// passReleases finds frames where the ball-to-passer distance bottoms out
// and the ball's acceleration along its departure axis flips sign. Each
// surviving candidate becomes an offside event anchored on the passer.
func (l *Localizer) passReleases(ctx context.Context, window types.FrameRange, ball *model.Track, players []*model.Track) []*model.DecisionEvent {
	pool := attackersOf(players)
	if len(pool) == 0 {
		pool = players
	}
	if len(pool) == 0 {
		return nil
	}

	type sample struct {
		frame  int64
		dist   float64
		passer *model.Track
	}
	var series []sample
	for f := window.Start; f <= window.End; f++ {
		bp, ok := ball.At(f)
		if !ok {
			continue
		}
		var passer *model.Track
		best := 0.0
		for _, p := range pool {
			pt, ok := p.At(f)
			if !ok {
				continue
			}
			if d := geometry.Dist(pt.Pitch, bp.Pitch); passer == nil || d < best {
				passer, best = p, d
			}
		}
		if passer == nil {
			continue
		}
		series = append(series, sample{frame: f, dist: best, passer: passer})
	}

	var candidates []releaseCandidate
	for i := 1; i+1 < len(series); i++ {
		cur := series[i]
		if series[i-1].frame != cur.frame-1 || series[i+1].frame != cur.frame+1 {
			continue
		}
		if !(cur.dist <= series[i-1].dist && cur.dist < series[i+1].dist) {
			continue
		}
		if cur.dist > l.possessionRadius {
			continue
		}

		v, ok := ballVelocity(ball, cur.frame)
		if !ok || v.Norm() == 0 {
			continue
		}
		axis := v.Scale(1 / v.Norm())
		if !accelerationFlips(ball, cur.frame, axis) {
			continue
		}

		candidates = append(candidates, releaseCandidate{
			frame:    cur.frame,
			passer:   cur.passer,
			strength: v.Norm(),
		})
	}

	candidates = l.mergeNeighbors(candidates)
	candidates = strongest(candidates)

	events := make([]*model.DecisionEvent, 0, len(candidates))
	for _, c := range candidates {
		events = append(events, &model.DecisionEvent{
			ID:             uuid.NewString(),
			Type:           types.EventOffside,
			InstantFrame:   c.frame,
			Window:         l.eventWindow(window, c.frame),
			SubjectTrackID: c.passer.ID,
			TrackIDs:       trackIDs(ball, players),
			SegmentID:      ball.SegmentID,
		})
	}
	return events
}

// handContacts finds onsets of ball-to-arm contact per player. A contiguous
// contact run yields one event at its first frame; separate runs on the same
// player yield separate events.
func (l *Localizer) handContacts(ctx context.Context, window types.FrameRange, ball *model.Track, players []*model.Track) []*model.DecisionEvent {
	var events []*model.DecisionEvent
	for _, p := range players {
		inContact := false
		for f := window.Start; f <= window.End; f++ {
			bp, ok := ball.At(f)
			if !ok {
				inContact = false
				continue
			}
			touching := false
			for _, kp := range armKeypoints {
				hp, ok := p.KeypointAt(kp, f)
				if ok && geometry.Dist(hp.Pitch, bp.Pitch) < l.contactThreshold {
					touching = true
					break
				}
			}
			if touching && !inContact {
				events = append(events, &model.DecisionEvent{
					ID:             uuid.NewString(),
					Type:           types.EventHandball,
					InstantFrame:   f,
					Window:         l.eventWindow(window, f),
					SubjectTrackID: p.ID,
					TrackIDs:       trackIDs(ball, players),
					SegmentID:      ball.SegmentID,
				})
			}
			inContact = touching
		}
	}
	return events
}

// mergeNeighbors collapses candidates closer than minSeparation, keeping the
// stronger of each colliding pair.
func (l *Localizer) mergeNeighbors(candidates []releaseCandidate) []releaseCandidate {
	if len(candidates) < 2 {
		return candidates
	}
	merged := candidates[:1]
	for _, c := range candidates[1:] {
		prev := &merged[len(merged)-1]
		if c.frame-prev.frame < l.minSeparation {
			if c.strength > prev.strength {
				*prev = c
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// strongest keeps every candidate within relativeStrengthFloor of the best.
func strongest(candidates []releaseCandidate) []releaseCandidate {
	var best float64
	for _, c := range candidates {
		if c.strength > best {
			best = c.strength
		}
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if c.strength >= best*relativeStrengthFloor {
			kept = append(kept, c)
		}
	}
	return kept
}

func (l *Localizer) eventWindow(window types.FrameRange, instant int64) types.FrameRange {
	r := types.FrameRange{Start: instant - l.windowPadding, End: instant + l.windowPadding}
	if r.Start < window.Start {
		r.Start = window.Start
	}
	if r.End > window.End {
		r.End = window.End
	}
	return r
}

// ballVelocity is the forward-difference velocity at frame f, in meters per
// frame. It needs samples at f and f+1.
func ballVelocity(ball *model.Track, f int64) (geometry.Point, bool) {
	a, ok := ball.At(f)
	if !ok {
		return geometry.Point{}, false
	}
	b, ok := ball.At(f + 1)
	if !ok {
		return geometry.Point{}, false
	}
	return b.Pitch.Sub(a.Pitch), true
}

// accelerationFlips reports whether the ball's acceleration along axis
// changes sign within one frame of f. A kick shows up as an impulse followed
// by decay, so the flip brackets the release instant.
func accelerationFlips(ball *model.Track, f int64, axis geometry.Point) bool {
	acc := func(g int64) (float64, bool) {
		v, ok := ballVelocity(ball, g)
		if !ok {
			return 0, false
		}
		vp, ok := ballVelocity(ball, g-1)
		if !ok {
			return 0, false
		}
		return v.Sub(vp).Dot(axis), true
	}

	a0, ok := acc(f)
	if !ok {
		return false
	}
	if a1, ok := acc(f + 1); ok && a0*a1 < 0 {
		return true
	}
	if am, ok := acc(f - 1); ok && am*a0 < 0 {
		return true
	}
	return false
}

func attackersOf(players []*model.Track) []*model.Track {
	var out []*model.Track
	for _, p := range players {
		if p.Team == types.TeamAttacking {
			out = append(out, p)
		}
	}
	return out
}

func trackIDs(ball *model.Track, players []*model.Track) []string {
	ids := make([]string, 0, len(players)+1)
	ids = append(ids, ball.ID)
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	return ids
}
