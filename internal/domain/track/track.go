// Package track stitches calibrated detections into continuous player and
// ball tracks.
package track

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/offsidezero/varcore/internal/domain/calib"
	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
)

const (
	// defaultGateRadius is the largest pitch distance, in meters, at which a
	// detection may be associated with an existing player track.
	defaultGateRadius = 2.5

	// defaultBallGateRadius is the association gate for the ball.
	defaultBallGateRadius = 6.0

	// defaultMaxMissedFrames is how many consecutive frames a track may go
	// unmatched before it is closed.
	defaultMaxMissedFrames = 12

	// defaultMaxInterpolateGap is the widest frame gap bridged by linear
	// interpolation. Wider gaps split the track.
	defaultMaxInterpolateGap = 6

	// defaultVarianceWindow is the number of trailing samples considered
	// when ambiguous associations are broken by positional variance.
	defaultVarianceWindow = 10

	// defaultTieEpsilon is the pitch distance, in meters, under which two
	// association distances count as equal.
	defaultTieEpsilon = 0.15

	// interpolationPenalty discounts the confidence of synthesized points
	// relative to the detections anchoring them.
	interpolationPenalty = 0.75
)

// openTrack is a track still accepting detections.
type openTrack struct {
	id        string
	seq       int
	kind      types.TrackKind
	team      types.Team
	points    []model.TrackPoint
	keypoints map[types.Keypoint][]model.TrackPoint
}

func (t *openTrack) last() model.TrackPoint {
	return t.points[len(t.points)-1]
}

// variance is the cumulative positional variance over the last k samples.
func (t *openTrack) variance(k int) float64 {
	pts := t.points
	if len(pts) > k {
		pts = pts[len(pts)-k:]
	}
	if len(pts) == 0 {
		return 0
	}
	var mean geometry.Point
	for _, p := range pts {
		mean = mean.Add(p.Pitch)
	}
	mean = mean.Scale(1 / float64(len(pts)))
	var sum float64
	for _, p := range pts {
		d := p.Pitch.Sub(mean)
		sum += d.Dot(d)
	}
	return sum
}

func (t *openTrack) appendKeypoints(frame int64, det projected) {
	if len(det.keypoints) == 0 {
		return
	}
	if t.keypoints == nil {
		t.keypoints = make(map[types.Keypoint][]model.TrackPoint)
	}
	for kp, p := range det.keypoints {
		t.keypoints[kp] = append(t.keypoints[kp], model.TrackPoint{
			FrameIndex: frame,
			Pitch:      p,
			Confidence: det.confidence,
		})
	}
}

// projected is a detection lifted into pitch coordinates.
type projected struct {
	pitch      geometry.Point
	confidence float64
	team       types.Team
	keypoints  map[types.Keypoint]geometry.Point
}

// candidate is one admissible track/detection pairing within the gate.
type candidate struct {
	track *openTrack
	det   int
	dist  float64
}

// Builder associates per-frame detections with tracks for one calibrated
// segment. Frames must be consumed in ascending order. A Builder is not
// safe for concurrent use.
type Builder struct {
	cal       *model.Calibration
	open      []*openTrack
	closed    []*openTrack
	seq       int
	splits    int
	lastFrame int64
	frozen    bool

	gateRadius        float64
	ballGateRadius    float64
	maxMissedFrames   int
	maxInterpolateGap int
	varianceWindow    int
	tieEpsilon        float64

	log logger.Logger
}

// NewBuilder creates a track builder bound to one segment's calibration.
func NewBuilder(cal *model.Calibration, opts ...Option) *Builder {
	b := &Builder{
		cal:               cal,
		lastFrame:         -1,
		gateRadius:        defaultGateRadius,
		ballGateRadius:    defaultBallGateRadius,
		maxMissedFrames:   defaultMaxMissedFrames,
		maxInterpolateGap: defaultMaxInterpolateGap,
		varianceWindow:    defaultVarianceWindow,
		tieEpsilon:        defaultTieEpsilon,
		log:               logger.Get().Named("track"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Consume associates one frame's detections with the open tracks. The frame
// must lie inside the calibration's valid range and arrive after every frame
// consumed so far.
func (b *Builder) Consume(ctx context.Context, obs model.FrameObservation) error {
	if b.frozen {
		return fmt.Errorf("frame %d: %w", obs.FrameIndex, ErrBuilderFrozen)
	}
	if obs.FrameIndex <= b.lastFrame {
		return fmt.Errorf("frame %d after frame %d: %w", obs.FrameIndex, b.lastFrame, ErrFrameOrder)
	}
	if !b.cal.ValidRange.Contains(obs.FrameIndex) {
		return fmt.Errorf("frame %d outside segment %s: %w", obs.FrameIndex, b.cal.SegmentID, calib.ErrOutOfCalibratedRange)
	}
	b.lastFrame = obs.FrameIndex

	b.closeStale(obs.FrameIndex)

	b.associate(ctx, obs.FrameIndex, b.projectPlayers(ctx, obs), types.TrackPlayer, b.gateRadius)
	if obs.Ball != nil {
		if ball, ok := b.projectBall(ctx, obs); ok {
			b.associate(ctx, obs.FrameIndex, []projected{ball}, types.TrackBall, b.ballGateRadius)
		}
	}
	return nil
}

// Freeze closes every open track and returns the finished tracks ordered by
// first frame. The builder accepts no further observations afterwards;
// callers hand the returned tracks to evaluators as read-only data.
func (b *Builder) Freeze(ctx context.Context) []*model.Track {
	if !b.frozen {
		b.frozen = true
		b.closed = append(b.closed, b.open...)
		b.open = nil
	}

	sort.SliceStable(b.closed, func(i, j int) bool {
		fi := b.closed[i].points[0].FrameIndex
		fj := b.closed[j].points[0].FrameIndex
		if fi != fj {
			return fi < fj
		}
		return b.closed[i].seq < b.closed[j].seq
	})

	out := make([]*model.Track, 0, len(b.closed))
	for _, t := range b.closed {
		out = append(out, &model.Track{
			ID:        t.id,
			Kind:      t.kind,
			Team:      t.team,
			SegmentID: b.cal.SegmentID,
			Points:    t.points,
			Keypoints: t.keypoints,
		})
	}

	b.log.Info(ctx, "tracks frozen",
		logger.String("segment", b.cal.SegmentID),
		logger.Int("tracks", len(out)),
		logger.Int("splits", b.splits),
	)
	return out
}

// Splits reports how many tracks were split at uninterpolatable gaps.
func (b *Builder) Splits() int {
	return b.splits
}

// closeStale closes tracks whose last sample is too old to match again.
func (b *Builder) closeStale(frame int64) {
	kept := b.open[:0]
	for _, t := range b.open {
		if frame-t.last().FrameIndex-1 > int64(b.maxMissedFrames) {
			b.closed = append(b.closed, t)
			continue
		}
		kept = append(kept, t)
	}
	b.open = kept
}

func (b *Builder) projectPlayers(ctx context.Context, obs model.FrameObservation) []projected {
	out := make([]projected, 0, len(obs.Players))
	for _, d := range obs.Players {
		pitch, err := calib.PixelToPitch(b.cal, obs.FrameIndex, d.ImagePoint)
		if err != nil {
			b.log.Warn(ctx, "dropping unprojectable player detection",
				logger.Int("frame", int(obs.FrameIndex)),
				logger.Error(err),
			)
			continue
		}
		p := projected{pitch: pitch, confidence: d.Confidence, team: d.Team}
		for kp, ip := range d.Keypoints {
			pp, err := calib.PixelToPitch(b.cal, obs.FrameIndex, ip)
			if err != nil {
				continue
			}
			if p.keypoints == nil {
				p.keypoints = make(map[types.Keypoint]geometry.Point)
			}
			p.keypoints[kp] = pp
		}
		out = append(out, p)
	}
	return out
}

func (b *Builder) projectBall(ctx context.Context, obs model.FrameObservation) (projected, bool) {
	pitch, err := calib.PixelToPitch(b.cal, obs.FrameIndex, obs.Ball.ImagePoint)
	if err != nil {
		b.log.Warn(ctx, "dropping unprojectable ball detection",
			logger.Int("frame", int(obs.FrameIndex)),
			logger.Error(err),
		)
		return projected{}, false
	}
	return projected{
		pitch:      pitch,
		confidence: obs.Ball.Confidence,
		team:       types.TeamUnknown,
	}, true
}

// associate matches one frame's detections of a single kind against the open
// tracks of that kind, greedily by ascending pitch distance inside the gate.
// Unmatched detections start new tracks.
func (b *Builder) associate(ctx context.Context, frame int64, dets []projected, kind types.TrackKind, gate float64) {
	var tracks []*openTrack
	for _, t := range b.open {
		if t.kind == kind {
			tracks = append(tracks, t)
		}
	}

	var pairs []candidate
	for _, t := range tracks {
		for di := range dets {
			if d := geometry.Dist(t.last().Pitch, dets[di].pitch); d <= gate {
				pairs = append(pairs, candidate{track: t, det: di, dist: d})
			}
		}
	}

	usedTrack := make(map[*openTrack]bool, len(tracks))
	usedDet := make(map[int]bool, len(dets))
	for {
		best := -1
		for i, p := range pairs {
			if usedTrack[p.track] || usedDet[p.det] {
				continue
			}
			if best < 0 || p.dist < pairs[best].dist {
				best = i
			}
		}
		if best < 0 {
			break
		}

		ties := make([]int, 0, 2)
		for i, p := range pairs {
			if usedTrack[p.track] || usedDet[p.det] {
				continue
			}
			if p.dist-pairs[best].dist <= b.tieEpsilon {
				ties = append(ties, i)
			}
		}
		chosen := ties[0]
		if len(ties) > 1 {
			b.warnEquidistant(ctx, frame, pairs, ties)
			for _, i := range ties[1:] {
				if b.outranks(pairs[i], pairs[chosen], dets) {
					chosen = i
				}
			}
		}

		c := pairs[chosen]
		usedTrack[c.track] = true
		usedDet[c.det] = true
		b.extend(ctx, c.track, frame, dets[c.det])
	}

	for di := range dets {
		if !usedDet[di] {
			b.startTrack(frame, kind, dets[di])
		}
	}
}

// outranks reports whether candidate a should win a distance tie against c.
// The steadier track wins; between detections contesting the same track, the
// higher confidence wins.
func (b *Builder) outranks(a, c candidate, dets []projected) bool {
	va, vc := a.track.variance(b.varianceWindow), c.track.variance(b.varianceWindow)
	if va != vc {
		return va < vc
	}
	ca, cc := dets[a.det].confidence, dets[c.det].confidence
	if ca != cc {
		return ca > cc
	}
	return false
}

// warnEquidistant logs when one track is contested by near-equal detections.
func (b *Builder) warnEquidistant(ctx context.Context, frame int64, pairs []candidate, ties []int) {
	seen := make(map[*openTrack]bool, len(ties))
	warned := make(map[*openTrack]bool, len(ties))
	for _, i := range ties {
		t := pairs[i].track
		if seen[t] && !warned[t] {
			warned[t] = true
			b.log.Warn(ctx, "equidistant detections inside tie epsilon, highest confidence wins",
				logger.String("track", t.id),
				logger.Int("frame", int(frame)),
			)
		}
		seen[t] = true
	}
}

// extend appends det to t, bridging missed frames by linear interpolation in
// pitch space. Gaps wider than the interpolation limit split the track: t is
// closed and a fresh track takes the detection.
func (b *Builder) extend(ctx context.Context, t *openTrack, frame int64, det projected) {
	last := t.last()
	gap := frame - last.FrameIndex - 1
	if gap > int64(b.maxInterpolateGap) {
		b.close(t)
		b.splits++
		b.log.Warn(ctx, "splitting track at uninterpolatable gap",
			logger.String("track", t.id),
			logger.Int("gap", int(gap)),
			logger.Error(ErrTrackGap),
		)
		b.startTrack(frame, t.kind, det)
		return
	}

	if gap > 0 {
		conf := math.Min(last.Confidence, det.confidence) * interpolationPenalty
		span := float64(frame - last.FrameIndex)
		for f := last.FrameIndex + 1; f < frame; f++ {
			t.points = append(t.points, model.TrackPoint{
				FrameIndex:   f,
				Pitch:        geometry.Lerp(last.Pitch, det.pitch, float64(f-last.FrameIndex)/span),
				Confidence:   conf,
				Interpolated: true,
			})
		}
	}

	t.points = append(t.points, model.TrackPoint{
		FrameIndex: frame,
		Pitch:      det.pitch,
		Confidence: det.confidence,
	})
	if t.team == types.TeamUnknown && det.team != types.TeamUnknown {
		t.team = det.team
	}
	t.appendKeypoints(frame, det)
}

func (b *Builder) close(t *openTrack) {
	for i, o := range b.open {
		if o == t {
			b.open = append(b.open[:i], b.open[i+1:]...)
			break
		}
	}
	b.closed = append(b.closed, t)
}

func (b *Builder) startTrack(frame int64, kind types.TrackKind, det projected) {
	t := &openTrack{
		id:   uuid.NewString(),
		seq:  b.seq,
		kind: kind,
		team: det.team,
	}
	b.seq++
	t.points = append(t.points, model.TrackPoint{
		FrameIndex: frame,
		Pitch:      det.pitch,
		Confidence: det.confidence,
	})
	t.appendKeypoints(frame, det)
	b.open = append(b.open, t)
}
