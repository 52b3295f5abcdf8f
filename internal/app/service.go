// Package app wires the decision pipeline end to end: frame batches go out
// to the vision provider, observations come back through calibration,
// tracking and event localization, and a worker pool turns the localized
// events into confidence-scored rulings with replay overlays.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/offsidezero/varcore/internal/adapters/cache"
	eventqueue "github.com/offsidezero/varcore/internal/adapters/mq/queue"
	workerpool "github.com/offsidezero/varcore/internal/adapters/mq/worker"
	"github.com/offsidezero/varcore/internal/adapters/provider"
	"github.com/offsidezero/varcore/internal/adapters/registry"
	"github.com/offsidezero/varcore/internal/domain/calib"
	"github.com/offsidezero/varcore/internal/domain/confidence"
	"github.com/offsidezero/varcore/internal/domain/dedupe"
	"github.com/offsidezero/varcore/internal/domain/event"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/overlay"
	"github.com/offsidezero/varcore/internal/domain/rules"
	"github.com/offsidezero/varcore/internal/domain/track"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
	"github.com/offsidezero/varcore/pkg/metrics"
)

// Default analyzer configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultQueueSize        = 1024
	defaultDedupeSize       = 100_000
	defaultBatchSize        = 16
	defaultFrameRate        = 25.0

	// rulingDrainTimeout bounds how long a run waits for the worker pool to
	// rule on every enqueued event before giving up on the stragglers.
	rulingDrainTimeout = 30 * time.Second
	rulingPollInterval = 5 * time.Millisecond
)

// Clip is one recorded piece of footage, pre-cut into camera-stable
// segments by the upstream frame source.
type Clip struct {
	ID        string
	FrameRate float64
	Segments  []Segment
}

// Segment is a contiguous camera-stable run of frames within a clip.
type Segment struct {
	ID     string
	Frames []provider.Frame
}

// OverlaySet is the rendered replay window for one ruling.
type OverlaySet struct {
	EventID string               `json:"event_id"`
	Frames  []model.OverlayFrame `json:"frames"`
}

// Result is everything one clip analysis produced. Rulings and overlays
// are ordered by segment, then by decision instant.
type Result struct {
	ClipID    string          `json:"clip_id"`
	RunID     string          `json:"run_id"`
	Rulings   []*model.Ruling `json:"rulings"`
	Overlays  []OverlaySet    `json:"overlays"`
	FromCache bool            `json:"from_cache,omitempty"`
}

// Analyzer runs the decision pipeline over clips. Collaborators are wired
// once at construction; each Analyze call builds its own registry, queue
// and worker pool so concurrent clips never share mutable state.
type Analyzer struct {
	mu sync.Mutex

	// Collaborators
	vision provider.Provider
	cache  *cache.Store

	// Configuration
	workerCount       int
	queueSize         int
	dedupeSize        int
	batchSize         int
	frameRate         float64
	slowFactor        float64
	direction         types.PlayDirection
	involvementRadius float64
	excludeKeeper     bool
	naturalThreshold  float64
	contactRadius     float64
	residualTolerance float64

	// State
	started bool

	// Logging
	log logger.Logger
}

// New constructs an Analyzer with default configuration.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		workerCount: runtime.NumCPU() * defaultWorkerMultiplier,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		batchSize:   defaultBatchSize,
		frameRate:   defaultFrameRate,
		direction:   types.PlayTowardPositiveY,
		log:         nil, // replaced at Start when not set by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start validates the wiring and marks the analyzer ready.
func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	if a.log == nil {
		a.log = logger.Get().Named("analyzer")
	}
	if a.vision == nil {
		return ErrNoProvider
	}

	a.started = true
	a.log.Info(ctx, "analyzer started",
		logger.Int("workers", a.workerCount),
		logger.Int("queueSize", a.queueSize),
		logger.Int("batchSize", a.batchSize),
	)
	return nil
}

// Stop releases the analyzer's resources. In-flight Analyze calls are not
// interrupted; cancel their context instead.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn(context.Background(), "cache close failed", logger.Error(err))
		}
	}
	a.started = false
	a.log.Info(context.Background(), "analyzer stopped")
}

// Analyze runs the full pipeline over one clip and returns its rulings and
// replay overlays. Segments are processed concurrently; a segment that
// cannot be analyzed yields an inconclusive ruling for its scope and never
// aborts its siblings. Provider quota exhaustion is fatal for the run and
// surfaces immediately. Cancellation is honored at batch boundaries;
// partial results are discarded.
func (a *Analyzer) Analyze(ctx context.Context, clip Clip) (*Result, error) {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	if a.cache != nil {
		cached, err := a.cache.Get(ctx, clip.ID)
		switch {
		case err == nil:
			return a.replay(ctx, clip, cached), nil
		case !errors.Is(err, cache.ErrNotFound):
			a.log.Warn(ctx, "cache lookup failed, analyzing from scratch",
				logger.String("clip", clip.ID), logger.Error(err))
		}
	}

	r := a.newRun(clip)
	defer r.pool.Stop()

	segCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r.pool.Start(segCtx)

	var wg sync.WaitGroup
	for _, seg := range clip.Segments {
		wg.Add(1)
		go func(seg Segment) {
			defer wg.Done()
			if err := r.processSegment(segCtx, seg); err != nil {
				if errors.Is(err, provider.ErrProviderQuota) || segCtx.Err() != nil {
					cancel(err)
					return
				}
				r.recordSegmentFailure(segCtx, seg, err)
			}
		}(seg)
	}
	wg.Wait()

	if cause := context.Cause(segCtx); cause != nil {
		return nil, fmt.Errorf("analysis of clip %s aborted: %w", clip.ID, cause)
	}

	r.awaitRulings(ctx)

	result := r.collect(ctx)
	if a.cache != nil {
		if err := a.cache.Put(ctx, cache.Analysis{
			ClipID:       clip.ID,
			Calibrations: r.calibs,
			Tracks:       r.tracks,
			Rulings:      result.Rulings,
		}); err != nil {
			a.log.Warn(ctx, "caching analysis failed",
				logger.String("clip", clip.ID), logger.Error(err))
		}
	}

	a.log.Info(ctx, "clip analyzed",
		logger.String("clip", clip.ID),
		logger.String("run", result.RunID),
		logger.Int("segments", len(clip.Segments)),
		logger.Int("rulings", len(result.Rulings)),
	)
	return result, nil
}

// run holds the per-clip pipeline state. Everything here is either owned by
// one segment goroutine or guarded by mu.
type run struct {
	a          *Analyzer
	id         string
	clip       Clip
	frameRate  float64
	registry   *registry.InMemoryRegistry
	calibrator *calib.Calibrator
	localizer  *event.Localizer
	composer   *confidence.Composer
	sync       *overlay.Synchronizer
	ingest     provider.Provider
	queue      *eventqueue.InMemoryQueue
	pool       *workerpool.Pool

	mu       sync.Mutex
	events   []*model.DecisionEvent
	enqueued int
	failures int
	calibs   []*model.Calibration
	tracks   []*model.Track
}

// newRun wires fresh pipeline components for one clip.
func (a *Analyzer) newRun(clip Clip) *run {
	frameRate := clip.FrameRate
	if frameRate <= 0 {
		frameRate = a.frameRate
	}

	r := &run{
		a:         a,
		id:        uuid.NewString(),
		clip:      clip,
		frameRate: frameRate,
		registry:  registry.NewInMemoryRegistry(),
		calibrator: calib.New(
			calib.WithResidualTolerance(a.residualTolerance),
		),
		localizer: event.NewLocalizer(
			event.WithContactThreshold(a.contactRadius),
		),
		composer: confidence.NewComposer(),
		sync: overlay.NewSynchronizer(
			overlay.WithSlowFactor(a.slowFactor),
			overlay.WithFrameRate(frameRate),
		),
		ingest: provider.NewIngestor(a.vision,
			provider.WithDeduper(dedupe.NewInMemoryDeduper(
				dedupe.WithMaxSize(a.dedupeSize),
			)),
		),
		queue: eventqueue.NewInMemoryQueue(
			eventqueue.WithCapacity(a.queueSize),
			eventqueue.WithBufferSize(a.queueSize),
		),
	}

	offsideOpts := []rules.OffsideOption{
		rules.WithPlayDirection(a.direction),
		rules.WithInvolvementRadius(a.involvementRadius),
	}
	if a.excludeKeeper {
		offsideOpts = append(offsideOpts, rules.WithKeeperExcluded())
	}
	r.pool = workerpool.NewPool(a.workerCount, r.queue, r.registry, r.registry,
		workerpool.WithEvaluator(types.EventOffside, rules.NewOffside(offsideOpts...)),
		workerpool.WithEvaluator(types.EventHandball, rules.NewHandball(
			rules.WithNaturalThreshold(a.naturalThreshold),
			rules.WithContactRadius(a.contactRadius),
		)),
	)
	return r
}

// processSegment carries one segment from raw frames to enqueued decision
// events. The returned error marks the whole segment unusable; recoverable
// trouble inside the segment is handled locally.
func (r *run) processSegment(ctx context.Context, seg Segment) error {
	started := time.Now()
	defer func() {
		metrics.RecordSegmentLatency(float64(time.Since(started).Milliseconds()))
	}()

	obs, err := r.ingestSegment(ctx, seg)
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		return fmt.Errorf("segment %s: %w", seg.ID, ErrNoObservations)
	}

	for _, o := range obs {
		r.calibrator.Observe(ctx, seg.ID, o)
	}
	cal, err := r.calibrator.Calibration(ctx, seg.ID)
	if err != nil {
		metrics.RecordCalibrationFailure()
		return fmt.Errorf("segment %s uncalibrated: %w", seg.ID, err)
	}
	metrics.RecordCalibrationFit()
	metrics.ObserveCalibrationResidual(cal.Residual)
	if err := r.registry.PutCalibration(ctx, cal); err != nil {
		return fmt.Errorf("registering calibration for segment %s: %w", seg.ID, err)
	}
	r.remember(cal, nil)

	builder := track.NewBuilder(cal)
	for _, o := range obs {
		if err := builder.Consume(ctx, o); err != nil {
			r.a.log.Warn(ctx, "observation skipped",
				logger.String("segment", seg.ID),
				logger.Int("frame", int(o.FrameIndex)),
				logger.Error(err),
			)
		}
	}
	tracks := builder.Freeze(ctx)
	metrics.RecordTracksFrozen(len(tracks))
	if splits := builder.Splits(); splits > 0 {
		metrics.RecordTrackSplits(splits)
	}

	var ball *model.Track
	players := make([]*model.Track, 0, len(tracks))
	for _, t := range tracks {
		if err := r.registry.PutTrack(ctx, t); err != nil {
			return fmt.Errorf("registering track for segment %s: %w", seg.ID, err)
		}
		r.remember(nil, t)
		if t.Kind == types.TrackBall {
			// Ball splits leave several ball tracks; localize on the
			// longest, the rest are fragments.
			if ball == nil || len(t.Points) > len(ball.Points) {
				ball = t
			}
		} else {
			players = append(players, t)
		}
	}

	window := types.FrameRange{
		Start: obs[0].FrameIndex,
		End:   obs[len(obs)-1].FrameIndex,
	}
	events := r.localizer.Localize(ctx, window, ball, players)
	for _, ev := range events {
		metrics.RecordEventLocalized(string(ev.Type))
		if !r.queue.Enqueue(ctx, *ev) {
			r.a.log.Warn(ctx, "event dropped, queue unavailable",
				logger.String("event", ev.ID),
				logger.String("segment", seg.ID),
			)
			continue
		}
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.enqueued++
		r.mu.Unlock()
	}
	return nil
}

// ingestSegment sends the segment's frames to the provider in batches. A
// batch the provider cannot serve becomes a gap in the observation stream;
// only quota exhaustion and cancellation abort the segment.
func (r *run) ingestSegment(ctx context.Context, seg Segment) ([]model.FrameObservation, error) {
	var out []model.FrameObservation
	var prior []model.FrameObservation
	for start := 0; start < len(seg.Frames); start += r.a.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+r.a.batchSize, len(seg.Frames))
		obs, err := r.ingest.Observe(ctx, provider.FrameBatch{
			ClipID:    r.clip.ID,
			SegmentID: seg.ID,
			FrameRate: r.frameRate,
			Frames:    seg.Frames[start:end],
			Prior:     prior,
		})
		if err != nil {
			if errors.Is(err, provider.ErrProviderQuota) || ctx.Err() != nil {
				return nil, err
			}
			r.a.log.Warn(ctx, "batch dropped, segment continues with gap",
				logger.String("segment", seg.ID),
				logger.Int("from", int(seg.Frames[start].Index)),
				logger.Error(err),
			)
			continue
		}
		out = append(out, obs...)
		prior = obs
	}
	return out, nil
}

// recordSegmentFailure downgrades a broken segment to an inconclusive
// ruling naming the cause, so the failure is visible in the result instead
// of silently shrinking it.
func (r *run) recordSegmentFailure(ctx context.Context, seg Segment, cause error) {
	r.a.log.Warn(ctx, "segment downgraded to inconclusive",
		logger.String("segment", seg.ID),
		logger.Error(cause),
	)
	ruling := r.composer.Compose(ctx, &rules.Assessment{
		EventID: "segment-" + seg.ID,
		Verdict: types.VerdictInconclusive,
		Steps: []model.ExplanationStep{{
			Claim:  "segment could not be analyzed: " + cause.Error(),
			Weight: 1,
		}},
	}, nil, nil)
	metrics.RecordRuling("segment", string(ruling.Verdict))

	if err := r.registry.PutRuling(ctx, ruling); err != nil {
		r.a.log.Error(ctx, "recording segment failure ruling failed",
			logger.String("segment", seg.ID),
			logger.Error(err),
		)
		return
	}
	r.mu.Lock()
	r.failures++
	r.mu.Unlock()
}

// remember appends frozen outputs to the run-local lists feeding the cache.
func (r *run) remember(c *model.Calibration, t *model.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c != nil {
		r.calibs = append(r.calibs, c)
	}
	if t != nil {
		r.tracks = append(r.tracks, t)
	}
}

// awaitRulings blocks until the pool has ruled on every enqueued event.
// Worker goroutines keep draining the still-open queue; polling the
// registry count is how the run knows they are done.
func (r *run) awaitRulings(ctx context.Context) {
	r.mu.Lock()
	expected := r.enqueued + r.failures
	r.mu.Unlock()

	deadline := time.After(rulingDrainTimeout)
	tick := time.NewTicker(rulingPollInterval)
	defer tick.Stop()
	for r.registry.Stats(ctx).Rulings < expected {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			r.a.log.Warn(ctx, "timed out waiting for rulings",
				logger.Int("expected", expected),
				logger.Int("ruled", r.registry.Stats(ctx).Rulings),
			)
			return
		case <-tick.C:
		}
	}
}

// collect assembles the result: rulings in segment/instant order, each with
// its rendered replay window, then the segment-scope failures.
func (r *run) collect(ctx context.Context) *Result {
	r.mu.Lock()
	events := make([]*model.DecisionEvent, len(r.events))
	copy(events, r.events)
	r.mu.Unlock()
	sortEvents(events)

	result := &Result{ClipID: r.clip.ID, RunID: r.id}
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		ruling, err := r.registry.Ruling(ctx, ev.ID)
		if err != nil {
			r.a.log.Warn(ctx, "event left unruled",
				logger.String("event", ev.ID), logger.Error(err))
			continue
		}
		seen[ev.ID] = true
		result.Rulings = append(result.Rulings, ruling)

		cal, err := r.registry.Calibration(ctx, ev.SegmentID)
		if err != nil {
			cal = nil
		}
		frames := r.sync.Render(ctx, ev, ruling, cal)
		recordOverlayMetrics(frames)
		result.Overlays = append(result.Overlays, OverlaySet{EventID: ev.ID, Frames: frames})
	}

	// Segment-scope inconclusive rulings have no event window to render.
	for _, ruling := range r.registry.Rulings(ctx) {
		if !seen[ruling.EventID] {
			result.Rulings = append(result.Rulings, ruling)
		}
	}
	return result
}

// replay rebuilds a result from a cached analysis without touching the
// provider. Localization is deterministic over frozen tracks, so the
// regenerated events line up with the cached rulings in order.
func (a *Analyzer) replay(ctx context.Context, clip Clip, cached cache.Analysis) *Result {
	a.log.Info(ctx, "clip served from analysis cache", logger.String("clip", clip.ID))

	frameRate := clip.FrameRate
	if frameRate <= 0 {
		frameRate = a.frameRate
	}
	renderer := overlay.NewSynchronizer(
		overlay.WithSlowFactor(a.slowFactor),
		overlay.WithFrameRate(frameRate),
	)
	localizer := event.NewLocalizer(event.WithContactThreshold(a.contactRadius))

	calBySeg := make(map[string]*model.Calibration, len(cached.Calibrations))
	for _, c := range cached.Calibrations {
		calBySeg[c.SegmentID] = c
	}

	var events []*model.DecisionEvent
	for _, segTracks := range groupBySegment(cached.Tracks) {
		var ball *model.Track
		players := make([]*model.Track, 0, len(segTracks))
		window := types.FrameRange{Start: 0, End: -1}
		for _, t := range segTracks {
			if tr := t.Range(); tr.Len() > 0 {
				if window.Len() == 0 || tr.Start < window.Start {
					window.Start = tr.Start
				}
				if tr.End > window.End {
					window.End = tr.End
				}
			}
			if t.Kind == types.TrackBall {
				if ball == nil || len(t.Points) > len(ball.Points) {
					ball = t
				}
			} else {
				players = append(players, t)
			}
		}
		events = append(events, localizer.Localize(ctx, window, ball, players)...)
	}
	sortEvents(events)

	result := &Result{ClipID: clip.ID, RunID: uuid.NewString(), FromCache: true}
	result.Rulings = cached.Rulings

	// Pair regenerated events with cached rulings of the same type in
	// order; rulings without a window (segment failures) render nothing.
	used := make([]bool, len(cached.Rulings))
	for _, ev := range events {
		for i, ruling := range cached.Rulings {
			if used[i] || ruling.Type != ev.Type {
				continue
			}
			used[i] = true
			frames := renderer.Render(ctx, ev, ruling, calBySeg[ev.SegmentID])
			recordOverlayMetrics(frames)
			result.Overlays = append(result.Overlays, OverlaySet{
				EventID: ruling.EventID,
				Frames:  frames,
			})
			break
		}
	}
	return result
}

// recordOverlayMetrics counts a rendered replay window. Frames without
// artifacts are the ones calibration coverage left bare.
func recordOverlayMetrics(frames []model.OverlayFrame) {
	stale := 0
	for _, f := range frames {
		if len(f.Artifacts) == 0 {
			stale++
		}
	}
	metrics.RecordOverlayFrames(len(frames))
	if stale > 0 {
		metrics.RecordOverlayStaleFrames(stale)
	}
}

// groupBySegment buckets tracks by their segment, preserving order.
func groupBySegment(tracks []*model.Track) map[string][]*model.Track {
	out := make(map[string][]*model.Track)
	for _, t := range tracks {
		out[t.SegmentID] = append(out[t.SegmentID], t)
	}
	return out
}

// sortEvents orders events by segment, then instant, then type, so results
// are stable no matter which worker ruled first.
func sortEvents(events []*model.DecisionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].SegmentID != events[j].SegmentID {
			return events[i].SegmentID < events[j].SegmentID
		}
		if events[i].InstantFrame != events[j].InstantFrame {
			return events[i].InstantFrame < events[j].InstantFrame
		}
		return events[i].Type < events[j].Type
	})
}
