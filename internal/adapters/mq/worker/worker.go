// Package worker defines worker contracts for asynchronous event evaluation.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/offsidezero/varcore/internal/adapters/mq/queue"
	"github.com/offsidezero/varcore/internal/domain/confidence"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/rules"
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
	"github.com/offsidezero/varcore/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Event abstracts what workers read off the queue.
// Using the model.DecisionEvent type for consistency.
type Event = model.DecisionEvent

// Registry resolves the id references a decision event carries.
type Registry interface {
	Calibration(ctx context.Context, segmentID string) (*model.Calibration, error)
	Track(ctx context.Context, id string) (*model.Track, error)
}

// Evaluator rules on one event type against frozen tracks.
type Evaluator interface {
	Evaluate(ctx context.Context, ev *model.DecisionEvent, cal *model.Calibration, ball *model.Track, players []*model.Track) (*rules.Assessment, error)
}

// Composer turns assessments into confidence-scored rulings.
type Composer interface {
	Compose(ctx context.Context, a *rules.Assessment, cal *model.Calibration, tracks []*model.Track) *model.Ruling
}

// Recorder stores finished rulings.
type Recorder interface {
	PutRuling(ctx context.Context, ruling *model.Ruling) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes decision events and records rulings using the provided
// interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining events before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for evaluating events.
type InMemoryWorker struct {
	queue      Queue
	registry   Registry
	recorder   Recorder
	evaluators map[types.EventType]Evaluator
	composer   Composer
	name       string

	// Shutdown control
	shutdown     chan struct{}
	poolShutdown <-chan struct{} // nil outside a pool
	done         chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options. The
// offside and handball evaluators and the default composer are wired unless
// options replace them.
func NewInMemoryWorker(queue Queue, registry Registry, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		registry: registry,
		recorder: recorder,
		evaluators: map[types.EventType]Evaluator{
			types.EventOffside:  rules.NewOffside(),
			types.EventHandball: rules.NewHandball(),
		},
		composer: confidence.NewComposer(),
		name:     "worker", // default name
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-w.poolShutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			// Process the event
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(w.shutdown)

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// resolved holds the registry lookups for one event. A partial resolution
// still carries whatever was found so the inconclusive ruling keeps the
// right discounts.
type resolved struct {
	cal     *model.Calibration
	ball    *model.Track
	players []*model.Track
	all     []*model.Track
}

// processEvent evaluates a single event and records the ruling. Unresolvable
// references downgrade to an inconclusive ruling naming the missing
// evidence; only evaluator misuse or a recording failure surfaces an error.
func (w *InMemoryWorker) processEvent(ctx context.Context, event queue.Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	// Track evaluation latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordEvaluationLatency(float64(latency))
	}()

	refs, resolveErr := w.resolve(ctx, &event)

	var assessment *rules.Assessment
	if resolveErr != nil {
		metrics.RecordErrorByComponent("worker", "unresolved_reference")
		w.logger.Warn(ctx, "event references unresolved",
			logger.String("eventID", event.ID),
			logger.Error(resolveErr),
		)
		assessment = &rules.Assessment{
			EventID: event.ID,
			Type:    event.Type,
			Verdict: types.VerdictInconclusive,
			Steps: []model.ExplanationStep{
				{Claim: "unresolved reference: " + resolveErr.Error(), Weight: 1, Reliability: 1},
			},
		}
	} else {
		eval, ok := w.evaluators[event.Type]
		if !ok {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "unknown_event_type")
			return fmt.Errorf("event %s is %s: %w", event.ID, event.Type, ErrNoEvaluator)
		}

		var err error
		assessment, err = eval.Evaluate(ctx, &event, refs.cal, refs.ball, refs.players)
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "evaluation_error")
			w.logger.Error(ctx, "evaluation failed for event",
				logger.String("eventID", event.ID),
				logger.Error(err),
			)
			return fmt.Errorf("failed to evaluate event %s: %w", event.ID, err)
		}
	}

	ruling := w.composer.Compose(ctx, assessment, refs.cal, refs.all)
	metrics.RecordRuling(string(ruling.Type), string(ruling.Verdict))
	metrics.ObserveRulingConfidence(ruling.Confidence)

	if err := w.recorder.PutRuling(ctx, ruling); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "record_error")
		w.logger.Error(ctx, "ruling record failed for event",
			logger.String("eventID", event.ID),
			logger.Error(err),
		)
		return fmt.Errorf("ruling record failed: %w", err)
	}

	return nil
}

// resolve loads the event's calibration and referenced tracks, partitioning
// tracks into the ball and the players.
func (w *InMemoryWorker) resolve(ctx context.Context, event *queue.Event) (*resolved, error) {
	refs := &resolved{}

	cal, err := w.registry.Calibration(ctx, event.SegmentID)
	if err != nil {
		return refs, fmt.Errorf("calibration for segment %s: %w", event.SegmentID, err)
	}
	refs.cal = cal

	for _, id := range event.TrackIDs {
		t, err := w.registry.Track(ctx, id)
		if err != nil {
			return refs, fmt.Errorf("track %s: %w", id, err)
		}
		refs.all = append(refs.all, t)
		if t.Kind == types.TrackBall {
			refs.ball = t
		} else {
			refs.players = append(refs.players, t)
		}
	}

	return refs, nil
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	registry Registry
	recorder Recorder

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. Options apply to every worker; each
// worker gets an indexed name on top of them.
func NewPool(workerCount int, queue Queue, registry Registry, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		registry: registry,
		recorder: recorder,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(queue, registry, recorder, workerOpts...)
		pool.workers[i].poolShutdown = pool.shutdown
	}

	// Initialize worker metrics
	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers. Call Stop or Shutdown once, not both.
func (p *Pool) Stop() {
	// Signal shutdown to all workers
	close(p.shutdown)

	// Wait for all workers to finish
	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}

	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown gracefully shuts down the entire worker pool, closing the queue
// first so no new events arrive.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new events
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Signal shutdown to all workers
	close(p.shutdown)

	// Wait for all workers to finish or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerActiveCount(0)

	return nil
}
