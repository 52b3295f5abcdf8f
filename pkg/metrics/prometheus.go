// Package metrics provides Prometheus metrics for the varcore decision pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the varcore service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion Metrics - Frames entering the pipeline
	framesObserved  prometheus.Counter
	framesDuplicate prometheus.Counter

	// Provider Metrics - The external vision-reasoning collaborator
	providerCalls    prometheus.Counter
	providerRetries  prometheus.Counter
	providerFailures *prometheus.CounterVec
	providerLatency  prometheus.Histogram

	// Calibration Metrics - Homography fit quality
	calibrationFits     prometheus.Counter
	calibrationFailures prometheus.Counter
	calibrationResidual prometheus.Histogram

	// Tracking Metrics - Track builder output
	tracksFrozen prometheus.Counter
	trackSplits  prometheus.Counter

	// Decision Metrics - Events, rulings and confidence
	eventsLocalized  *prometheus.CounterVec
	rulings          *prometheus.CounterVec
	rulingConfidence prometheus.Histogram

	// Overlay Metrics - Replay frames
	overlayFrames      prometheus.Counter
	overlayStaleFrames prometheus.Counter

	// Cache Metrics - Repeated clip analysis
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// Queue Metrics - Decision event queue performance
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - Evaluation performance
	workerActiveCount prometheus.Gauge
	evaluationLatency prometheus.Histogram
	workerErrorRate   prometheus.Counter

	// Pipeline Metrics - Per-segment processing
	segmentLatency prometheus.Histogram

	// Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "varcore",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Ingestion Metrics - Frames entering the pipeline
	m.framesObserved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_observed_total",
		Help:      "Total number of frame observations accepted into the pipeline",
	})

	m.framesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_duplicate_total",
		Help:      "Total number of duplicate frames dropped by the idempotency guard",
	})

	// Provider Metrics - External vision-reasoning collaborator
	m.providerCalls = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_calls_total",
		Help:      "Total number of batch calls to the vision provider",
	})

	m.providerRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_retries_total",
		Help:      "Total number of retried provider calls",
	})

	m.providerFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "provider_failures_total",
			Help:      "Total number of provider failures by kind",
		},
		[]string{"kind"},
	)

	m.providerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_latency_milliseconds",
		Help:      "Histogram of provider batch call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Calibration Metrics - Homography fit quality
	m.calibrationFits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_fits_total",
		Help:      "Total number of successful segment calibrations",
	})

	m.calibrationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_failures_total",
		Help:      "Total number of failed segment calibrations",
	})

	m.calibrationResidual = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_residual_meters",
		Help:      "Histogram of calibration reprojection residual in meters",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// Tracking Metrics - Track builder output
	m.tracksFrozen = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracks_frozen_total",
		Help:      "Total number of tracks frozen for evaluation",
	})

	m.trackSplits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "track_splits_total",
		Help:      "Total number of tracks split over uninterpolatable gaps",
	})

	// Decision Metrics - Events, rulings and confidence
	m.eventsLocalized = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_localized_total",
			Help:      "Total number of decision events localized by type",
		},
		[]string{"type"},
	)

	m.rulings = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "rulings_total",
			Help:      "Total number of rulings by event type and verdict",
		},
		[]string{"type", "verdict"},
	)

	m.rulingConfidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ruling_confidence",
		Help:      "Histogram of final ruling confidence",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	// Overlay Metrics - Replay frames
	m.overlayFrames = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "overlay_frames_total",
		Help:      "Total number of overlay frames rendered",
	})

	m.overlayStaleFrames = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "overlay_stale_frames_total",
		Help:      "Total number of replay frames shipped without overlay for lack of calibration",
	})

	// Cache Metrics - Repeated clip analysis
	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_cache_hits_total",
		Help:      "Total number of analysis cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_cache_misses_total",
		Help:      "Total number of analysis cache misses",
	})

	// Queue Metrics - Decision event queue performance
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the decision event queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of decision events enqueued",
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of decision events dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue errors",
	})

	m.queueProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_processing_latency_milliseconds",
		Help:      "Queue processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Worker Metrics - Evaluation performance
	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of active evaluation workers",
	})

	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_latency_milliseconds",
		Help:      "Decision event evaluation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrorRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker errors",
	})

	// Pipeline Metrics - Per-segment processing
	m.segmentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "segment_latency_milliseconds",
		Help:      "End-to-end segment processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
}

// Ingestion Metrics Functions.

// RecordFrameObserved increments the observed frames counter.
func RecordFrameObserved() {
	globalManager.framesObserved.Inc()
}

// RecordFrameDuplicate increments the duplicate frames counter.
func RecordFrameDuplicate() {
	globalManager.framesDuplicate.Inc()
}

// Provider Metrics Functions.

// RecordProviderCall increments the provider calls counter.
func RecordProviderCall() {
	globalManager.providerCalls.Inc()
}

// RecordProviderRetry increments the provider retries counter.
func RecordProviderRetry() {
	globalManager.providerRetries.Inc()
}

// RecordProviderFailure records a provider failure with its kind label.
func RecordProviderFailure(kind string) {
	globalManager.providerFailures.WithLabelValues(kind).Inc()
}

// RecordProviderLatency records provider batch call latency in milliseconds.
func RecordProviderLatency(latencyMs float64) {
	globalManager.providerLatency.Observe(latencyMs)
}

// Calibration Metrics Functions.

// RecordCalibrationFit increments the successful calibrations counter.
func RecordCalibrationFit() {
	globalManager.calibrationFits.Inc()
}

// RecordCalibrationFailure increments the failed calibrations counter.
func RecordCalibrationFailure() {
	globalManager.calibrationFailures.Inc()
}

// ObserveCalibrationResidual records a fit residual in meters.
func ObserveCalibrationResidual(residual float64) {
	globalManager.calibrationResidual.Observe(residual)
}

// Tracking Metrics Functions.

// RecordTracksFrozen adds to the frozen tracks counter.
func RecordTracksFrozen(count int) {
	globalManager.tracksFrozen.Add(float64(count))
}

// RecordTrackSplits adds to the track splits counter.
func RecordTrackSplits(count int) {
	globalManager.trackSplits.Add(float64(count))
}

// Decision Metrics Functions.

// RecordEventLocalized increments the localized events counter for a type.
func RecordEventLocalized(eventType string) {
	globalManager.eventsLocalized.WithLabelValues(eventType).Inc()
}

// RecordRuling increments the rulings counter for a type and verdict.
func RecordRuling(eventType, verdict string) {
	globalManager.rulings.WithLabelValues(eventType, verdict).Inc()
}

// ObserveRulingConfidence records a final ruling confidence.
func ObserveRulingConfidence(confidence float64) {
	globalManager.rulingConfidence.Observe(confidence)
}

// Overlay Metrics Functions.

// RecordOverlayFrames adds to the rendered overlay frames counter.
func RecordOverlayFrames(count int) {
	globalManager.overlayFrames.Add(float64(count))
}

// RecordOverlayStaleFrames adds to the stale overlay frames counter.
func RecordOverlayStaleFrames(count int) {
	globalManager.overlayStaleFrames.Add(float64(count))
}

// Cache Metrics Functions.

// RecordCacheHit increments the analysis cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the analysis cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordEvaluationLatency records event evaluation latency in milliseconds.
func RecordEvaluationLatency(latencyMs float64) {
	globalManager.evaluationLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Pipeline Metrics Functions.

// RecordSegmentLatency records end-to-end segment processing latency in
// milliseconds.
func RecordSegmentLatency(latencyMs float64) {
	globalManager.segmentLatency.Observe(latencyMs)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
