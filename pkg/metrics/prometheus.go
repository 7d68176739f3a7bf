// Package metrics provides Prometheus metrics for the trust score service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recalculation outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	deltaBuckets     []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Recalculation
	recalculations       *prometheus.CounterVec
	recalculationLatency prometheus.Histogram
	conflicts            prometheus.Counter
	ledgerAppends        prometheus.Counter
	scoreDelta           prometheus.Histogram
	collectorFailures    *prometheus.CounterVec
	weightUpdates        prometheus.Counter

	// Queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter
	workerLatency      prometheus.Histogram
	duplicates         prometheus.Counter

	// Out-of-band retry
	retryBufferSize prometheus.Gauge
	retryRequeued   prometheus.Counter
	retryDropped    *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "trust",
		subsystem:        "reputation",
		histogramBuckets: prometheus.DefBuckets,
		deltaBuckets:     []float64{-100, -25, -10, -5, -1, 0, 1, 5, 10, 25, 100},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.recalculations = m.counterVec("recalculations_total",
		"Recalculations by outcome and reason", "outcome", "reason")
	m.recalculationLatency = m.histogram("recalculation_latency_milliseconds",
		"End-to-end recalculation latency in milliseconds", m.histogramBuckets)
	m.conflicts = m.counter("recalculation_conflicts_total",
		"Compare-and-swap conflicts that forced a recalculation retry")
	m.ledgerAppends = m.counter("ledger_appends_total",
		"Reputation events appended to the ledger")
	m.scoreDelta = m.histogram("score_delta",
		"Distribution of score deltas written to the ledger", m.deltaBuckets)
	m.collectorFailures = m.counterVec("collector_failures_total",
		"Signal source failures by source", "source")
	m.weightUpdates = m.counter("weight_updates_total",
		"Accepted weight configuration updates")

	m.queueSize = m.gauge("queue_size", "Current number of pending recompute requests")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Recompute requests enqueued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Recompute requests rejected by the queue")
	m.workerCount = m.gauge("worker_count", "Number of running workers")
	m.workerErrors = m.counter("worker_errors_total", "Recompute requests that failed in a worker")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker processing latency in milliseconds", m.histogramBuckets)
	m.duplicates = m.counter("requests_duplicate_total", "Redelivered recompute requests skipped")

	m.retryBufferSize = m.gauge("retry_buffer_size", "Recompute requests parked for retry")
	m.retryRequeued = m.counter("retry_requeued_total", "Parked requests re-enqueued by the sweeper")
	m.retryDropped = m.counterVec("requests_dropped_total",
		"Recompute requests given up on, by cause", "cause")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordRecalculation counts a finished recalculation and its latency.
func RecordRecalculation(outcome, reason string, latencyMs float64) {
	globalManager.recalculations.WithLabelValues(outcome, reason).Inc()
	globalManager.recalculationLatency.Observe(latencyMs)
}

// RecordConflict counts a compare-and-swap conflict.
func RecordConflict() {
	globalManager.conflicts.Inc()
}

// RecordLedgerAppend counts an appended event and observes its delta.
func RecordLedgerAppend(delta int64) {
	globalManager.ledgerAppends.Inc()
	globalManager.scoreDelta.Observe(float64(delta))
}

// RecordCollectorFailure counts a failing signal source.
func RecordCollectorFailure(source string) {
	globalManager.collectorFailures.WithLabelValues(source).Inc()
}

// RecordWeightUpdate counts an accepted weight update.
func RecordWeightUpdate() {
	globalManager.weightUpdates.Inc()
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted request.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError counts a rejected request.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError counts a failed request.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerProcessingLatency observes how long a worker spent on one request.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordDuplicate counts a skipped redelivery.
func RecordDuplicate() {
	globalManager.duplicates.Inc()
}

// UpdateRetryBufferSize sets the number of parked requests.
func UpdateRetryBufferSize(size int) {
	globalManager.retryBufferSize.Set(float64(size))
}

// RecordRetryRequeued counts a parked request handed back to the queue.
func RecordRetryRequeued() {
	globalManager.retryRequeued.Inc()
}

// RecordDropped counts a request that will not be retried.
func RecordDropped(cause string) {
	globalManager.retryDropped.WithLabelValues(cause).Inc()
}

// RecordHTTPRequest counts an HTTP request and observes its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
