// Package metrics provides Prometheus metrics for the skillcalc service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine
	calculationLatency *prometheus.HistogramVec
	calculationErrors  *prometheus.CounterVec
	searchIterations   prometheus.Histogram
	windowsAnalyzed    prometheus.Counter
	calibrationReloads *prometheus.CounterVec

	// Jobs
	jobsSubmitted prometheus.Counter
	jobsDuplicate prometheus.Counter
	jobsFinished  *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Result store
	storeRecords         prometheus.Gauge
	storeRecordsPerShard *prometheus.GaugeVec
	storeUpdateLatency   prometheus.Histogram
	storeQueryLatency    prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "skillcalc",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		enabled:          true,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.calculationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "calculation_latency_milliseconds",
		Help:        "Latency of engine calls by operation",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"operation"})
	m.calculationErrors = m.counterVec("calculation_errors_total", "Failed engine calls by operation and error kind", "operation", "kind")
	m.searchIterations = m.histogram("search_iterations", "Bisection steps spent per goal inversion",
		[]float64{1, 5, 10, 20, 40, 60, 80, 100, 200})
	m.windowsAnalyzed = m.counter("windows_analyzed_total", "Pattern windows drained by the aggregator")
	m.calibrationReloads = m.counterVec("calibration_reloads_total", "Calibration reload attempts by result", "result")

	m.jobsSubmitted = m.counter("jobs_submitted_total", "Rating jobs accepted")
	m.jobsDuplicate = m.counter("jobs_duplicate_total", "Submissions answered by an existing job for the same chart")
	m.jobsFinished = m.counterVec("jobs_finished_total", "Rating jobs finished by status", "status")

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Rejected enqueues")

	m.workerCount = m.gauge("worker_count", "Configured workers")
	m.workerActive = m.gauge("worker_active", "Workers currently rating a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to rate one job", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")

	m.storeRecords = m.gauge("store_records_total", "Results held by the store")
	m.storeRecordsPerShard = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_records_per_shard",
		Help:        "Results held per store shard",
		ConstLabels: m.constLabels,
	}, []string{"shard_id"})
	m.storeUpdateLatency = m.histogram("store_update_latency_milliseconds", "Result store write latency", m.histogramBuckets)
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Result store read latency", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
}

// RecordCalculation records the latency of one engine call.
func RecordCalculation(operation string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.calculationLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// RecordCalculationError counts a failed engine call.
func RecordCalculationError(operation, kind string) {
	if globalManager.enabled {
		globalManager.calculationErrors.WithLabelValues(operation, kind).Inc()
	}
}

// RecordSearchIterations records the bisection steps of one inversion.
func RecordSearchIterations(n int) {
	if globalManager.enabled {
		globalManager.searchIterations.Observe(float64(n))
	}
}

// RecordWindowsAnalyzed adds n drained windows.
func RecordWindowsAnalyzed(n int) {
	if globalManager.enabled {
		globalManager.windowsAnalyzed.Add(float64(n))
	}
}

// RecordCalibrationReload counts a reload attempt; result is "ok" or "error".
func RecordCalibrationReload(result string) {
	if globalManager.enabled {
		globalManager.calibrationReloads.WithLabelValues(result).Inc()
	}
}

// RecordJobSubmitted counts an accepted job.
func RecordJobSubmitted() {
	if globalManager.enabled {
		globalManager.jobsSubmitted.Inc()
	}
}

// RecordJobDuplicate counts a submission answered by an existing job.
func RecordJobDuplicate() {
	if globalManager.enabled {
		globalManager.jobsDuplicate.Inc()
	}
}

// RecordJobFinished counts a finished job by status.
func RecordJobFinished(status string) {
	if globalManager.enabled {
		globalManager.jobsFinished.WithLabelValues(status).Inc()
	}
}

// UpdateQueueSize sets the queue backlog.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// AddWorkerActive moves the busy-worker gauge by delta.
func AddWorkerActive(delta int) {
	if globalManager.enabled {
		globalManager.workerActive.Add(float64(delta))
	}
}

// RecordWorkerProcessingLatency records the time to rate one job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// UpdateStoreRecords sets the number of stored results.
func UpdateStoreRecords(count int) {
	if globalManager.enabled {
		globalManager.storeRecords.Set(float64(count))
	}
}

// UpdateStoreRecordsPerShard sets the number of results in one shard.
func UpdateStoreRecordsPerShard(shardID string, count int) {
	if globalManager.enabled {
		globalManager.storeRecordsPerShard.WithLabelValues(shardID).Set(float64(count))
	}
}

// RecordStoreUpdateLatency records a store write.
func RecordStoreUpdateLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.storeUpdateLatency.Observe(latencyMs)
	}
}

// RecordStoreQueryLatency records a store read.
func RecordStoreQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.storeQueryLatency.Observe(latencyMs)
	}
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
