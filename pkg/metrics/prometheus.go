// Package metrics provides Prometheus metrics for the fitrec recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are milliseconds, from sub-ms lookups to minute-long
// generator calls.
var latencyBuckets = []float64{0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000} //nolint:gochecknoglobals // fixed bucket layout

// Count buckets for seed and row histograms.
var countBuckets = []float64{0, 1, 2, 5, 10, 20, 50, 100} //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the fitrec service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Recommendation pipeline
	recommendationsTotal  prometheus.Counter
	recommendationLatency prometheus.Histogram
	recommendationSeeds   prometheus.Histogram
	recommendationRows    prometheus.Histogram
	seedsSkipped          prometheus.Counter
	missingMetadata       prometheus.Counter
	emptyRecommendations  prometheus.Counter

	// Dataset snapshots
	snapshotCacheHits   prometheus.Counter
	snapshotCacheMisses prometheus.Counter
	snapshotLoadLatency prometheus.Histogram
	snapshotItems       prometheus.Gauge

	// Generative text service
	generatorRequests *prometheus.CounterVec
	generatorLatency  prometheus.Histogram
	breakerState      *prometheus.GaugeVec
	promptBytes       prometheus.Histogram

	// Plan jobs
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueUtilization        prometheus.Gauge
	queueEnqueueRate        prometheus.Counter
	queueDequeueRate        prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	queueProcessingLatency  prometheus.Histogram
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter
	jobsFinished            *prometheus.CounterVec
	jobsStored              prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "fitrec",
		subsystem:      "recommender",
		latencyBuckets: latencyBuckets,
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}
	counterVec := func(name, help string, keys ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, keys)
	}

	m.recommendationsTotal = counter("recommendations_total", "Total number of recommendation pipeline runs")
	m.recommendationLatency = histogram("recommendation_latency_milliseconds", "Recommendation pipeline latency in milliseconds", m.latencyBuckets)
	m.recommendationSeeds = histogram("recommendation_seeds", "Number of seed exercises matched by the categorical filter", countBuckets)
	m.recommendationRows = histogram("recommendation_rows", "Number of ranked rows returned per recommendation", countBuckets)
	m.seedsSkipped = counter("seeds_skipped_total", "Seeds skipped because their identifier is outside the similarity matrix")
	m.missingMetadata = counter("missing_metadata_total", "Neighbors without a catalogue row (snapshot mismatch)")
	m.emptyRecommendations = counter("empty_recommendations_total", "Recommendation runs that produced zero rows")

	m.snapshotCacheHits = counter("snapshot_cache_hits_total", "Dataset snapshot cache hits")
	m.snapshotCacheMisses = counter("snapshot_cache_misses_total", "Dataset snapshot cache misses")
	m.snapshotLoadLatency = histogram("snapshot_load_latency_milliseconds", "Dataset snapshot load latency in milliseconds", m.latencyBuckets)
	m.snapshotItems = gauge("snapshot_items", "Number of exercises in the most recently loaded snapshot")

	m.generatorRequests = counterVec("generator_requests_total", "Generative text requests by outcome", "outcome")
	m.generatorLatency = histogram("generator_latency_milliseconds", "Generative text request latency in milliseconds", m.latencyBuckets)
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("breaker_state"),
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)", ConstLabels: labels,
	}, []string{"name"})
	m.promptBytes = histogram("prompt_bytes", "Size of generated prompts in bytes", prometheus.ExponentialBuckets(256, 2, 10))

	m.queueSize = gauge("queue_size", "Current size of the plan job queue")
	m.queueCapacity = gauge("queue_capacity", "Maximum capacity of the plan job queue")
	m.queueUtilization = gauge("queue_utilization_ratio", "Plan job queue utilization ratio (0-1)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.latencyBuckets)
	m.workerCount = gauge("worker_count", "Configured number of plan workers")
	m.workerActiveCount = gauge("worker_active_count", "Number of workers currently running a job")
	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds", "Plan job processing latency in milliseconds", m.latencyBuckets)
	m.workerErrorRate = counter("worker_errors_total", "Total number of failed plan jobs")
	m.jobsFinished = counterVec("jobs_finished_total", "Plan jobs finished by final status", "status")
	m.jobsStored = gauge("jobs_stored", "Plan jobs currently held in the job store")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", ConstLabels: labels, Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = counterVec("errors_by_component_total", "Total errors by component", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Total errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Total errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("error_latency_milliseconds"),
		Help: "Latency of failed operations in milliseconds", ConstLabels: labels, Buckets: m.latencyBuckets,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "Current memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds", m.latencyBuckets)
}

// Recommendation pipeline.

// RecordRecommendation records one pipeline run.
func RecordRecommendation(seeds, rows int, latencyMs float64) {
	globalManager.recommendationsTotal.Inc()
	globalManager.recommendationSeeds.Observe(float64(seeds))
	globalManager.recommendationRows.Observe(float64(rows))
	globalManager.recommendationLatency.Observe(latencyMs)
	if rows == 0 {
		globalManager.emptyRecommendations.Inc()
	}
}

// RecordSeedSkipped counts a seed dropped from expansion.
func RecordSeedSkipped() {
	globalManager.seedsSkipped.Inc()
}

// RecordMissingMetadata counts a neighbor with no catalogue row.
func RecordMissingMetadata() {
	globalManager.missingMetadata.Inc()
}

// Dataset snapshots.

// RecordSnapshotCacheHit counts a cache hit.
func RecordSnapshotCacheHit() {
	globalManager.snapshotCacheHits.Inc()
}

// RecordSnapshotCacheMiss counts a cache miss.
func RecordSnapshotCacheMiss() {
	globalManager.snapshotCacheMisses.Inc()
}

// RecordSnapshotLoad records a completed snapshot load.
func RecordSnapshotLoad(items int, latencyMs float64) {
	globalManager.snapshotLoadLatency.Observe(latencyMs)
	globalManager.snapshotItems.Set(float64(items))
}

// Generative text service.

// RecordGeneratorRequest records one call to the text generation service.
// outcome is one of: success, error, rejected, empty.
func RecordGeneratorRequest(outcome string, latencyMs float64) {
	globalManager.generatorRequests.WithLabelValues(outcome).Inc()
	globalManager.generatorLatency.Observe(latencyMs)
}

// UpdateBreakerState sets the circuit breaker state gauge.
func UpdateBreakerState(name string, state float64) {
	globalManager.breakerState.WithLabelValues(name).Set(state)
}

// RecordPromptSize records the size of a built prompt.
func RecordPromptSize(bytes int) {
	globalManager.promptBytes.Observe(float64(bytes))
}

// Plan jobs.

// UpdateQueueSize updates the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization updates the queue utilization ratio.
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

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount updates the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// IncWorkerActive marks a worker busy.
func IncWorkerActive() {
	globalManager.workerActiveCount.Inc()
}

// DecWorkerActive marks a worker idle.
func DecWorkerActive() {
	globalManager.workerActiveCount.Dec()
}

// RecordWorkerProcessingLatency records job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordJobFinished counts a job reaching a final status.
func RecordJobFinished(status string) {
	globalManager.jobsFinished.WithLabelValues(status).Inc()
}

// UpdateJobsStored updates the number of jobs held in the store.
func UpdateJobsStored(count int) {
	globalManager.jobsStored.Set(float64(count))
}

// HTTP.

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType increments the error counter by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint increments the error counter for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of a failed operation.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage updates the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
