// Package metrics provides Prometheus metrics for the brandmatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the brandmatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Matching
	matchRequests        *prometheus.CounterVec
	matchLatency         prometheus.Histogram
	attributeFailures    *prometheus.CounterVec
	candidatesAggregated prometheus.Histogram
	matchesDropped       *prometheus.CounterVec

	// Upstream collaborators
	embeddingLatency  *prometheus.HistogramVec
	embeddingErrors   *prometheus.CounterVec
	indexQueryLatency *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec

	// Ingestion
	ingestJobs          *prometheus.CounterVec
	ingestLatency       prometheus.Histogram
	queueSize           prometheus.Gauge
	queueCapacity       prometheus.Gauge
	queueEnqueueErrors  *prometheus.CounterVec
	workerCount         prometheus.Gauge
	indexedCandidates   *prometheus.GaugeVec
	brandsTotal         prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "brandmatch",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.matchRequests = m.counterVec("match_requests_total",
		"Total number of ranking requests by outcome", "outcome")
	m.matchLatency = m.histogram("match_latency_milliseconds",
		"End-to-end ranking latency in milliseconds", m.histogramBuckets)
	m.attributeFailures = m.counterVec("attribute_failures_total",
		"Attribute fetches skipped during ranking by attribute and failure kind", "attribute", "kind")
	m.candidatesAggregated = m.histogram("candidates_aggregated",
		"Distinct candidates aggregated per ranking request", []float64{0, 1, 3, 5, 10, 20, 50, 100})
	m.matchesDropped = m.counterVec("matches_dropped_total",
		"Index matches dropped for missing or malformed metadata", "partition")

	m.embeddingLatency = m.histogramVec("embedding_latency_milliseconds",
		"Embedding provider latency in milliseconds", "provider")
	m.embeddingErrors = m.counterVec("embedding_errors_total",
		"Embedding provider failures", "provider")
	m.indexQueryLatency = m.histogramVec("index_query_latency_milliseconds",
		"Similarity index query latency in milliseconds", "partition")
	m.breakerState = m.gaugeVec("breaker_state",
		"Circuit breaker state (0 closed, 1 half-open, 2 open)", "name")

	m.ingestJobs = m.counterVec("ingest_jobs_total",
		"Influencer ingest jobs by status", "status")
	m.ingestLatency = m.histogram("ingest_latency_milliseconds",
		"Time to embed and index one influencer profile", m.histogramBuckets)
	m.queueSize = m.gauge("queue_size", "Current size of the ingest queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingest queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total",
		"Rejected ingest enqueues by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Number of ingest workers")
	m.indexedCandidates = m.gaugeVec("indexed_candidates",
		"Candidates indexed per partition", "partition")
	m.brandsTotal = m.gauge("brands_total", "Brands held by the brand store")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordMatchRequest counts a ranking request by outcome (ok, not_found, unavailable, error).
func RecordMatchRequest(outcome string) {
	globalManager.matchRequests.WithLabelValues(outcome).Inc()
}

// RecordMatchLatency records end-to-end ranking latency.
func RecordMatchLatency(latencyMs float64) {
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordAttributeFailure counts an attribute skipped during ranking.
func RecordAttributeFailure(attribute, kind string) {
	globalManager.attributeFailures.WithLabelValues(attribute, kind).Inc()
}

// RecordCandidatesAggregated observes the candidate count of one ranking.
func RecordCandidatesAggregated(count int) {
	globalManager.candidatesAggregated.Observe(float64(count))
}

// RecordMatchesDropped counts matches dropped for one partition.
func RecordMatchesDropped(partition string, count int) {
	if count <= 0 {
		return
	}
	globalManager.matchesDropped.WithLabelValues(partition).Add(float64(count))
}

// RecordEmbeddingLatency records the latency of one embedding call.
func RecordEmbeddingLatency(provider string, latencyMs float64) {
	globalManager.embeddingLatency.WithLabelValues(provider).Observe(latencyMs)
}

// RecordEmbeddingError counts an embedding failure.
func RecordEmbeddingError(provider string) {
	globalManager.embeddingErrors.WithLabelValues(provider).Inc()
}

// RecordIndexQueryLatency records the latency of one partition query.
func RecordIndexQueryLatency(partition string, latencyMs float64) {
	globalManager.indexQueryLatency.WithLabelValues(partition).Observe(latencyMs)
}

// UpdateBreakerState sets the state gauge of a named circuit breaker.
func UpdateBreakerState(name string, state int) {
	globalManager.breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordIngestJob counts an ingest job by status (indexed, failed, duplicate).
func RecordIngestJob(status string) {
	globalManager.ingestJobs.WithLabelValues(status).Inc()
}

// RecordIngestLatency records the time to index one profile.
func RecordIngestLatency(latencyMs float64) {
	globalManager.ingestLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateIndexedCandidates sets the number of indexed candidates of a partition.
func UpdateIndexedCandidates(partition string, count int) {
	globalManager.indexedCandidates.WithLabelValues(partition).Set(float64(count))
}

// UpdateBrandsTotal sets the number of stored brands.
func UpdateBrandsTotal(count int) {
	globalManager.brandsTotal.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the allocated heap in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom registry used by the package recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
