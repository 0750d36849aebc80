// Package metrics provides Prometheus metrics for the credit score service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring
	scoresComputed    prometheus.Counter
	scoringLatency    prometheus.Histogram
	checkMarksAwarded prometheus.Counter
	scoreEdits        prometheus.Counter
	scoresReplaced    prometheus.Counter
	configFallbacks   *prometheus.CounterVec
	invalidActivities prometheus.Counter
	duplicates        prometheus.Counter

	// Leaderboard
	leaderboardBuilds  prometheus.Counter
	leaderboardLatency prometheus.Histogram
	leaderboardCache   *prometheus.CounterVec
	leaderboardEntries prometheus.Gauge
	totalEmployees     prometheus.Gauge
	repositoryLatency  *prometheus.HistogramVec
	repositoryRecords  prometheus.Gauge

	// Queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // custom registry avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "wcs",
		subsystem:        "engine",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
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

func (m *Manager) counter(n, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(n, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(n, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) counterVec(n, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(n, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.scoresComputed = m.counter("scores_computed_total", "Score records computed from activity")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Time spent computing one score record")
	m.checkMarksAwarded = m.counter("check_marks_awarded_total", "Score records that earned a check mark")
	m.scoreEdits = m.counter("score_edits_total", "Authorized score edits that recomputed a record")
	m.scoresReplaced = m.counter("scores_replaced_total", "Stored score records replaced by a full rescore")
	m.configFallbacks = m.counterVec("config_fallbacks_total", "Personalization lookups that fell back to defaults", "kind", "reason")
	m.invalidActivities = m.counter("invalid_activities_total", "Activity records rejected at ingestion")
	m.duplicates = m.counter("duplicate_submissions_total", "Activity submissions acknowledged as duplicates")

	m.leaderboardBuilds = m.counter("leaderboard_builds_total", "Leaderboards recomputed from score history")
	m.leaderboardLatency = m.histogram("leaderboard_build_milliseconds", "Time spent rebuilding the leaderboard")
	m.leaderboardCache = m.counterVec("leaderboard_cache_total", "Leaderboard cache lookups", "result")
	m.leaderboardEntries = m.gauge("leaderboard_entries", "Employees currently ranked")
	m.totalEmployees = m.gauge("employees", "Employees on the roster")
	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Store operation latency", "op")
	m.repositoryRecords = m.gauge("repository_score_records", "Score records held by the store")

	m.queueSize = m.gauge("queue_size", "Scoring jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Scoring queue capacity")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Scoring jobs rejected by the queue")
	m.workerCount = m.gauge("worker_count", "Scoring workers running")
	m.workerErrors = m.counter("worker_errors_total", "Scoring jobs that failed in a worker")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")
	m.rateLimited = m.counterVec("http_rate_limited_total", "HTTP requests rejected by the write limiter", "endpoint")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Running goroutines")
}

// RecordScoreComputed records a computed score and whether it earned a check mark.
func RecordScoreComputed(latencyMs float64, checkMark bool) {
	globalManager.scoresComputed.Inc()
	globalManager.scoringLatency.Observe(latencyMs)
	if checkMark {
		globalManager.checkMarksAwarded.Inc()
	}
}

// RecordScoreEdit counts an authorized edit.
func RecordScoreEdit() { globalManager.scoreEdits.Inc() }

// RecordScoreReplaced counts a stored record replaced by rescoring its period.
func RecordScoreReplaced() { globalManager.scoresReplaced.Inc() }

// RecordConfigFallback counts a personalization lookup that resolved to defaults.
func RecordConfigFallback(kind, reason string) {
	globalManager.configFallbacks.WithLabelValues(kind, reason).Inc()
}

// RecordInvalidActivity counts an activity rejected by validation.
func RecordInvalidActivity() { globalManager.invalidActivities.Inc() }

// RecordDuplicate counts a duplicate submission.
func RecordDuplicate() { globalManager.duplicates.Inc() }

// RecordLeaderboardBuild records a leaderboard recomputation.
func RecordLeaderboardBuild(latencyMs float64, entries int) {
	globalManager.leaderboardBuilds.Inc()
	globalManager.leaderboardLatency.Observe(latencyMs)
	globalManager.leaderboardEntries.Set(float64(entries))
}

// RecordLeaderboardCache records a cache hit or miss.
func RecordLeaderboardCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.leaderboardCache.WithLabelValues(result).Inc()
}

// UpdateTotalEmployees sets the roster size.
func UpdateTotalEmployees(count int) { globalManager.totalEmployees.Set(float64(count)) }

// RecordRepositoryLatency observes one store operation.
func RecordRepositoryLatency(op string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateRepositoryRecords sets the number of stored score records.
func UpdateRepositoryRecords(count int) { globalManager.repositoryRecords.Set(float64(count)) }

// UpdateQueueSize sets the number of queued jobs.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerError counts a failed job.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordRateLimited counts a throttled request.
func RecordRateLimited(endpoint string) { globalManager.rateLimited.WithLabelValues(endpoint).Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
