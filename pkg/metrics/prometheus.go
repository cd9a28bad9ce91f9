// Package metrics provides Prometheus metrics for the coffee pairing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the coffee service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Pairing Metrics
	roundsGenerated   prometheus.Counter
	pairsFormed       *prometheus.CounterVec
	repeatsCounted    prometheus.Counter
	deferredPerRound  prometheus.Histogram
	roundLatency      prometheus.Histogram
	participantsTotal prometheus.Gauge

	// Meeting Metrics
	meetingsByStatus    *prometheus.GaugeVec
	meetingStatusUpdate *prometheus.CounterVec
	moreRequests        *prometheus.CounterVec

	// Notification Metrics
	notificationsSent      *prometheus.CounterVec
	notificationsFailed    *prometheus.CounterVec
	notificationsDuplicate prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Ranking Metrics
	rankingRecordsTotal  prometheus.Gauge
	rankingUpdateLatency prometheus.Histogram
	rankingQueryLatency  prometheus.Histogram

	// Storage Metrics
	storeSaveLatency prometheus.Histogram
	storeLoadLatency prometheus.Histogram
	historyFiles     *prometheus.CounterVec

	// Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

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
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "coffee",
		subsystem:        "pairing",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	latencyBuckets := []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

	// Pairing
	m.roundsGenerated = auto.NewCounter(m.counterOpts("rounds_total", "Total number of generated rounds"))
	m.pairsFormed = auto.NewCounterVec(m.counterOpts("pairs_total", "Total number of pairs formed by phase"), []string{"phase"})
	m.repeatsCounted = auto.NewCounter(m.counterOpts("repeats_total", "Total number of repeat directions counted in fallback pairing"))
	m.deferredPerRound = auto.NewHistogram(m.histogramOpts("deferred_participants", "Participants deferred to the fallback phase per round",
		[]float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256}))
	m.roundLatency = auto.NewHistogram(m.histogramOpts("round_latency_milliseconds", "Time to generate and commit a round", latencyBuckets))
	m.participantsTotal = auto.NewGauge(m.gaugeOpts("participants_total", "Enabled participants"))

	// Meetings
	m.meetingsByStatus = auto.NewGaugeVec(m.gaugeOpts("meetings", "Meeting views by status"), []string{"status"})
	m.meetingStatusUpdate = auto.NewCounterVec(m.counterOpts("meeting_status_updates_total", "Meeting status changes by target status"), []string{"status"})
	m.moreRequests = auto.NewCounterVec(m.counterOpts("more_requests_total", "On-demand meeting requests by outcome"), []string{"outcome"})

	// Notifications
	m.notificationsSent = auto.NewCounterVec(m.counterOpts("notifications_sent_total", "Notifications delivered by kind"), []string{"kind"})
	m.notificationsFailed = auto.NewCounterVec(m.counterOpts("notifications_failed_total", "Notifications that failed delivery by kind"), []string{"kind"})
	m.notificationsDuplicate = auto.NewCounter(m.counterOpts("notifications_duplicate_total", "Notifications skipped because they were already queued"))

	// HTTP
	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"})

	// Ranking
	m.rankingRecordsTotal = auto.NewGauge(m.gaugeOpts("ranking_records_total", "Participants tracked by the ranking index"))
	m.rankingUpdateLatency = auto.NewHistogram(m.histogramOpts("ranking_update_latency_milliseconds", "Ranking update latency", latencyBuckets))
	m.rankingQueryLatency = auto.NewHistogram(m.histogramOpts("ranking_query_latency_milliseconds", "Ranking query latency", latencyBuckets))

	// Storage
	m.storeSaveLatency = auto.NewHistogram(m.histogramOpts("store_save_latency_milliseconds", "Snapshot save latency", latencyBuckets))
	m.storeLoadLatency = auto.NewHistogram(m.histogramOpts("store_load_latency_milliseconds", "Snapshot load latency", latencyBuckets))
	m.historyFiles = auto.NewCounterVec(m.counterOpts("history_files_total", "History files processed by operation"), []string{"op"})

	// Queue
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the notification queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum capacity of the notification queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue utilization ratio (0.0 to 1.0)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of notifications enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of notifications dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue errors"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds", "Time spent waiting in the queue", latencyBuckets))

	// Workers
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured notification workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently delivering"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Workers waiting for work"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Delivery latency per notification", latencyBuckets))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker delivery errors"))

	// Errors
	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by HTTP endpoint"),
		[]string{"endpoint", "method", "error_type"})

	// System
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds", latencyBuckets))
}

// Pairing Metrics Functions.

// RecordRound records a generated round: pairs per phase, repeat
// directions counted, deferred participants and latency.
func RecordRound(fresh, fallback, repeats, deferred int, latencyMs float64) {
	globalManager.roundsGenerated.Inc()
	globalManager.pairsFormed.WithLabelValues("fresh").Add(float64(fresh))
	globalManager.pairsFormed.WithLabelValues("fallback").Add(float64(fallback))
	globalManager.repeatsCounted.Add(float64(repeats))
	globalManager.deferredPerRound.Observe(float64(deferred))
	globalManager.roundLatency.Observe(latencyMs)
}

// UpdateParticipants sets the number of enabled participants.
func UpdateParticipants(count int) {
	globalManager.participantsTotal.Set(float64(count))
}

// Meeting Metrics Functions.

// UpdateMeetings sets the number of meeting views per status.
func UpdateMeetings(byStatus map[string]int) {
	for status, n := range byStatus {
		globalManager.meetingsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// RecordMeetingStatusUpdate counts views moved to status.
func RecordMeetingStatusUpdate(status string, views int) {
	globalManager.meetingStatusUpdate.WithLabelValues(status).Add(float64(views))
}

// RecordMoreRequest counts an on-demand request; outcome is "matched" or "waiting".
func RecordMoreRequest(outcome string) {
	globalManager.moreRequests.WithLabelValues(outcome).Inc()
}

// Notification Metrics Functions.

// RecordNotificationSent counts a delivered notification.
func RecordNotificationSent(kind string) {
	globalManager.notificationsSent.WithLabelValues(kind).Inc()
}

// RecordNotificationFailed counts a failed delivery.
func RecordNotificationFailed(kind string) {
	globalManager.notificationsFailed.WithLabelValues(kind).Inc()
}

// RecordNotificationDuplicate counts a notification skipped by dedupe.
func RecordNotificationDuplicate() {
	globalManager.notificationsDuplicate.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Ranking Metrics Functions.

// UpdateRankingRecordsTotal sets the number of ranked participants.
func UpdateRankingRecordsTotal(count int) {
	globalManager.rankingRecordsTotal.Set(float64(count))
}

// RecordRankingUpdateLatency records ranking update latency.
func RecordRankingUpdateLatency(latencyMs float64) {
	globalManager.rankingUpdateLatency.Observe(latencyMs)
}

// RecordRankingQueryLatency records ranking query latency.
func RecordRankingQueryLatency(latencyMs float64) {
	globalManager.rankingQueryLatency.Observe(latencyMs)
}

// Storage Metrics Functions.

// RecordStoreSaveLatency records snapshot save latency.
func RecordStoreSaveLatency(latencyMs float64) {
	globalManager.storeSaveLatency.Observe(latencyMs)
}

// RecordStoreLoadLatency records snapshot load latency.
func RecordStoreLoadLatency(latencyMs float64) {
	globalManager.storeLoadLatency.Observe(latencyMs)
}

// RecordHistoryFile counts a history file operation ("write" or "read").
func RecordHistoryFile(op string) {
	globalManager.historyFiles.WithLabelValues(op).Inc()
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

// RecordQueueProcessingLatency records how long a notification waited.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
