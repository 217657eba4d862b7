// Package metrics provides Prometheus metrics for the livepitch service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Feed Metrics - upstream subscriptions and materialized snapshots
	snapshotsApplied    *prometheus.CounterVec
	subscriptionErrors  *prometheus.CounterVec
	malformedDocuments  *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
	upstreamReconnects  prometheus.Counter

	// Dispatch Queue Metrics - snapshot delivery loop
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	dispatchLatency    prometheus.Histogram

	// Notification Metrics
	notificationsShown     *prometheus.CounterVec
	notificationsDismissed *prometheus.CounterVec
	staleEventsIgnored     prometheus.Counter
	duplicateEvents        prometheus.Counter
	timersCancelled        prometheus.Counter
	syntheticDelay         prometheus.Histogram

	// Ticker Metrics
	tickerRotations prometheus.Counter
	tickerEntries   prometheus.Gauge

	// Render Metrics
	framesRendered prometheus.Counter
	renderSkipped  *prometheus.CounterVec
	renderLatency  prometheus.Histogram

	// Pressure Metrics
	pressureRaw      prometheus.Gauge
	pressureSmoothed prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	streamClients       prometheus.Gauge

	// Error Metrics
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

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "livepitch",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
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

func (m *Manager) counterVec(n, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(n, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(n, help string, buckets []float64) prometheus.Histogram {
	if len(buckets) == 0 {
		buckets = m.histogramBuckets
	}
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(n, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Feed
	m.snapshotsApplied = m.counterVec("snapshots_applied_total", "Snapshots materialized per multiplexer slot", "slot")
	m.subscriptionErrors = m.counterVec("subscription_errors_total", "Upstream subscription failures per slot", "slot")
	m.malformedDocuments = m.counterVec("malformed_documents_total", "Documents dropped because required fields were missing", "kind")
	m.activeSubscriptions = m.gauge("active_subscriptions", "Upstream subscriptions currently held open")
	m.upstreamReconnects = m.counter("upstream_reconnects_total", "Reconnect attempts against the upstream feed")

	// Dispatch queue
	m.queueSize = m.gauge("dispatch_queue_size", "Snapshot deliveries waiting for the dispatch loop")
	m.queueCapacity = m.gauge("dispatch_queue_capacity", "Maximum capacity of the dispatch queue")
	m.queueEnqueueRate = m.counter("dispatch_enqueue_total", "Deliveries accepted by the dispatch queue")
	m.queueDequeueRate = m.counter("dispatch_dequeue_total", "Deliveries taken by the dispatch loop")
	m.queueEnqueueErrors = m.counterVec("dispatch_enqueue_errors_total", "Deliveries rejected by the dispatch queue", "reason")
	m.dispatchLatency = m.histogram("dispatch_latency_milliseconds", "Time spent applying one delivery", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50})

	// Notifications
	m.notificationsShown = m.counterVec("notifications_shown_total", "Notifications that became active", "source", "category")
	m.notificationsDismissed = m.counterVec("notifications_dismissed_total", "Notifications removed after their display window", "source")
	m.staleEventsIgnored = m.counter("stale_events_ignored_total", "External events older than the freshness threshold")
	m.duplicateEvents = m.counter("duplicate_events_total", "External events re-delivered with an identity already shown")
	m.timersCancelled = m.counter("timers_cancelled_total", "Pending timers cancelled before firing")
	m.syntheticDelay = m.histogram("synthetic_delay_seconds", "Random delays armed by the synthetic generator", []float64{15, 20, 25, 30, 35, 40, 45})

	// Ticker
	m.tickerRotations = m.counter("ticker_rotations_total", "Ticker index advances")
	m.tickerEntries = m.gauge("ticker_entries", "Entries currently rotated by the ticker")

	// Render
	m.framesRendered = m.counter("frames_rendered_total", "Telemetry frames drawn onto a surface")
	m.renderSkipped = m.counterVec("render_skipped_total", "Render calls that drew nothing", "reason")
	m.renderLatency = m.histogram("render_latency_milliseconds", "Time spent redrawing a frame", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50})

	// Pressure
	m.pressureRaw = m.gauge("pressure_raw", "Latest pressure value received or estimated")
	m.pressureSmoothed = m.gauge("pressure_smoothed", "Smoothed pressure driving the momentum indicator")

	// HTTP
	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.streamClients = m.gauge("stream_clients", "Connected server-sent event clients")

	// Errors
	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that ended in error", "component", "error_type")

	// System
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Feed Metrics Functions.

// RecordSnapshotApplied counts a materialized snapshot for slot.
func RecordSnapshotApplied(slot string) {
	globalManager.snapshotsApplied.WithLabelValues(slot).Inc()
}

// RecordSubscriptionError counts an upstream failure for slot.
func RecordSubscriptionError(slot string) {
	globalManager.subscriptionErrors.WithLabelValues(slot).Inc()
}

// RecordMalformedDocument counts a document dropped during decoding.
func RecordMalformedDocument(kind string) {
	globalManager.malformedDocuments.WithLabelValues(kind).Inc()
}

// UpdateActiveSubscriptions sets the number of open upstream subscriptions.
func UpdateActiveSubscriptions(count int) {
	globalManager.activeSubscriptions.Set(float64(count))
}

// RecordUpstreamReconnect counts a reconnect attempt.
func RecordUpstreamReconnect() {
	globalManager.upstreamReconnects.Inc()
}

// Dispatch Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError counts a rejected delivery.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordDispatchLatency records how long one delivery took to apply.
func RecordDispatchLatency(latencyMs float64) {
	globalManager.dispatchLatency.Observe(latencyMs)
}

// Notification Metrics Functions.

// RecordNotificationShown counts a notification becoming active.
func RecordNotificationShown(source, category string) {
	globalManager.notificationsShown.WithLabelValues(source, category).Inc()
}

// RecordNotificationDismissed counts a notification leaving the screen.
func RecordNotificationDismissed(source string) {
	globalManager.notificationsDismissed.WithLabelValues(source).Inc()
}

// RecordStaleEventIgnored counts an external event older than the threshold.
func RecordStaleEventIgnored() {
	globalManager.staleEventsIgnored.Inc()
}

// RecordDuplicateEvent counts a re-delivered external event.
func RecordDuplicateEvent() {
	globalManager.duplicateEvents.Inc()
}

// RecordTimerCancelled counts a pending timer stopped before firing.
func RecordTimerCancelled() {
	globalManager.timersCancelled.Inc()
}

// RecordSyntheticDelay records a random delay armed by the generator.
func RecordSyntheticDelay(d time.Duration) {
	globalManager.syntheticDelay.Observe(d.Seconds())
}

// Ticker Metrics Functions.

// RecordTickerRotation counts a ticker advance.
func RecordTickerRotation() {
	globalManager.tickerRotations.Inc()
}

// UpdateTickerEntries sets the number of rotated entries.
func UpdateTickerEntries(count int) {
	globalManager.tickerEntries.Set(float64(count))
}

// Render Metrics Functions.

// RecordFrameRendered counts a redraw.
func RecordFrameRendered() {
	globalManager.framesRendered.Inc()
}

// RecordRenderSkipped counts a render call that drew nothing.
func RecordRenderSkipped(reason string) {
	globalManager.renderSkipped.WithLabelValues(reason).Inc()
}

// RecordRenderLatency records redraw time in milliseconds.
func RecordRenderLatency(latencyMs float64) {
	globalManager.renderLatency.Observe(latencyMs)
}

// Pressure Metrics Functions.

// UpdatePressure sets the raw and smoothed pressure gauges.
func UpdatePressure(raw, smoothed float64) {
	globalManager.pressureRaw.Set(raw)
	globalManager.pressureSmoothed.Set(smoothed)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateStreamClients sets the number of connected stream clients.
func UpdateStreamClients(count int) {
	globalManager.streamClients.Set(float64(count))
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
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
