package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the listener
type PrometheusMetrics struct {
	// Notification metrics
	NotificationsReceivedTotal  *prometheus.CounterVec
	NotificationsDroppedTotal   *prometheus.CounterVec
	NotificationsDeliveredTotal *prometheus.CounterVec
	NotificationTimeoutsTotal   *prometheus.CounterVec
	HandlerDuration             *prometheus.HistogramVec
	ListenerUp                  *prometheus.GaugeVec

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		NotificationsReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbiotic_notifications_received_total",
				Help: "Total number of notifications received from PostgreSQL",
			},
			[]string{"channel"},
		),

		NotificationsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbiotic_notifications_dropped_total",
				Help: "Notifications replaced by a newer one before delivery",
			},
			[]string{"channel", "policy"},
		),

		NotificationsDeliveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbiotic_notifications_delivered_total",
				Help: "Notifications handed to the handler",
			},
			[]string{"channel"},
		),

		NotificationTimeoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbiotic_notification_timeouts_total",
				Help: "Timeout markers delivered because the channel was silent",
			},
			[]string{"channel"},
		),

		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symbiotic_handler_duration_seconds",
				Help:    "Time spent handling a single notification",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel", "kind"},
		),

		ListenerUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "symbiotic_listener_up",
				Help: "Whether the listener is subscribed (1) or not (0)",
			},
			[]string{"channel"},
		),

		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbiotic_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symbiotic_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symbiotic_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symbiotic_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "symbiotic_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "symbiotic_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "symbiotic_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordNotificationReceived records a notification read off the connection
func (m *PrometheusMetrics) RecordNotificationReceived(channel string) {
	m.NotificationsReceivedTotal.WithLabelValues(channel).Inc()
}

// RecordNotificationDropped records a notification discarded by the delivery policy
func (m *PrometheusMetrics) RecordNotificationDropped(channel, policy string) {
	m.NotificationsDroppedTotal.WithLabelValues(channel, policy).Inc()
}

// RecordNotificationDelivered records a payload handed to the handler
func (m *PrometheusMetrics) RecordNotificationDelivered(channel string, duration time.Duration) {
	m.NotificationsDeliveredTotal.WithLabelValues(channel).Inc()
	m.HandlerDuration.WithLabelValues(channel, "payload").Observe(duration.Seconds())
}

// RecordTimeout records a timeout marker handed to the handler
func (m *PrometheusMetrics) RecordTimeout(channel string, duration time.Duration) {
	m.NotificationTimeoutsTotal.WithLabelValues(channel).Inc()
	m.HandlerDuration.WithLabelValues(channel, "timeout").Observe(duration.Seconds())
}

// SetListenerUp updates the listener subscription gauge
func (m *PrometheusMetrics) SetListenerUp(channel string, up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	m.ListenerUp.WithLabelValues(channel).Set(value)
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
