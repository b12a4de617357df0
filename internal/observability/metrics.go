package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	httpErrorsTotal          *prometheus.CounterVec
	notificationsPublished   *prometheus.CounterVec
	streamClientsActive      *prometheus.GaugeVec
	enrollmentDecisionsTotal *prometheus.CounterVec
	gradingOperationsTotal   *prometheus.CounterVec
	paymentTransitionsTotal  *prometheus.CounterVec
	uploadRejectionsTotal    *prometheus.CounterVec
	authFailuresTotal        *prometheus.CounterVec
	activityFeedRequests     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edu_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_notifications_published_total",
			Help: "Notifications published by type.",
		}, []string{"type"})

		streamClientsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edu_stream_clients_active",
			Help: "Connected realtime clients by transport.",
		}, []string{"transport"})

		enrollmentDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_enrollment_transitions_total",
			Help: "Enrollment request transitions by resulting status.",
		}, []string{"status"})

		gradingOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_grading_operations_total",
			Help: "Grading workflow operations by record kind and operation.",
		}, []string{"kind", "operation"})

		paymentTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_payment_transitions_total",
			Help: "Payment status transitions by resulting status.",
		}, []string{"status"})

		uploadRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_upload_rejections_total",
			Help: "Rejected material uploads by reason.",
		}, []string{"reason"})

		authFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_auth_failures_total",
			Help: "Rejected authentication attempts by reason.",
		}, []string{"reason"})

		activityFeedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edu_activity_feed_requests_total",
			Help: "Recent activity feed lookups by cache result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			notificationsPublished,
			streamClientsActive,
			enrollmentDecisionsTotal,
			gradingOperationsTotal,
			paymentTransitionsTotal,
			uploadRejectionsTotal,
			authFailuresTotal,
			activityFeedRequests,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// NotificationsPublishedTotal exposes the notification counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// StreamClientsActive exposes the SSE and websocket client gauge.
func StreamClientsActive() *prometheus.GaugeVec {
	RegisterMetrics()
	return streamClientsActive
}

// EnrollmentTransitions exposes the enrollment transition counter.
func EnrollmentTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return enrollmentDecisionsTotal
}

// GradingOperations exposes the grading counter.
func GradingOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOperationsTotal
}

// PaymentTransitions exposes the payment transition counter.
func PaymentTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return paymentTransitionsTotal
}

// UploadRejections exposes the upload rejection counter.
func UploadRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectionsTotal
}

// AuthFailures exposes the authentication failure counter.
func AuthFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return authFailuresTotal
}

// ActivityFeedRequests exposes the recent activity feed counter.
func ActivityFeedRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return activityFeedRequests
}
