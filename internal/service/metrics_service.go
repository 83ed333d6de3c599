package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. All methods are nil safe.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	bookingOutcomes *prometheus.CounterVec
	mirrorSyncs     *prometheus.CounterVec
	mirrorAttempts  *prometheus.HistogramVec
	mirrorDuration  *prometheus.HistogramVec
	queueJobs       *prometheus.CounterVec
	queueDropped    *prometheus.CounterVec
	queueDuration   *prometheus.HistogramVec
	revocations     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	bookingOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_outcomes_total",
		Help: "Booking engine results by operation and outcome",
	}, []string{"operation", "outcome"})

	mirrorSyncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_syncs_total",
		Help: "Mirror writes by kind and final status",
	}, []string{"kind", "status"})

	mirrorAttempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mirror_sync_attempts",
		Help:    "Spreadsheet calls issued per mirror write",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8},
	}, []string{"kind"})

	mirrorDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mirror_sync_duration_seconds",
		Help:    "Wall time of mirror writes including backoff",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	queueJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_total",
		Help: "Background jobs handled by queue and result",
	}, []string{"queue", "result"})

	queueDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_dropped_total",
		Help: "Background jobs dropped because the queue was full",
	}, []string{"queue"})

	queueDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_job_duration_seconds",
		Help:    "Duration of background job handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})

	revocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_revocations_total",
		Help: "Bookings revoked by operator availability edits",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, bookingOutcomes, mirrorSyncs, mirrorAttempts, mirrorDuration,
		queueJobs, queueDropped, queueDuration, revocations, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		bookingOutcomes: bookingOutcomes,
		mirrorSyncs:     mirrorSyncs,
		mirrorAttempts:  mirrorAttempts,
		mirrorDuration:  mirrorDuration,
		queueJobs:       queueJobs,
		queueDropped:    queueDropped,
		queueDuration:   queueDuration,
		revocations:     revocations,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordBookingOutcome counts one booking engine result.
func (m *MetricsService) RecordBookingOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingOutcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveMirrorSync records one mirror write.
func (m *MetricsService) ObserveMirrorSync(kind, status string, attempts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.mirrorSyncs.WithLabelValues(kind, status).Inc()
	m.mirrorAttempts.WithLabelValues(kind).Observe(float64(attempts))
	m.mirrorDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveQueueJob records a handled background job.
func (m *MetricsService) ObserveQueueJob(queue string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.queueJobs.WithLabelValues(queue, result).Inc()
	m.queueDuration.WithLabelValues(queue).Observe(duration.Seconds())
}

// RecordQueueDrop counts a job rejected by a full queue.
func (m *MetricsService) RecordQueueDrop(queue string) {
	if m == nil {
		return
	}
	m.queueDropped.WithLabelValues(queue).Inc()
}

// TrackQueueDepth exports the number of jobs waiting in a queue, read at scrape time.
func (m *MetricsService) TrackQueueDepth(queue string, depth func() int) {
	if m == nil || depth == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "queue_depth",
		Help:        "Background jobs waiting for a worker",
		ConstLabels: prometheus.Labels{"queue": queue},
	}, func() float64 {
		return float64(depth())
	}))
}

// RecordRevocations counts bookings removed by operator edits.
func (m *MetricsService) RecordRevocations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.revocations.Add(float64(n))
}
