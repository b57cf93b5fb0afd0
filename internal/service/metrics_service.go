package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	filesStaged     prometheus.Counter
	filesRejected   *prometheus.CounterVec
	commitsTotal    *prometheus.CounterVec
	persistFailures prometheus.Counter
	requestsCreated prometheus.Counter
	statusChanges   *prometheus.CounterVec
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

	filesStaged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_files_staged_total",
		Help: "Files accepted into a staging session",
	})

	filesRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_files_rejected_total",
		Help: "Files rejected during staging",
	}, []string{"reason"})

	commitsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_commits_total",
		Help: "Attachment commits by outcome",
	}, []string{"outcome"})

	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "persistence_failures_total",
		Help: "Writes rejected by the persistence adapter",
	})

	requestsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "requests_created_total",
		Help: "Material requests created",
	})

	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "request_status_changes_total",
		Help: "Status transitions applied to requests",
	}, []string{"status"})

	registry.MustRegister(requestDuration, requestTotal, filesStaged, filesRejected, commitsTotal, persistFailures, requestsCreated, statusChanges)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		filesStaged:     filesStaged,
		filesRejected:   filesRejected,
		commitsTotal:    commitsTotal,
		persistFailures: persistFailures,
		requestsCreated: requestsCreated,
		statusChanges:   statusChanges,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return nil
	}
	return m.handler
}

// ObserveHTTPRequest records one served HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// CountStaged records files accepted into the staging session.
func (m *MetricsService) CountStaged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.filesStaged.Add(float64(n))
}

// CountRejected records one staging rejection.
func (m *MetricsService) CountRejected(reason string) {
	if m == nil {
		return
	}
	m.filesRejected.WithLabelValues(reason).Inc()
}

// CountCommit records one finished commit.
func (m *MetricsService) CountCommit(outcome string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
}

// CountPersistFailure records a rejected persistence write.
func (m *MetricsService) CountPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// CountRequestCreated records a new material request.
func (m *MetricsService) CountRequestCreated() {
	if m == nil {
		return
	}
	m.requestsCreated.Inc()
}

// CountStatusChange records one applied status transition.
func (m *MetricsService) CountStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}
