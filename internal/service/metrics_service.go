package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the auth core.
// All methods are nil-safe so wiring metrics stays optional in tests.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	loginTotal      *prometheus.CounterVec
	rotationTotal   prometheus.Counter
	reuseTotal      prometheus.Counter
}

// NewMetricsService registers the core Prometheus collectors.
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

	loginTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Successful logins by flow kind",
	}, []string{"kind"})

	rotationTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_rotations_total",
		Help: "Successful refresh token rotations",
	})

	reuseTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_reuse_detected_total",
		Help: "Refresh token reuse detections (family revocations)",
	})

	registry.MustRegister(requestDuration, requestTotal, loginTotal, rotationTotal, reuseTotal)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		loginTotal:      loginTotal,
		rotationTotal:   rotationTotal,
		reuseTotal:      reuseTotal,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records a finished HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": statusLabel(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// RecordLogin counts a successful login of the given kind.
func (s *MetricsService) RecordLogin(kind string) {
	if s == nil {
		return
	}
	s.loginTotal.WithLabelValues(kind).Inc()
}

// RecordRotation counts a successful refresh rotation.
func (s *MetricsService) RecordRotation() {
	if s == nil {
		return
	}
	s.rotationTotal.Inc()
}

// RecordReuseDetected counts a reuse detection.
func (s *MetricsService) RecordReuseDetected() {
	if s == nil {
		return
	}
	s.reuseTotal.Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
