package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Paths served by the API; anything else is folded into "other" so a
// scanner cannot blow up label cardinality.
var knownPaths = map[string]bool{
	"/v1/ask":       true,
	"/healthz":      true,
	"/readyz":       true,
	"/metrics":      true,
	"/openapi.yaml": true,
}

type HTTPServerMetrics struct {
	*RAGMetrics
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight *prometheus.GaugeVec
	rejectedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	m := &HTTPServerMetrics{
		RAGMetrics:      newRAGMetrics(service, registry),
		registry:        registry,
		requestTotal:    counterVec("http", "requests_total", "Total HTTP requests processed.", "service", "method", "path", "status"),
		requestDuration: histogramVec("http", "request_duration_seconds", "HTTP request duration in seconds.", latencyBuckets, "service", "method", "path"),
		requestInFlight: gaugeVec("http", "in_flight_requests", "Number of in-flight HTTP requests.", "service"),
		rejectedTotal:   counterVec("http", "rejected_total", "Requests rejected by traffic control.", "service", "reason"),
	}
	registry.MustRegister(m.requestTotal, m.requestDuration, m.requestInFlight, m.rejectedTotal)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	inFlight := m.requestInFlight.WithLabelValues(service)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		if !knownPaths[path] {
			path = "other"
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		inFlight.Inc()
		defer func() {
			inFlight.Dec()
			m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(recorder.status)).Inc()
			m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
		}()
		next.ServeHTTP(recorder, r)
	})
}

// RecordRejected counts requests refused by rate limiting or backpressure.
func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.rejectedTotal.WithLabelValues(service, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
