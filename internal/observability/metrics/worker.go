package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// WorkerMetrics covers questions answered over NATS request/reply.
type WorkerMetrics struct {
	*RAGMetrics
	registry *prometheus.Registry

	service     string
	askTotal    *prometheus.CounterVec
	askDuration *prometheus.HistogramVec
	askInFlight *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	m := &WorkerMetrics{
		RAGMetrics:  newRAGMetrics(service, registry),
		registry:    registry,
		service:     service,
		askTotal:    counterVec("worker", "ask_total", "Handled ask requests by result code.", "service", "code"),
		askDuration: histogramVec("worker", "ask_duration_seconds", "Ask handling duration in seconds by result code.", latencyBuckets, "service", "code"),
		askInFlight: gaugeVec("worker", "ask_in_flight", "Number of in-flight ask requests.", "service"),
	}
	registry.MustRegister(m.askTotal, m.askDuration, m.askInFlight)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRequest() {
	m.askInFlight.WithLabelValues(m.service).Inc()
}

// FinishRequest labels the outcome with the same code the reply carries
// ("ok", "invalid_input", "temporary", ...).
func (m *WorkerMetrics) FinishRequest(service string, duration time.Duration, err error) {
	m.askInFlight.WithLabelValues(m.service).Dec()

	code := "ok"
	if err != nil {
		code = domain.ErrorCode(err)
	}
	m.askTotal.WithLabelValues(service, code).Inc()
	m.askDuration.WithLabelValues(service, code).Observe(duration.Seconds())
}
