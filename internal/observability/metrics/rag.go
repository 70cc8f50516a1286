package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

const namespace = "campus"

var (
	latencyBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}
	// Raw cross-encoder logits; the default thresholds sit at -2 and 5.
	scoreBuckets = []float64{-8, -4, -2, 0, 2, 4, 5, 6, 8}
)

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func gaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// RAGMetrics records routing decisions, corpus ingestion and upstream
// resilience. It satisfies ports.RouteObserver, ports.IngestObserver and
// resilience.Observer.
type RAGMetrics struct {
	service string

	routeTotal      *prometheus.CounterVec
	routeDuration   *prometheus.HistogramVec
	routeTopScore   *prometheus.HistogramVec
	ingestUnits     *prometheus.CounterVec
	corpusDocuments *prometheus.GaugeVec
	upstreamRetries *prometheus.CounterVec
	breakerOpen     *prometheus.GaugeVec
}

func newRAGMetrics(service string, registry *prometheus.Registry) *RAGMetrics {
	m := &RAGMetrics{
		service:         service,
		routeTotal:      counterVec("rag", "route_total", "Answered questions by decision branch.", "service", "branch"),
		routeDuration:   histogramVec("rag", "route_duration_seconds", "Retrieval, rerank and generation time per question.", latencyBuckets, "service", "branch"),
		routeTopScore:   histogramVec("rag", "top_score", "Top cross-encoder score of the deciding search.", scoreBuckets, "service", "branch"),
		ingestUnits:     counterVec("ingest", "units_total", "Ingested source units by kind and status.", "service", "kind", "status"),
		corpusDocuments: gaugeVec("ingest", "corpus_documents", "Documents produced by the last ingestion of a corpus.", "service", "corpus"),
		upstreamRetries: counterVec("upstream", "retries_total", "Retried upstream calls by operation.", "service", "operation"),
		breakerOpen:     gaugeVec("upstream", "circuit_open", "1 while the operation's circuit breaker is not closed.", "service", "operation"),
	}
	registry.MustRegister(m.routeTotal, m.routeDuration, m.routeTopScore, m.ingestUnits, m.corpusDocuments, m.upstreamRetries, m.breakerOpen)
	return m
}

func (m *RAGMetrics) ObserveRoute(branch domain.Branch, topScore float64, duration time.Duration) {
	label := string(branch)
	m.routeTotal.WithLabelValues(m.service, label).Inc()
	m.routeDuration.WithLabelValues(m.service, label).Observe(duration.Seconds())
	// No candidates reports -Inf; there is no score to record.
	if !math.IsInf(topScore, 0) && !math.IsNaN(topScore) {
		m.routeTopScore.WithLabelValues(m.service, label).Observe(topScore)
	}
}

func (m *RAGMetrics) ObserveUnit(kind domain.UnitKind, ok bool) {
	status := "success"
	if !ok {
		status = "skipped"
	}
	m.ingestUnits.WithLabelValues(m.service, string(kind), status).Inc()
}

func (m *RAGMetrics) ObserveDocuments(corpus string, count int) {
	m.corpusDocuments.WithLabelValues(m.service, corpus).Set(float64(count))
}

func (m *RAGMetrics) ObserveRetry(operation string) {
	m.upstreamRetries.WithLabelValues(m.service, operation).Inc()
}

func (m *RAGMetrics) ObserveBreakerState(operation, state string) {
	open := 0.0
	if state != "closed" {
		open = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(open)
}
