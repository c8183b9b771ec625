// Package metrics exports mnemo's Prometheus counters and histograms.
// Grounded on 88lin-divinesense's ai/metrics/prometheus.go (a
// PrometheusExporter struct owning a private registry, one
// CounterVec/HistogramVec per concern, a Handler() for wiring into an HTTP
// mux) — narrowed to the four surfaces mnemo's operations actually produce:
// ingest, search, RAG query latency, and reconciler action counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter owns mnemo's Prometheus metrics.
type Exporter struct {
	registry *prometheus.Registry

	ingestLatency    *prometheus.HistogramVec
	ingestRequests   *prometheus.CounterVec
	searchLatency    *prometheus.HistogramVec
	ragQueryLatency  *prometheus.HistogramVec
	reconcilerEvents *prometheus.CounterVec
}

var defaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// New constructs an Exporter with its own registry.
func New() *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{
		registry: registry,
		ingestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mnemo", Subsystem: "engine",
			Name: "ingest_latency_seconds", Help: "add() latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"infer"}),
		ingestRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemo", Subsystem: "engine",
			Name: "ingest_requests_total", Help: "Total add() calls",
		}, []string{"infer", "status"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mnemo", Subsystem: "engine",
			Name: "search_latency_seconds", Help: "search() latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"status"}),
		ragQueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mnemo", Subsystem: "rag",
			Name: "query_latency_seconds", Help: "rag.query() latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"status"}),
		reconcilerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemo", Subsystem: "reconciler",
			Name: "actions_total", Help: "Reconciler actions applied, by kind",
		}, []string{"op"}),
	}

	registry.MustRegister(
		e.ingestLatency, e.ingestRequests, e.searchLatency,
		e.ragQueryLatency, e.reconcilerEvents,
	)
	return e
}

// ObserveIngest records one add() call's latency and outcome.
func (e *Exporter) ObserveIngest(infer bool, seconds float64, success bool) {
	inferLabel := "false"
	if infer {
		inferLabel = "true"
	}
	status := "ok"
	if !success {
		status = "error"
	}
	e.ingestLatency.WithLabelValues(inferLabel).Observe(seconds)
	e.ingestRequests.WithLabelValues(inferLabel, status).Inc()
}

// ObserveSearch records one search() call's latency and outcome.
func (e *Exporter) ObserveSearch(seconds float64, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	e.searchLatency.WithLabelValues(status).Observe(seconds)
}

// ObserveRAGQuery records one rag.Query/StreamQuery call's latency.
func (e *Exporter) ObserveRAGQuery(seconds float64, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	e.ragQueryLatency.WithLabelValues(status).Observe(seconds)
}

// RecordReconcilerAction increments the counter for one applied reconciler op.
func (e *Exporter) RecordReconcilerAction(op string) {
	e.reconcilerEvents.WithLabelValues(op).Inc()
}

// Handler returns the HTTP handler serving /metrics in Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
