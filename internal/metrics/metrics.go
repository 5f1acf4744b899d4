// Package metrics exposes Prometheus collectors for every memoryd
// component and a non-blocking audit log writer backed by the audit_log
// table.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector memoryd registers, instantiated once per
// process against its own registry so tests can spin up isolated instances
// instead of colliding on prometheus's global DefaultRegisterer.
type Metrics struct {
	registry *prometheus.Registry

	ClassificationResults  *prometheus.CounterVec
	ClassificationLatency  prometheus.Histogram
	EmbeddingQueueDepth     prometheus.Gauge
	EmbeddingFailuresTotal  prometheus.Counter
	RateLimitRejections    *prometheus.CounterVec
	BreakerState           *prometheus.GaugeVec
	BreakerTrips           *prometheus.CounterVec
	HandlerLatency         *prometheus.HistogramVec
	HandlerRequestsTotal   *prometheus.CounterVec
	LibrarianRunsTotal     *prometheus.CounterVec
	LibrarianRecommendations *prometheus.CounterVec
}

// New builds a Metrics instance and registers every collector against its
// own prometheus.Registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ClassificationResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_classification_results_total",
				Help: "Classification outcomes by resolved kind and source (rule/cache/llm).",
			},
			[]string{"kind", "source"},
		),
		ClassificationLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memoryd_classification_latency_seconds",
				Help:    "Time taken to classify one piece of text.",
				Buckets: prometheus.DefBuckets,
			},
		),
		EmbeddingQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memoryd_embedding_queue_depth",
				Help: "Current number of pending embedding jobs.",
			},
		),
		EmbeddingFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "memoryd_embedding_failures_total",
				Help: "Total embedding jobs that failed after exhausting retries.",
			},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_rate_limit_rejections_total",
				Help: "Requests denied by the rate limiter, by the rule name that denied them.",
			},
			[]string{"rule"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memoryd_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half_open, 2=open) by breaker name.",
			},
			[]string{"name"},
		),
		BreakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_breaker_trips_total",
				Help: "Total times a breaker transitioned into the open state.",
			},
			[]string{"name"},
		),
		HandlerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memoryd_handler_latency_seconds",
				Help:    "CRUD dispatcher operation latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "operation"},
		),
		HandlerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_handler_requests_total",
				Help: "CRUD dispatcher operations by kind, operation, and outcome.",
			},
			[]string{"kind", "operation", "outcome"},
		),
		LibrarianRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_librarian_runs_total",
				Help: "Librarian batch-analysis runs by terminal state.",
			},
			[]string{"state"},
		),
		LibrarianRecommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_librarian_recommendations_total",
				Help: "Librarian recommendations produced by kind.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.ClassificationResults,
		m.ClassificationLatency,
		m.EmbeddingQueueDepth,
		m.EmbeddingFailuresTotal,
		m.RateLimitRejections,
		m.BreakerState,
		m.BreakerTrips,
		m.HandlerLatency,
		m.HandlerRequestsTotal,
		m.LibrarianRunsTotal,
		m.LibrarianRecommendations,
	)

	return m
}

// Handler returns the http.Handler to mount for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
