package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ipc_forecast"

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast pipeline.
type Metrics struct {
	DistrictsProcessed *prometheus.CounterVec // labels: state={done,skipped,failed}
	PhaseTotal         *prometheus.CounterVec // labels: phase={1..5,none}
	ArticlesSampled    prometheus.Histogram
	RowsWritten        *prometheus.CounterVec // labels: sink
	PipelineRunning    prometheus.Gauge
	RunDuration        prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge

	// External service metrics.
	ExternalRequests *prometheus.CounterVec   // labels: service={geocode,weather,llm}, outcome={success,error}
	ExternalDuration *prometheus.HistogramVec // labels: service
	Retries          *prometheus.CounterVec   // labels: service
	CacheLookups     *prometheus.CounterVec   // labels: cache={geocode,weather}, result={hit,miss}

	// Classification metrics.
	ArticlesClassified *prometheus.CounterVec // labels: outcome={classified,skipped,failed}
}

func newMetrics() *Metrics {
	return &Metrics{
		DistrictsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "districts_processed_total",
			Help:      "Districts reaching a terminal state, by state.",
		}, []string{"state"}),
		PhaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predicted_phase_total",
			Help:      "Predicted IPC phases across all runs.",
		}, []string{"phase"}),
		ArticlesSampled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_sampled",
			Help:      "Number of articles sampled per district.",
			Buckets:   []float64{0, 1, 5, 10, 15, 20, 25, 30, 50},
		}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Result rows written, by sink.",
		}, []string{"sink"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a forecast run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete forecast run.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last forecast run finished.",
		}),
		ExternalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_requests_total",
			Help:      "External service requests by service and outcome.",
		}, []string{"service", "outcome"}),
		ExternalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_request_duration_seconds",
			Help:      "External service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried external calls by service.",
		}, []string{"service"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		ArticlesClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_classified_total",
			Help:      "Articles handled by the classifier, by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.DistrictsProcessed,
		m.PhaseTotal,
		m.ArticlesSampled,
		m.RowsWritten,
		m.PipelineRunning,
		m.RunDuration,
		m.LastRunTimestamp,
		m.ExternalRequests,
		m.ExternalDuration,
		m.Retries,
		m.CacheLookups,
		m.ArticlesClassified,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
