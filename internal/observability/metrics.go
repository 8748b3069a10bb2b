package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// retrieval pipeline and the watch consumer.
type Metrics struct {
	PipelineRuns   *prometheus.CounterVec   // labels: source, formatter, outcome={success,error}
	RecordsFetched *prometheus.CounterVec   // labels: source
	RowsSkipped    *prometheus.CounterVec   // labels: source
	FetchDuration  *prometheus.HistogramVec // labels: source

	// Watch consumer metrics.
	WatchMessages *prometheus.CounterVec // labels: outcome={rendered,ignored,error}
	WatchRunning  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRuns,
		m.RecordsFetched,
		m.RowsSkipped,
		m.FetchDuration,
		m.WatchMessages,
		m.WatchRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecget",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline invocations by source, formatter, and outcome.",
		}, []string{"source", "formatter", "outcome"}),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecget",
			Name:      "records_fetched_total",
			Help:      "Records produced by source adapters.",
		}, []string{"source"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecget",
			Name:      "rows_skipped_total",
			Help:      "Upstream rows dropped as unparseable.",
		}, []string{"source"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ecget",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a complete adapter fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		WatchMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecget",
			Name:      "watch_messages_total",
			Help:      "Datamart notifications consumed by outcome.",
		}, []string{"outcome"}),
		WatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecget",
			Name:      "watch_running",
			Help:      "1 while the watch consumer is active, 0 when shut down.",
		}),
	}
}
