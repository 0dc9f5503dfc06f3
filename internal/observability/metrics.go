package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline.
type Metrics struct {
	EventsIngested *prometheus.CounterVec // label: source={feed,scrape}
	EventsSkipped  prometheus.Counter
	EventsFailed   prometheus.Counter
	SourceFailures *prometheus.CounterVec // label: source={feed,scrape}

	RunDuration prometheus.Histogram
	ActiveRuns  prometheus.Gauge

	PublishFailures   prometheus.Counter
	PartitionsDeleted prometheus.Counter
	AnalysisRuns      *prometheus.CounterVec // label: outcome={success,failure,skipped}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EventsIngested,
		m.EventsSkipped,
		m.EventsFailed,
		m.SourceFailures,
		m.RunDuration,
		m.ActiveRuns,
		m.PublishFailures,
		m.PartitionsDeleted,
		m.AnalysisRuns,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "events_ingested_total",
			Help:      "New events persisted, by source.",
		}, []string{"source"}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "events_skipped_total",
			Help:      "Events skipped because their ID was already persisted.",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "events_failed_total",
			Help:      "Events lost this cycle due to store errors (retried next poll).",
		}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "source_failures_total",
			Help:      "Fetch failures that made a source contribute zero events.",
		}, []string{"source"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-dedup-persist run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "active_runs",
			Help:      "Number of ingest runs currently in flight.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "publish_failures_total",
			Help:      "Best-effort new-event publications that failed.",
		}),
		PartitionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "partitions_deleted_total",
			Help:      "Date partitions removed by retention cleanup.",
		}),
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "analysis_runs_total",
			Help:      "AI analysis runs, by outcome.",
		}, []string{"outcome"}),
	}
}
