package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rise_export"

// Metrics holds the Prometheus counters, histograms, and gauges for an export run.
type Metrics struct {
	ExportRunning  prometheus.Gauge
	EntriesTotal   *prometheus.CounterVec // labels: outcome={success,empty,failed}
	RecordsWritten prometheus.Counter
	RunDuration    prometheus.Gauge
	LastSuccess    prometheus.Gauge

	// Hydromet source metrics.
	FetchRequests *prometheus.CounterVec   // labels: resolution, outcome={success,empty,error}
	FetchDuration *prometheus.HistogramVec // labels: resolution
	SeriesCache   *prometheus.CounterVec   // labels: result={hit,miss}

	// Optional sinks.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
	LedgerErrors     prometheus.Counter
}

// NewMetrics creates and registers all export metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ExportRunning,
		m.EntriesTotal,
		m.RecordsWritten,
		m.RunDuration,
		m.LastSuccess,
		m.FetchRequests,
		m.FetchDuration,
		m.SeriesCache,
		m.RecordsPublished,
		m.PublishErrors,
		m.LedgerErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ExportRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while an export run is in progress, 0 otherwise.",
		}),
		EntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Control entries processed by outcome.",
		}, []string{"outcome"}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "RISE records written to the output document.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the most recent export run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last export run completed without a fatal error.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hydromet_requests_total",
			Help:      "Hydromet series requests by resolution and outcome.",
		}, []string{"resolution", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hydromet_request_duration_seconds",
			Help:      "Hydromet request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"resolution"}),
		SeriesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_cache_total",
			Help:      "Series cache lookups by result.",
		}, []string{"result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "RISE records published to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
		LedgerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_errors_total",
			Help:      "Failed run ledger writes.",
		}),
	}
}
