package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fire_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion and queries.
type Metrics struct {
	DaysRequested    prometheus.Counter
	DaysServed       *prometheus.CounterVec // labels: source={cache,store,remote}
	IngestionRunning prometheus.Gauge

	// Remote source metrics.
	SourceRequests *prometheus.CounterVec // labels: outcome={ok,not_found,error}
	FetchErrors    *prometheus.CounterVec // labels: kind={not_found,transport,decode,persistence,other}
	FetchDuration  prometheus.Histogram
	BreakerState   prometheus.Gauge

	// Persistence metrics.
	RowsDropped      prometheus.Counter
	RecordsPersisted *prometheus.CounterVec // labels: outcome={inserted,skipped}
	PersistDuration  prometheus.Histogram
	RecordsPurged    prometheus.Counter

	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
	RecordsPublished prometheus.Counter

	QueryDuration *prometheus.HistogramVec // labels: kind={pins,heatmap,stats}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DaysRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_requested_total",
			Help:      "Distinct days requested from the orchestrator.",
		}),
		DaysServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_served_total",
			Help:      "Days answered by source: read cache, local store or remote fetch.",
		}, []string{"source"}),
		IngestionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingestion_running",
			Help:      "Number of remote day fetches in flight.",
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Remote CSV requests by outcome.",
		}, []string{"outcome"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed day ingestions by error kind.",
		}, []string{"kind"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a remote CSV download.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_breaker_state",
			Help:      "Remote source circuit breaker: 0 closed, 1 half-open, 2 open.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "CSV rows rejected by coordinate validation.",
		}),
		RecordsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Records handled by per-day persistence by outcome.",
		}, []string{"outcome"}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Duration of persisting one day of records.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RecordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_purged_total",
			Help:      "Records deleted by purge requests.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Read cache lookups by result.",
		}, []string{"result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records published to Kafka.",
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of map and statistics queries.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DaysRequested,
		m.DaysServed,
		m.IngestionRunning,
		m.SourceRequests,
		m.FetchErrors,
		m.FetchDuration,
		m.BreakerState,
		m.RowsDropped,
		m.RecordsPersisted,
		m.PersistDuration,
		m.RecordsPurged,
		m.CacheLookups,
		m.RecordsPublished,
		m.QueryDuration,
	}
}
