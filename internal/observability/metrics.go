package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "swsm"

// Outcome labels for ReportsGenerated.
const (
	OutcomeSuccess     = "success"
	OutcomeDecodeError = "decode_error"
	OutcomeUnresolved  = "unresolved"
	OutcomeInvalid     = "invalid_threshold"
	OutcomeError       = "error"
)

// Set labels for RowsClassified.
const (
	SetDeficit  = "deficit"
	SetInactive = "inactive"
	SetInput    = "input"
)

// Metrics holds the Prometheus collectors for report generation.
type Metrics struct {
	ReportsGenerated *prometheus.CounterVec // labels: outcome
	RowsClassified   *prometheus.CounterVec // labels: set={input,deficit,inactive}
	CoercionWarnings prometheus.Counter
	ZeroDemandRows   prometheus.Counter
	ReportDuration   prometheus.Histogram
	DownloadsPending prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Report generation attempts by outcome.",
		}, []string{"outcome"}),
		RowsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_classified_total",
			Help:      "Rows read and rows placed in each report sheet.",
		}, []string{"set"}),
		CoercionWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coercion_warnings_total",
			Help:      "Numeric cells that did not parse and were treated as null.",
		}),
		ZeroDemandRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_demand_rows_total",
			Help:      "Rows whose daily water demand was zero.",
		}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Duration of decode, classify and export for one upload.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		DownloadsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_pending",
			Help:      "Generated reports waiting to be downloaded.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReportsGenerated,
		m.RowsClassified,
		m.CoercionWarnings,
		m.ZeroDemandRows,
		m.ReportDuration,
		m.DownloadsPending,
	}
}

// NewMetrics creates and registers all report metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m, reg
}
