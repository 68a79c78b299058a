package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/quality"
)

const namespace = "weather_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// pipeline and the quality auditor.
type Metrics struct {
	RecordsExtracted *prometheus.CounterVec // labels: source
	RowsRejected     *prometheus.CounterVec // labels: source
	SourceFailures   *prometheus.CounterVec // labels: source, kind={source_missing,file_failed,shape_mismatch}
	Findings         *prometheus.CounterVec // labels: check, kind, severity
	DocumentsLoaded  prometheus.Counter
	Runs             *prometheus.CounterVec // labels: outcome
	RunDuration      prometheus.Histogram
	PipelineRunning  prometheus.Gauge

	// Quality audit gauges, refreshed on every audit.
	QualityErrorRate    prometheus.Gauge
	QualityAffectedRate prometheus.Gauge
	QualityDocuments    prometheus.Gauge
	QualityOutOfRange   *prometheus.GaugeVec // labels: field
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Canonical records produced by source adapters.",
		}, []string{"source"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Raw rows or entries dropped for lack of a timestamp.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Source files that contributed zero records, by reason.",
		}, []string{"source", "kind"}),
		Findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Anomalies counted by integrity and quality passes.",
		}, []string{"check", "kind", "severity"}),
		DocumentsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_loaded_total",
			Help:      "Documents written to the store.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal state.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		QualityErrorRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_error_rate_percent",
			Help:      "Out-of-range values summed across fields over stored documents.",
		}),
		QualityAffectedRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_affected_rate_percent",
			Help:      "Share of stored documents with at least one field out of range.",
		}),
		QualityDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_documents",
			Help:      "Documents inspected by the last quality audit.",
		}),
		QualityOutOfRange: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_out_of_range",
			Help:      "Out-of-range values per field in the last quality audit.",
		}, []string{"field"}),
	}
}

// Collectors lists every metric, for registration or pushing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsExtracted,
		m.RowsRejected,
		m.SourceFailures,
		m.Findings,
		m.DocumentsLoaded,
		m.Runs,
		m.RunDuration,
		m.PipelineRunning,
		m.QualityErrorRate,
		m.QualityAffectedRate,
		m.QualityDocuments,
		m.QualityOutOfRange,
	}
}

// ObserveReport counts the report's non-zero findings. Quality reports also
// refresh the quality gauges.
func (m *Metrics) ObserveReport(r domain.Report) {
	for _, f := range r.Findings {
		if f.Count == 0 {
			continue
		}
		m.Findings.WithLabelValues(string(r.Check), string(f.Kind), string(f.Severity)).Add(float64(f.Count))
	}

	if r.Check != domain.CheckQuality || r.Measures == nil {
		return
	}
	m.QualityErrorRate.Set(r.Measures[quality.MeasureErrorRate])
	m.QualityAffectedRate.Set(r.Measures[quality.MeasureAffectedRate])
	m.QualityDocuments.Set(float64(r.Records))
	for _, f := range r.Findings {
		if f.Kind == domain.KindOutOfRange {
			m.QualityOutOfRange.WithLabelValues(f.Field).Set(float64(f.Count))
		}
	}
}
