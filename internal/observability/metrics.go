package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

const namespace = "crime_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// upload pipeline, the HTTP API, and geocoding.
type Metrics struct {
	UploadsProcessed *prometheus.CounterVec // labels: source={kafka,http}, outcome={ok,schema_error}
	RowsRead         prometheus.Counter
	RowsDropped      *prometheus.CounterVec // labels: reason={category,coordinates,date}
	RecordsProduced  prometheus.Counter
	PipelineRunning  prometheus.Gauge
	QuizChecks       *prometheus.CounterVec // labels: indicator={IMV,IMT,ICCP}, verdict={MATCH,MISMATCH}

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UploadsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_processed_total",
			Help:      "CSV uploads normalized, by source and outcome.",
		}, []string{"source", "outcome"}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Total data rows read from uploads.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows excluded during normalization, by reason.",
		}, []string{"reason"}),
		RecordsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      "Total incident records written to the sink topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		QuizChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_answers_total",
			Help:      "Graded indicator answers, by indicator and verdict.",
		}, []string{"indicator", "verdict"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of uploads per batch extracted from Kafka.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when centroid geocoding is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.UploadsProcessed,
		m.RowsRead,
		m.RowsDropped,
		m.RecordsProduced,
		m.PipelineRunning,
		m.QuizChecks,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// ObserveUpload records the outcome of normalizing one upload.
func (m *Metrics) ObserveUpload(source string, stats domain.NormalizeStats) {
	m.UploadsProcessed.WithLabelValues(source, "ok").Inc()
	m.RowsRead.Add(float64(stats.RowsRead))
	m.RowsDropped.WithLabelValues("category").Add(float64(stats.DroppedCategory))
	m.RowsDropped.WithLabelValues("coordinates").Add(float64(stats.DroppedCoordinates))
	m.RowsDropped.WithLabelValues("date").Add(float64(stats.DroppedDate))
}

// ObserveSchemaError records an upload rejected for missing columns.
func (m *Metrics) ObserveSchemaError(source string) {
	m.UploadsProcessed.WithLabelValues(source, "schema_error").Inc()
}

// ObserveGrade records every graded answer of a quiz check.
func (m *Metrics) ObserveGrade(kind domain.IndicatorKind, g domain.Grade) {
	for _, list := range [][]domain.GradedAnswer{g.Rates, g.Variations} {
		for _, a := range list {
			m.QuizChecks.WithLabelValues(string(kind), a.Verdict.String()).Inc()
		}
	}
}
