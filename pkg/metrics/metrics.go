package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	IngestQueueDepth    prometheus.Gauge
	IngestsTotal        *prometheus.CounterVec
	ExtractionDuration  *prometheus.HistogramVec
	ChunksPersisted     prometheus.Counter
	RelationsLinked     *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	SynthesisTotal      *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		IngestQueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_queue_depth",
				Help: "Current number of ingest requests waiting in the queue.",
			},
		),
		IngestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingests_total",
				Help: "Total number of URL ingestion attempts.",
			},
			[]string{"status", "error_type"}, // status: success, duplicate, failure
		),
		ExtractionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extraction_duration_seconds",
				Help:    "Duration of content extraction calls.",
				Buckets: []float64{0.5, 1, 5, 10, 15, 30, 60},
			},
			[]string{"domain"},
		),
		ChunksPersisted: f.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_persisted_total",
				Help: "Total number of chunks written to the store.",
			},
		),
		RelationsLinked: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relations_linked_total",
				Help: "Total number of source relations written.",
			},
			[]string{"relation_type"},
		),
		SearchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_duration_seconds",
				Help:    "Duration of ranked searches.",
				Buckets: prometheus.DefBuckets,
			},
		),
		SynthesisTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthesis_total",
				Help: "Answers produced, by synthesis path.",
			},
			[]string{"path"}, // general, structured, fallback, noisy, empty
		),
	}
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func (m *Metrics) SetQueueDepth(n int64) {
	if m == nil {
		return
	}
	m.IngestQueueDepth.Set(float64(n))
}

func (m *Metrics) IncIngest(status, errorType string) {
	if m == nil {
		return
	}
	m.IngestsTotal.WithLabelValues(status, errorType).Inc()
}

func (m *Metrics) ObserveExtraction(domain string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionDuration.WithLabelValues(domain).Observe(d.Seconds())
}

func (m *Metrics) AddChunks(n int) {
	if m == nil {
		return
	}
	m.ChunksPersisted.Add(float64(n))
}

func (m *Metrics) IncRelation(relationType string) {
	if m == nil {
		return
	}
	m.RelationsLinked.WithLabelValues(relationType).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

func (m *Metrics) IncSynthesis(path string) {
	if m == nil {
		return
	}
	m.SynthesisTotal.WithLabelValues(path).Inc()
}
