package observability

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus collectors for the form pipeline.
type Metrics struct {
	Extractions       *prometheus.CounterVec
	CacheHits         prometheus.Counter
	Submissions       *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
	DroppedAnswers    prometheus.Counter
}

// NewMetrics registers the pipeline collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Extractions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "form_extractions_total",
			Help: "Form extraction attempts by provider and result.",
		}, []string{"provider", "result"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "form_extraction_cache_hits_total",
			Help: "Extractions answered from the store without DOM interaction.",
		}),
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Form submission attempts by provider and result.",
		}, []string{"provider", "result"}),
		SynthesisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "answer_synthesis_duration_seconds",
			Help:    "Latency of the generative answer synthesis call.",
			Buckets: prometheus.DefBuckets,
		}),
		DroppedAnswers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "answer_synthesis_dropped_total",
			Help: "Synthesized answers dropped for referencing unknown questions.",
		}),
	}
}

// RegisterMetricsEndpoint exposes Prometheus metrics on /metrics.
func RegisterMetricsEndpoint(router chi.Router) {
	router.Handle("/metrics", promhttp.Handler())
}
