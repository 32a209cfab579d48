package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simsearch",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	ModerationVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "moderation_verdicts_total",
			Help:      "Moderation verdicts by outcome",
		},
		[]string{"verdict"}, // "accepted" / "rejected" / "uncertain" / "error"
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "cache_total",
			Help:      "Response cache hits and misses by tier",
		},
		[]string{"tier", "result"}, // result: "hit" / "miss" / "expired"
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "search_fallbacks_total",
			Help:      "Search fallback activations",
		},
		[]string{"kind"}, // "brute_force" / "lexical"
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simsearch",
			Name:      "pipeline_duration_seconds",
			Help:      "Full similarity pipeline duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"}, // "cache_hit" / "success" / "rejected" / "error"
	)

	GenerationFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "generation_fallbacks_total",
			Help:      "Title/description generations replaced by the deterministic fallback",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(ModerationVerdictsTotal)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(SearchFallbacksTotal)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(GenerationFallbacksTotal)
	pipelineMetricsRegistered = true
}
