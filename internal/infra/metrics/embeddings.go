package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(embeddingBatchesTotal, embeddingTokensTotal, embeddingCallLatency)
}

var embeddingBatchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_embedding_batches_total",
		Help: "Embedding API batch calls, labeled by outcome.",
	},
	[]string{"status"}, // 'ok', 'retried', 'error'
)

var embeddingTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_embedding_tokens_total",
		Help: "Approximate token usage of embedding calls, per model.",
	},
	[]string{"model"},
)

var embeddingCallLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_embedding_call_latency_ms",
		Help:    "Embedding API call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	},
	[]string{"model", "success"},
)

func IncEmbeddingBatch(status string) {
	embeddingBatchesTotal.WithLabelValues(status).Inc()
}

func AddEmbeddingTokens(model string, tokens int) {
	embeddingTokensTotal.WithLabelValues(model).Add(float64(tokens))
}

func ObserveEmbeddingCall(model string, ms int, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	embeddingCallLatency.WithLabelValues(model, s).Observe(float64(ms))
}
