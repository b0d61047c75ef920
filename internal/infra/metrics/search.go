package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(searchRequestsTotal, searchLatencySeconds, searchCacheHitsTotal)
}

var searchRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_search_requests_total",
		Help: "Similarity search requests, labeled by outcome.",
	},
	[]string{"status"}, // 'ok', 'error', 'rate_limited'
)

var searchLatencySeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "pipeline_search_latency_seconds",
		Help:    "End-to-end search latency including query embedding.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
)

var searchCacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_search_cache_total",
		Help: "Query-embedding cache lookups, labeled hit or miss.",
	},
	[]string{"result"},
)

func IncSearchRequest(status string) {
	searchRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveSearchLatency(seconds float64) {
	searchLatencySeconds.Observe(seconds)
}

func IncSearchCache(hit bool) {
	r := "miss"
	if hit {
		r = "hit"
	}
	searchCacheHitsTotal.WithLabelValues(r).Inc()
}
