package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsEnqueuedTotal, jobsProcessedTotal, jobsExpiredTotal, jobDurationSeconds)
}

var jobsEnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_enqueued_total",
		Help: "Total number of jobs enqueued, labeled by queue.",
	},
	[]string{"queue"},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_processed_total",
		Help: "Job state transitions after processing, labeled by queue and resulting state.",
	},
	[]string{"queue", "state"}, // 'completed', 'retry', 'failed'
)

var jobsExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_expired_total",
		Help: "Jobs forcibly expired by the sweeper.",
	},
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_job_duration_seconds",
		Help:    "Handler execution time per queue.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"queue"},
)

func IncJobEnqueued(queue string) {
	jobsEnqueuedTotal.WithLabelValues(queue).Inc()
}

func IncJobProcessed(queue, state string) {
	jobsProcessedTotal.WithLabelValues(queue, state).Inc()
}

func AddJobsExpired(n int) {
	jobsExpiredTotal.Add(float64(n))
}

func ObserveJobDuration(queue string, seconds float64) {
	jobDurationSeconds.WithLabelValues(queue).Observe(seconds)
}
