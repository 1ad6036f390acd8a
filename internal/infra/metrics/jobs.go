package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(backgroundJobsTotal) }

var backgroundJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "background_jobs_total",
		Help: "Background jobs run by the worker pool and schedulers, labeled by job and status.",
	},
	[]string{"job", "status"}, // status: 'completed', 'failed', 'dropped'
)

func IncJob(job, status string) {
	backgroundJobsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}
