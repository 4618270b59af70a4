// Package metrics exposes Prometheus instrumentation for worker
// sessions. The dashboard serves these on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts every claimed token, whatever the outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshbench_jobs_processed_total",
		Help: "Queue tokens claimed and processed by workers.",
	}, []string{"algorithm"})

	// JobsCompleted counts jobs that produced an artifact.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshbench_jobs_completed_total",
		Help: "Jobs finished successfully.",
	}, []string{"algorithm"})

	// JobsFailed counts jobs that ended failed, including exhausted
	// retries and integrity errors.
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshbench_jobs_failed_total",
		Help: "Jobs finished in failure.",
	}, []string{"algorithm"})

	// JobDuration observes wall-clock job duration in seconds.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meshbench_job_duration_seconds",
		Help:    "End-to-end job duration including retries.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 960},
	}, []string{"algorithm"})
)
