package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmsync_jobs_total",
			Help: "Completed jobs by terminal status",
		},
		[]string{"job", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crmsync_job_duration_seconds",
			Help:    "Wall-clock duration of jobs including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"job"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crmsync_job_queue_depth",
			Help: "Jobs waiting in the queue",
		},
	)
)
