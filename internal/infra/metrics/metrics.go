package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued tracks jobs accepted by the queue
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_jobs_enqueued_total",
			Help: "Total number of delivery jobs enqueued",
		},
		[]string{"priority", "work_type"},
	)

	// JobsFinished tracks terminal outcomes
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_jobs_finished_total",
			Help: "Total number of delivery jobs that reached a terminal state",
		},
		[]string{"status", "category"},
	)

	// JobRetries tracks automatic and manual re-queues
	JobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_job_retries_total",
			Help: "Total number of job retries",
		},
		[]string{"kind"}, // automatic, manual
	)

	// JobDuration tracks execution time of completed jobs
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_job_duration_seconds",
			Help:    "Execution time of delivery jobs",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		},
		[]string{"work_type"},
	)

	// QueueJobs tracks how many jobs are in each status
	QueueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "delivery_queue_jobs",
			Help: "Number of jobs per status",
		},
		[]string{"status"},
	)

	// WorkersBusy tracks busy workers
	WorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_workers_busy",
			Help: "Number of workers currently holding a job",
		},
	)

	// RecoverySessions tracks closed or escalated recovery sessions
	RecoverySessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_recovery_sessions_total",
			Help: "Recovery sessions by error category and final status",
		},
		[]string{"category", "status"},
	)

	// RecoveryAttempts tracks executed recovery actions
	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_recovery_attempts_total",
			Help: "Recovery actions executed by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// EventsDropped tracks events a slow subscriber missed
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
		[]string{"source"},
	)

	// CheckpointsTotal tracks snapshot writes
	CheckpointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_checkpoints_total",
			Help: "Snapshot checkpoint attempts by result",
		},
		[]string{"backend", "result"},
	)

	// DBConnectionPoolUsage tracks the percentage of open database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the pool limit",
		},
	)
)
