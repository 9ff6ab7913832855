// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "docflow"

var (
	TaskSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_submitted_total",
			Help:      "Total number of batch tasks accepted by the dispatcher.",
		},
		[]string{"operation"},
	)

	TaskRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_rejected_total",
			Help:      "Total number of batch submissions rejected, labeled by reason.",
		},
		[]string{"operation", "reason"},
	)

	TaskFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_finished_total",
			Help:      "Total number of batch tasks that reached a terminal status.",
		},
		[]string{"operation", "status"},
	)

	TaskDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time from worker pickup to terminal status (seconds).",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"operation", "status"},
	)

	TaskItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_items_total",
			Help:      "Total number of batch items processed, labeled by outcome kind.",
		},
		[]string{"operation", "kind"},
	)

	TaskQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Number of tasks waiting for a worker.",
		},
	)

	TaskSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_swept_total",
			Help:      "Total number of expired terminal tasks removed from the registry.",
		},
	)

	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Total number of calls to the processing service, labeled by HTTP status class.",
		},
		[]string{"operation", "code"},
	)

	RemoteRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of calls to the processing service (seconds).",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ArchiveEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_entries_total",
			Help:      "Total number of archive entries, labeled by whether they were written or skipped.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		TaskSubmittedTotal,
		TaskRejectedTotal,
		TaskFinishedTotal,
		TaskDurationSeconds,
		TaskItemsTotal,
		TaskQueueDepth,
		TaskSweptTotal,
		RemoteRequestsTotal,
		RemoteRequestDurationSeconds,
		ArchiveEntriesTotal,
	)
}

// StatusClass collapses an HTTP status code into "2xx", "4xx", ... or
// "error" when no response was received.
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
