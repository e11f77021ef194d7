package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsCreatedTotal,
		jobsFinishedTotal,
		jobDurationSeconds,
		jobDispatchTotal,
		queueConsumerFailuresTotal,
	)
}

var (
	jobsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_jobs_created_total",
			Help: "Jobs accepted by the API, labeled by agent.",
		},
		[]string{"agent"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_jobs_finished_total",
			Help: "Jobs that reached a terminal status.",
		},
		[]string{"agent", "status"}, // 'completed', 'failed'
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_job_duration_seconds",
			Help:    "Wall time from running to terminal status.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"agent", "status"},
	)

	jobDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_job_dispatch_total",
			Help: "Dispatch attempts by dispatcher mode and outcome.",
		},
		[]string{"mode", "outcome"}, // outcome: 'ok', 'fallback', 'error'
	)

	queueConsumerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_queue_consumer_failures_total",
			Help: "Queue messages whose execution returned an error.",
		},
		[]string{"queue"},
	)
)

func IncJobCreated(agent string) {
	jobsCreatedTotal.WithLabelValues(norm(agent)).Inc()
}

func ObserveJobFinished(agent, status string, took time.Duration) {
	jobsFinishedTotal.WithLabelValues(norm(agent), norm(status)).Inc()
	jobDurationSeconds.WithLabelValues(norm(agent), norm(status)).Observe(took.Seconds())
}

func IncDispatch(mode, outcome string) {
	jobDispatchTotal.WithLabelValues(norm(mode), norm(outcome)).Inc()
}

func IncQueueConsumerFailure(queue string) {
	queueConsumerFailuresTotal.WithLabelValues(norm(queue)).Inc()
}
