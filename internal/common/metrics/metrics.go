// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_events_dispatched_total",
			Help: "Total number of change events handled by the dispatcher",
		},
		[]string{"entity_kind", "outcome"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notify_dispatch_duration_seconds",
			Help: "Duration of a single dispatch invocation in seconds",
		},
		[]string{"entity_kind"},
	)

	DispatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_dispatches_in_flight",
			Help: "Number of dispatch invocations currently running",
		},
	)

	PushEndpointResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_push_endpoint_results_total",
			Help: "Per-endpoint multicast outcomes",
		},
		[]string{"result"},
	)

	EndpointsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_endpoints_pruned_total",
			Help: "Total number of invalid delivery endpoints removed",
		},
	)

	TopicPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_topic_publishes_total",
			Help: "Topic broadcast attempts by result",
		},
		[]string{"result"},
	)

	RecipientsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_recipients_filtered_total",
			Help: "Direct recipients dropped by preference or absence",
		},
		[]string{"reason"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	SourceEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_source_events_received_total",
			Help: "Change events received per source",
		},
		[]string{"source", "result"},
	)
)
