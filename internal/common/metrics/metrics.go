package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	AssistantRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Messages entering the action dispatcher",
		},
	)

	AssistantActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_actions_total",
			Help: "Dispatched actions by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	PatternRouteHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_pattern_route_hits_total",
			Help: "Fast-path pattern router matches by route",
		},
		[]string{"route"},
	)

	DampenedClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_dampened_classifications_total",
			Help: "Classifications whose confidence was dampened as a repeat",
		},
		[]string{"intent"},
	)

	ExtractionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_extraction_fallbacks_total",
			Help: "Entity extractions that needed the deterministic fallback tier",
		},
		[]string{"entity_type"},
	)

	AgentSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_agent_selections_total",
			Help: "Specialized agent selections",
		},
		[]string{"agent"},
	)

	AgentContextFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_agent_context_failures_total",
			Help: "Knowledge-graph sub-fetches that failed and were nulled",
		},
		[]string{"slice"},
	)

	NeutralVoiceRewrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_neutral_voice_rewrites_total",
			Help: "Blame spans rewritten by category",
		},
		[]string{"category"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_completion_duration_seconds",
			Help:    "Completion service latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "status"},
	)
)
