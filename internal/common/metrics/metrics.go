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

	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_messages_processed_total",
			Help: "Inbound messages by response method",
		},
		[]string{"method"},
	)

	ConfidenceScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_confidence_score",
			Help:    "Distribution of overall confidence scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	SecurityFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_security_flags_total",
			Help: "Guardrail pattern matches by direction and category",
		},
		[]string{"direction", "category", "severity"},
	)

	GeneratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_generator_calls_total",
			Help: "Generative backend calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GeneratorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_generator_latency_seconds",
			Help:    "Latency of generative backend calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"operation"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_rate_limited_total",
			Help: "Messages short-circuited by the per-actor rate limit",
		},
	)

	RetrievalResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_retrieval_results",
			Help:    "Context sources returned per search",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
		[]string{"backend"},
	)

	LeadTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_lead_transitions_total",
			Help: "Lead state transitions by source",
		},
		[]string{"from", "to", "source"},
	)

	UnansweredRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_unanswered_questions_total",
			Help: "Unanswered question observations",
		},
		[]string{"outcome"},
	)
)
