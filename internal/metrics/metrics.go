package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbackd_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Intake metrics
	FeedbackSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_submissions_total",
			Help: "Total number of feedback submissions",
		},
		[]string{"source", "status"},
	)

	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_pipeline_runs_total",
			Help: "Total number of analysis pipeline runs",
		},
		[]string{"status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbackd_pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	PipelineStageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_pipeline_stage_retries_total",
			Help: "Total number of pipeline stage retry attempts",
		},
		[]string{"stage"},
	)

	// Search metrics
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_searches_total",
			Help: "Total number of search requests",
		},
		[]string{"mode", "status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedbackd_search_duration_seconds",
			Help:    "Duration of search requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbackd_search_keyword_fallbacks_total",
			Help: "Total number of searches that fell back to keyword mode",
		},
	)

	// Provider metrics
	EmbeddingGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_embedding_generations_total",
			Help: "Total number of embedding generations",
		},
		[]string{"status"},
	)

	EmbeddingGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedbackd_embedding_generation_duration_seconds",
			Help:    "Duration of embedding generation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	InferenceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_inference_calls_total",
			Help: "Total number of inference provider calls",
		},
		[]string{"operation", "status"},
	)

	// Storage metrics
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	VectorUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackd_vector_upserts_total",
			Help: "Total number of vector index upserts",
		},
		[]string{"status"},
	)

	// Application metrics
	ItemsMissingVectors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedbackd_items_missing_vectors",
			Help: "Number of completed items without a stored embedding",
		},
	)
)
