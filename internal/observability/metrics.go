package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecognitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facemem",
		Name:      "recognitions_total",
		Help:      "Total number of recognition attempts",
	}, []string{"outcome"})

	SimilaritySearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facemem",
		Name:      "similarity_search_duration_seconds",
		Help:      "Duration of full-scan similarity searches",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facemem",
		Name:      "embedding_requests_total",
		Help:      "Total number of embedding producer calls",
	}, []string{"provider", "status"})

	EmbeddingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facemem",
		Name:      "embedding_request_duration_seconds",
		Help:      "Duration of embedding producer calls",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"provider"})

	DatasetRecordsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facemem",
		Name:      "dataset_records_built_total",
		Help:      "Training records written to JSONL files",
	})

	DatasetRecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facemem",
		Name:      "dataset_records_skipped_total",
		Help:      "Dataset records skipped during assembly",
	}, []string{"reason"})

	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facemem",
		Name:      "finetune_job_transitions_total",
		Help:      "Fine-tune job status transitions",
	}, []string{"status"})

	TaskQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facemem",
		Name:      "task_queue_depth",
		Help:      "Number of pending fine-tune tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facemem",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facemem",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
