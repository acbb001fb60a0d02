package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts handled jobs by terminal outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoeditor_jobs_processed_total",
			Help: "Total number of processed image jobs",
		},
		[]string{"status"},
	)

	// JobDuration tracks end-to-end handling time per job in seconds.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photoeditor_job_duration_seconds",
			Help:    "Duration of image job handling in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)

	// WorkersActive tracks the number of currently busy worker goroutines.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoeditor_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// BatchesFinalized counts batches reaching a terminal status.
	BatchesFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoeditor_batches_finalized_total",
			Help: "Total number of batches reaching a terminal status",
		},
		[]string{"status"},
	)

	// ProviderFailures counts processing-provider errors (terminal FAILED jobs).
	ProviderFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoeditor_provider_failures_total",
			Help: "Total number of processing provider failures",
		},
	)

	// DuplicateDeliveries counts queue messages dropped as duplicates.
	DuplicateDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoeditor_duplicate_deliveries_total",
			Help: "Total number of duplicate queue deliveries dropped",
		},
	)
)
