package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleweaver_pipeline_runs_total",
			Help: "Completed pipeline runs by terminal status.",
		},
		[]string{"status"},
	)
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taleweaver_pipeline_stage_duration_seconds",
			Help:    "Histogram of per-stage durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	revisionAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taleweaver_pipeline_writer_attempts",
			Help:    "Writer attempts consumed per successful run.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
	degradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taleweaver_pipeline_degraded_stories_total",
			Help: "Stories delivered with the placeholder illustration.",
		},
	)
	violationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleweaver_pipeline_validation_violations_total",
			Help: "Validation violations found, by rule category.",
		},
		[]string{"category"},
	)
)
