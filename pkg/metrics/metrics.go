// Package metrics holds the Prometheus instrumentation for the scheduler.
// Using promauto for automatic registration with the default registry; the
// API server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FiresTotal counts completed fires by job and status.
	FiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cronx",
			Subsystem: "fires",
			Name:      "total",
			Help:      "Total number of completed fires by status",
		},
		[]string{"job", "status"},
	)

	// FireDuration tracks wall-clock duration of a fire, attempts included.
	FireDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cronx",
			Subsystem: "fires",
			Name:      "duration_seconds",
			Help:      "Duration of fires in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"job", "status"},
	)

	// FireAttempts tracks how many executor attempts a fire needed.
	FireAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cronx",
			Subsystem: "fires",
			Name:      "attempts",
			Help:      "Executor attempts per fire",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"job"},
	)

	// SchedulerLag measures delay between the intended fire time and the
	// moment the timer actually woke up.
	SchedulerLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cronx",
			Subsystem: "scheduler",
			Name:      "lag_seconds",
			Help:      "Delay between intended and actual fire time",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	// ProbabilisticSkips counts wake-ups where shouldRun declined to fire.
	ProbabilisticSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cronx",
			Subsystem: "scheduler",
			Name:      "probabilistic_skips_total",
			Help:      "Probabilistic wake-ups that did not fire",
		},
		[]string{"job"},
	)

	// JobsEnabled tracks the number of enabled jobs under management.
	JobsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cronx",
			Subsystem: "scheduler",
			Name:      "jobs_enabled",
			Help:      "Number of enabled jobs",
		},
	)

	// NotifyFailures counts failure notifications that themselves failed.
	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cronx",
			Subsystem: "notifications",
			Name:      "failures_total",
			Help:      "Failure notifications that could not be delivered",
		},
	)
)

// RecordFire records metrics for one completed fire.
func RecordFire(job, status string, attempts int, durationSeconds float64) {
	FiresTotal.WithLabelValues(job, status).Inc()
	FireDuration.WithLabelValues(job, status).Observe(durationSeconds)
	FireAttempts.WithLabelValues(job).Observe(float64(attempts))
}

// RecordWakeup records the lag of one timer wake-up.
func RecordWakeup(lagSeconds float64) {
	SchedulerLag.Observe(lagSeconds)
}
