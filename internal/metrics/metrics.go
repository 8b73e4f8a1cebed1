// Package metrics holds the Prometheus collectors of the exam engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter for recorded answers
	answersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_answers_total",
			Help: "Total number of answers recorded",
		},
		[]string{"mechanism", "correct"},
	)

	// Counter for sessions reaching a terminal outcome
	sessionsDone = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_done_total",
			Help: "Total number of sessions that reached a terminal outcome",
		},
		[]string{"mechanism", "reason"},
	)

	// Histogram for final true-scores
	finalScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_final_score",
			Help:    "Distribution of final true-scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"mechanism"},
	)

	// Histogram for engine operation latency
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_operation_duration_seconds",
			Help:    "Time spent in engine operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Counter for progress events the worker persisted or dropped
	progressEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_progress_events_total",
			Help: "Total number of progress events handled by the progress worker",
		},
		[]string{"status"},
	)
)

func ObserveAnswer(mechanism string, correct bool) {
	answersTotal.WithLabelValues(mechanism, strconv.FormatBool(correct)).Inc()
}

func ObserveDone(mechanism, reason string) {
	sessionsDone.WithLabelValues(mechanism, reason).Inc()
}

func ObserveFinalScore(mechanism string, score float64) {
	finalScore.WithLabelValues(mechanism).Observe(score)
}

// Since records the elapsed time of an operation started at start.
func Since(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func ObserveProgress(status string, n int) {
	progressEvents.WithLabelValues(status).Add(float64(n))
}
