// Package metrics holds the Prometheus collectors shared by the memory tiers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recencyWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiermem_recency_writes_total",
			Help: "Total number of recency window writes",
		},
		[]string{"window", "status"},
	)

	scores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tiermem_importance_scores",
			Help:    "Distribution of importance scores",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	scoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiermem_score_failures_total",
			Help: "Total number of importance scoring calls that fell back to the default score",
		},
		[]string{"reason"},
	)

	longTermOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiermem_longterm_operations_total",
			Help: "Total number of long-term store operations",
		},
		[]string{"operation", "status"},
	)

	promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiermem_promotions_total",
			Help: "Total number of records admitted to a higher tier",
		},
		[]string{"tier"},
	)

	queueDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tiermem_queue_drops_total",
			Help: "Total number of scoring jobs dropped because the queue was full",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tiermem_queue_depth",
			Help: "Current number of scoring jobs waiting in the queue",
		},
	)

	retentionDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tiermem_retention_deleted_total",
			Help: "Total number of long-term records removed by retention",
		},
	)
)

// RecordRecencyWrite records the outcome of a recency window write.
func RecordRecencyWrite(window string, err error) {
	recencyWrites.WithLabelValues(window, status(err)).Inc()
}

// RecordScore records a successful importance score.
func RecordScore(score int) {
	scores.Observe(float64(score))
}

// RecordScoreFailure records a scoring call that fell back to the default.
func RecordScoreFailure(reason string) {
	scoreFailures.WithLabelValues(reason).Inc()
}

// RecordLongTerm records the outcome of a long-term store operation.
func RecordLongTerm(operation string, err error) {
	longTermOps.WithLabelValues(operation, status(err)).Inc()
}

// RecordPromotion records a record admitted to tier ("weekly" or "longterm").
func RecordPromotion(tier string) {
	promotions.WithLabelValues(tier).Inc()
}

// RecordQueueDrop records a scoring job dropped on a full queue.
func RecordQueueDrop() {
	queueDrops.Inc()
}

// SetQueueDepth records the current scoring queue depth.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// RecordRetentionDeletes records long-term records removed by retention.
func RecordRetentionDeletes(n int) {
	retentionDeletes.Add(float64(n))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
