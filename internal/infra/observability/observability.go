// Package observability exposes Prometheus metrics for the loyalty engine.
// Metrics are registered with the default registry via promauto and served
// on /metrics when the daemon enables them.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerOperations counts ledger operations by op and result
// (ok, noop, rejected, error).
var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "perkly",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Total ledger operations by operation and result.",
}, []string{"op", "result"})

// PointsIssued counts total points credited through earn operations.
var PointsIssued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "perkly",
	Subsystem: "ledger",
	Name:      "points_issued_total",
	Help:      "Total points issued by earn operations.",
})

// PointsRedeemed counts total points debited through redeem operations.
var PointsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "perkly",
	Subsystem: "ledger",
	Name:      "points_redeemed_total",
	Help:      "Total points redeemed.",
})

// TierTransitions counts tier upgrades and downgrades applied.
var TierTransitions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "perkly",
	Subsystem: "ledger",
	Name:      "tier_transitions_total",
	Help:      "Total tier transitions applied to accounts.",
})

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// RequestDuration observes HTTP request latency by route.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "perkly",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "status"})

// ─── Recording Helpers ──────────────────────────────────────────────────────

// RecordOperation increments the operation counter.
func RecordOperation(op, result string) {
	LedgerOperations.WithLabelValues(op, result).Inc()
}

// AddPointsIssued adds to the issued-points counter.
func AddPointsIssued(points int64) {
	PointsIssued.Add(float64(points))
}

// AddPointsRedeemed adds to the redeemed-points counter.
func AddPointsRedeemed(points int64) {
	PointsRedeemed.Add(float64(points))
}

// RecordTierTransition increments the tier transition counter.
func RecordTierTransition() {
	TierTransitions.Inc()
}

// ObserveRequest records one HTTP request observation.
func ObserveRequest(route, status string, elapsed time.Duration) {
	RequestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}
