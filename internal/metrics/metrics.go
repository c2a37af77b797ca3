// Package metrics declares the Prometheus collectors for the points ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerMutations counts committed balance mutations by transaction type
// and writer strategy.
var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chorechamp",
	Subsystem: "ledger",
	Name:      "mutations_total",
	Help:      "Total committed balance mutations.",
}, []string{"kind", "strategy"})

// LedgerMutationErrors counts rejected or failed mutations by reason.
var LedgerMutationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chorechamp",
	Subsystem: "ledger",
	Name:      "mutation_errors_total",
	Help:      "Total balance mutations that did not commit, by reason.",
}, []string{"reason"})

// LedgerCompensations counts compensating rollbacks of the sequential writer.
var LedgerCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chorechamp",
	Subsystem: "ledger",
	Name:      "compensations_total",
	Help:      "Total compensating rollbacks, by outcome (ok, failed).",
}, []string{"outcome"})

// LedgerPartialFailures counts mutations that left balance and ledger
// possibly out of step.
var LedgerPartialFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "chorechamp",
	Subsystem: "ledger",
	Name:      "partial_failures_total",
	Help:      "Total partial failures requiring reconciliation.",
})

// LedgerCASConflicts counts compare-and-set misses on the balance row.
var LedgerCASConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "chorechamp",
	Subsystem: "ledger",
	Name:      "cas_conflicts_total",
	Help:      "Total balance compare-and-set conflicts that were retried.",
})

// LedgerApplySeconds observes the latency of a balance mutation.
var LedgerApplySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "chorechamp",
	Subsystem: "ledger",
	Name:      "apply_seconds",
	Help:      "Latency of balance mutations.",
	Buckets:   prometheus.DefBuckets,
}, []string{"strategy"})

// BadgesAwarded counts badges awarded on evaluation.
var BadgesAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "chorechamp",
	Subsystem: "progression",
	Name:      "badges_awarded_total",
	Help:      "Total badges awarded.",
})

// LedgerDrift is the number of users whose balance row disagreed with the
// ledger on the last reconciliation check.
var LedgerDrift = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "chorechamp",
	Subsystem: "ledger",
	Name:      "drift_users",
	Help:      "Users whose balance disagreed with the ledger on the last check.",
})
