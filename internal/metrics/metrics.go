package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "ledger",
		Name:      "entries_total",
		Help:      "Ledger transactions written, by type and direction.",
	}, []string{"type", "direction"})

	LedgerCredits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "ledger",
		Name:      "credits_total",
		Help:      "Credits moved through the ledger, by type and direction.",
	}, []string{"type", "direction"})

	InsufficientCredit = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "ledger",
		Name:      "insufficient_credit_total",
		Help:      "Debits refused because the balance was below the amount.",
	})

	ProposalsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "proposals",
		Name:      "submitted_total",
		Help:      "Proposals created.",
	})

	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "proposals",
		Name:      "decisions_total",
		Help:      "Accept/reject decisions by action and outcome (applied, replayed, failed).",
	}, []string{"action", "outcome"})

	CascadeSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Subsystem: "proposals",
		Name:      "cascade_rejections",
		Help:      "Sibling proposals rejected by one accept.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	OutboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "outbox",
		Name:      "deliveries_total",
		Help:      "Outbox delivery attempts by result (delivered, retry, dead).",
	}, []string{"event_type", "result"})

	OutboxDeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Subsystem: "outbox",
		Name:      "delivery_duration_seconds",
		Help:      "Time spent in one notifier call.",
		Buckets:   prometheus.DefBuckets,
	})
)
