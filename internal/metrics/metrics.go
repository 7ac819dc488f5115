package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSubmittedTotal counts accepted order submissions.
	OrdersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchbook_orders_submitted_total",
			Help: "Total number of orders accepted by the matching engine",
		},
		[]string{"side", "kind"},
	)

	// OrdersRejectedTotal counts submissions rejected before persistence.
	OrdersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchbook_orders_rejected_total",
			Help: "Total number of order submissions rejected by validation",
		},
		[]string{"reason"},
	)

	// OrdersCancelledTotal counts successful owner cancellations.
	OrdersCancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchbook_orders_cancelled_total",
			Help: "Total number of orders cancelled by their owner",
		},
	)

	// OrdersExpiredTotal counts orders expired by the sweeper.
	OrdersExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchbook_orders_expired_total",
			Help: "Total number of orders expired past their expires_at",
		},
	)

	// ExecutionsTotal counts settled executions.
	ExecutionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchbook_executions_total",
			Help: "Total number of settled executions",
		},
	)

	// ExecutedSharesTotal counts shares changing hands.
	ExecutedSharesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchbook_executed_shares_total",
			Help: "Total quantity matched across all executions",
		},
	)

	// SettlementConflicts counts compare-and-swap failures during
	// settlement. These are retried internally, never client-visible.
	SettlementConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchbook_settlement_conflicts_total",
			Help: "Total number of stale-read conflicts detected by the settlement recorder",
		},
	)

	// AuditDropped counts audit records dropped because the emitter queue
	// was full.
	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchbook_audit_records_dropped_total",
			Help: "Total number of audit records dropped under backpressure",
		},
	)
)
