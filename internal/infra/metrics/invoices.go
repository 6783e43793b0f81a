package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileTotal,
		reconcileSkipsTotal,
		ledgerFailuresTotal,
	)
}

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Reconciliation runs by operation (payment/refund) and outcome (issued/cancelled/already_done/skipped/error).",
		},
		[]string{"operation", "outcome"},
	)

	reconcileSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_skips_total",
			Help: "Scope-skips by reason (no_checkout_context/missing_billing_field/payment_never_invoiced).",
		},
		[]string{"reason"},
	)

	ledgerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_mirror_failures_total",
			Help: "Best-effort ledger writes that failed after the authoritative marker was durable.",
		},
		[]string{"operation"},
	)
)

func IncReconcile(operation, outcome string) {
	reconcileTotal.WithLabelValues(norm(operation), norm(outcome)).Inc()
}

func IncSkip(reason string) {
	reconcileSkipsTotal.WithLabelValues(norm(reason)).Inc()
}

func IncLedgerFailure(operation string) {
	ledgerFailuresTotal.WithLabelValues(norm(operation)).Inc()
}
