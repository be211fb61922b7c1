package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersCreated,
		ordersConfirmed,
		ordersExpired,
		ordersCredited,
		ordersCreditFailed,
		ordersReconciled,
	)
}

var (
	ordersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created, by product category.",
		},
		[]string{"category"},
	)

	ordersConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_confirmed_total",
			Help: "Payment confirmations applied, by source (callback, poll).",
		},
		[]string{"source"},
	)

	ordersExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Pending orders expired past the payment window.",
		},
	)

	ordersCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_credited_total",
			Help: "Orders fully credited, by path (inline, reconciled).",
		},
		[]string{"path"},
	)

	ordersCreditFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_credit_failed_total",
			Help: "Credit dispatches that failed and were queued for retry.",
		},
	)

	ordersReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_reconciled_total",
			Help: "Stale orders resolved by the reconciler, by final status.",
		},
		[]string{"status"},
	)
)

func IncOrdersCreated(category string) { ordersCreated.WithLabelValues(norm(category)).Inc() }

func IncOrdersConfirmed(source string) { ordersConfirmed.WithLabelValues(norm(source)).Inc() }

func IncOrdersExpired() { ordersExpired.Inc() }

func IncOrdersCredited(path string) { ordersCredited.WithLabelValues(norm(path)).Inc() }

func IncOrdersCreditFailed() { ordersCreditFailed.Inc() }

func IncOrdersReconciled(status string) { ordersReconciled.WithLabelValues(norm(status)).Inc() }
