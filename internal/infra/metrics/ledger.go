package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ledgerConsume,
		ledgerExhausted,
		ledgerGrants,
		ledgerLatencyMs,
	)
}

var (
	ledgerConsume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_consume_total",
			Help: "Entitlement consumptions, by source ledger (quota, package, credit).",
		},
		[]string{"source", "target"},
	)

	ledgerExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_exhausted_total",
			Help: "Consume attempts rejected with every source exhausted.",
		},
		[]string{"target"},
	)

	ledgerGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_grants_total",
			Help: "Ledger grants applied by the settlement saga.",
		},
		[]string{"ledger"},
	)

	ledgerLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_op_latency_ms",
			Help:    "Ledger operation latency distribution in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"op"},
	)
)

func IncLedgerConsume(source, target string) {
	ledgerConsume.WithLabelValues(norm(source), norm(target)).Inc()
}

func IncLedgerExhausted(target string) { ledgerExhausted.WithLabelValues(norm(target)).Inc() }

func IncLedgerGrant(ledger string) { ledgerGrants.WithLabelValues(norm(ledger)).Inc() }

func ObserveLedgerOp(op string, latencyMs float64) {
	ledgerLatencyMs.WithLabelValues(norm(op)).Observe(latencyMs)
}
