package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Gateway intake
	PaymentEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Gateway payment events processed",
		},
		[]string{"channel", "outcome"}, // outcome: applied|replayed|rejected|failed
	)
	DuplicateReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_duplicate_replays_total",
			Help: "Payment events answered from the idempotency guard",
		},
	)

	// Reconciliation
	ReconciliationCorrections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_corrections_total",
			Help: "Wallet balances corrected by reconciliation",
		},
	)
	DuplicatesVoided = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_duplicates_voided_total",
			Help: "Duplicate ledger entries voided by reconciliation",
		},
	)

	// Fee projection
	FeeProjectionsMirrored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fee_projections_mirrored_total",
			Help: "Fee deductions mirrored into the projection store",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(PaymentEventsTotal)
	prometheus.MustRegister(DuplicateReplays)
	prometheus.MustRegister(ReconciliationCorrections)
	prometheus.MustRegister(DuplicatesVoided)
	prometheus.MustRegister(FeeProjectionsMirrored)
	prometheus.MustRegister(WorkerQueueDepth)
}
