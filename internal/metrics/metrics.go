// Package metrics registers the domain counters of the fee ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feeledger"

var (
	VouchersPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vouchers_posted_total",
			Help:      "Vouchers persisted, by voucher type",
		},
		[]string{"type"},
	)
	Compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_compensations_total",
			Help:      "Saga compensations run, by operation and outcome (ok, failed)",
		},
		[]string{"op", "outcome"},
	)
	PaymentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Fee payments recorded, by payment mode",
		},
		[]string{"mode"},
	)
	PaymentAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_amount_minor_total",
			Help:      "Sum of recorded fee payments in minor units, by payment mode",
		},
		[]string{"mode"},
	)
	FeePostings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_postings_total",
			Help:      "Fee receipt voucher postings, by outcome (posted, skipped, failed)",
		},
		[]string{"outcome"},
	)
	ReportCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Report snapshot lookups, by result (hit, miss)",
		},
		[]string{"result"},
	)
)

// Compensated records the outcome of one compensation attempt.
func Compensated(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	Compensations.WithLabelValues(op, outcome).Inc()
}
