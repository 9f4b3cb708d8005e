package transfer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tinoosan/bankledger/internal/errs"
)

var (
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transfers_total",
			Help:      "Balance-moving operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	transferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "transfer_duration_seconds",
			Help:      "End-to-end duration of balance-moving operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	lockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring account locks",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		},
	)
)

func observe(action string, err error, start time.Time) {
	outcome := "success"
	if err != nil {
		outcome = string(errs.KindOf(err))
	}
	transfersTotal.WithLabelValues(action, outcome).Inc()
	transferDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}
