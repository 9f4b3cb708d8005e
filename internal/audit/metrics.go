package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "audit_events_published_total",
		Help:      "Audit events accepted into the notifier queue",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "audit_events_dropped_total",
		Help:      "Audit events dropped because the queue was full or closed",
	})
	deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "audit_delivery_failures_total",
		Help:      "Audit events that could not be delivered to the sink",
	}, []string{"reason"})
)
