// Package metrics exposes the engine's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payments_engine"

var (
	// WebhooksReceived counts webhook deliveries per provider and outcome.
	// Outcome is one of applied, replayed, rejected, errored.
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "webhooks_total",
		Help:      "Webhook deliveries processed, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ReconcileDuration observes the end-to-end webhook commit latency
	ReconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "apply_duration_seconds",
		Help:      "Time to decode, lock and commit one webhook delivery.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	// ChargeSteps counts card authorization steps served, by step
	ChargeSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cards",
		Name:      "charge_steps_total",
		Help:      "Card charge next-steps returned to callers, by step.",
	}, []string{"step"})

	// OutboxPublished counts outbox messages by dispatch result
	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "outbox_messages_total",
		Help:      "Outbox messages dispatched, by route and result.",
	}, []string{"route", "result"})

	// TransactionsByStatus counts lifecycle transitions committed
	TransactionsByStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "transitions_total",
		Help:      "Transaction status transitions committed, by status.",
	}, []string{"status"})
)
