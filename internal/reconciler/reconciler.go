// Package reconciler turns at-least-once webhook deliveries into
// exactly-once state changes: a per-reference lock serializes concurrent
// deliveries, the ledger applies each event in one commit, and every
// delivery lands in the audit archive regardless of outcome.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	datamongo "github.com/paygrid-payments-engine/internal/data/mongo"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/metrics"
	"github.com/paygrid-payments-engine/internal/providers"
)

// Delivery outcomes recorded in the audit archive
const (
	outcomeApplied  = "applied"
	outcomeReplayed = "replayed"
	outcomeRejected = "rejected"
	outcomeErrored  = "errored"
)

// Ledger is the slice of the lifecycle service the reconciler drives
type Ledger interface {
	ApplyEvent(ctx context.Context, ev providers.Event) (*ledger.ApplyResult, error)
}

// Result tells the webhook handler how to answer the provider
type Result struct {
	Reference string
	Outcome   string
	Applied   bool
}

// Reconciler is the webhook ingestion pipeline
type Reconciler struct {
	ledger Ledger
	locker *Locker
	audit  *datamongo.WebhookEventRepository
	logger *slog.Logger
}

func New(l Ledger, locker *Locker, audit *datamongo.WebhookEventRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		ledger: l,
		locker: locker,
		audit:  audit,
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

// ApplyWebhook processes one raw delivery from the named provider.
//
// The error contract matters here: a nil error means the sender gets its
// ack, including replays and consistency rejections, because redelivering
// those can never change the answer. A non-nil error means the delivery
// might succeed later (lock held, database down) and the sender should
// retry.
func (r *Reconciler) ApplyWebhook(ctx context.Context, providerName string, raw []byte) (*Result, error) {
	started := time.Now()
	defer func() {
		metrics.ReconcileDuration.WithLabelValues(providerName).Observe(time.Since(started).Seconds())
	}()

	ev, err := providers.Decode(providerName, raw)
	if err != nil {
		// Undecodable payloads are archived and acked: retrying the same
		// bytes cannot help.
		r.logger.Warn("Rejected webhook payload",
			slog.String("provider", providerName),
			slog.String("error", err.Error()))
		r.archive(ctx, providerName, "", "", outcomeRejected, raw)
		metrics.WebhooksReceived.WithLabelValues(providerName, outcomeRejected).Inc()
		return &Result{Outcome: outcomeRejected}, nil
	}

	token := uuid.New().String()
	if err := r.locker.Acquire(ctx, ev.Reference, token); err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, fmt.Errorf("reference %s: %w", ev.Reference, err)
		}
		return nil, fmt.Errorf("acquiring reconcile lock for %s: %w", ev.Reference, err)
	}
	defer func() {
		if err := r.locker.Release(ctx, ev.Reference, token); err != nil {
			r.logger.Warn("Failed to release reconcile lock",
				slog.String("reference", ev.Reference),
				slog.String("error", err.Error()))
		}
	}()

	res, err := r.ledger.ApplyEvent(ctx, ev)
	outcome := outcomeFor(res, err)
	r.archive(ctx, providerName, ev.Reference, string(ev.Status), outcome, raw)
	metrics.WebhooksReceived.WithLabelValues(providerName, outcome).Inc()

	if err != nil {
		if errors.Is(err, ledger.ErrConsistency) || errors.Is(err, ledger.ErrValidation) {
			// Stored state contradicts the delivery. Redelivery cannot fix
			// that, so ack without mutating anything.
			r.logger.Warn("Webhook contradicts ledger state",
				slog.String("provider", providerName),
				slog.String("reference", ev.Reference),
				slog.String("error", err.Error()))
			return &Result{Reference: ev.Reference, Outcome: outcomeRejected}, nil
		}
		return nil, err
	}

	return &Result{Reference: ev.Reference, Outcome: outcome, Applied: res.Applied}, nil
}

func outcomeFor(res *ledger.ApplyResult, err error) string {
	switch {
	case err == nil && res.Applied:
		return outcomeApplied
	case err == nil:
		return outcomeReplayed
	case errors.Is(err, ledger.ErrConsistency), errors.Is(err, ledger.ErrValidation):
		return outcomeRejected
	}
	return outcomeErrored
}

// archive appends the delivery to the audit store. The commit already
// happened (or was refused); losing an audit row is logged, not fatal.
func (r *Reconciler) archive(ctx context.Context, providerName, reference, status, outcome string, raw []byte) {
	if r.audit == nil {
		return
	}
	event := &datamongo.WebhookEvent{
		Reference: reference,
		Provider:  providerName,
		Status:    status,
		Outcome:   outcome,
		Payload:   raw,
	}
	if err := r.audit.Append(ctx, event); err != nil {
		r.logger.Error("Webhook audit append failed",
			slog.String("reference", reference),
			slog.String("error", err.Error()))
	}
}
