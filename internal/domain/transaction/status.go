package transaction

import (
	"fmt"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

// ErrInvalidTransition indicates a status move not permitted by the
// lifecycle rules. It is an internal-consistency error: callers must reject
// the update rather than overwrite.
type ErrInvalidTransition struct {
	Reference string
	From      shared.Status
	To        shared.Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("transaction %s: illegal status transition %s -> %s", e.Reference, e.From, e.To)
}

// Is implements errors.Is so callers can match any invalid transition
func (e ErrInvalidTransition) Is(target error) bool {
	_, ok := target.(ErrInvalidTransition)
	return ok
}

// transitions encodes the forward-only status machine shared by every
// feature. successful->refunded is reachable only through the paired
// refund flow, which still funnels through Transition.
var transitions = map[shared.Status][]shared.Status{
	shared.StatusPending:    {shared.StatusProcessing, shared.StatusSuccessful, shared.StatusFailed},
	shared.StatusProcessing: {shared.StatusSuccessful, shared.StatusFailed},
	shared.StatusSuccessful: {shared.StatusRefunded},
}

// settlementTransitions extends the machine for settlement payouts, the
// only feature whose runs may be cancelled or closed as completed before
// a rail outcome lands.
var settlementTransitions = map[shared.Status][]shared.Status{
	shared.StatusPending:    {shared.StatusCancelled, shared.StatusCompleted},
	shared.StatusProcessing: {shared.StatusCancelled, shared.StatusCompleted},
}

// CanTransition reports whether moving from one status to another is legal
// for a transaction of the given feature. Replaying the current status is
// always allowed so duplicate webhook deliveries stay no-ops.
func CanTransition(feature shared.Feature, from, to shared.Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	if feature == shared.FeatureSettlement {
		for _, next := range settlementTransitions[from] {
			if next == to {
				return true
			}
		}
	}
	return false
}

// Transition moves the transaction to the target status, stamping
// CompletedAt on the first arrival at a settled outcome. A same-status
// replay returns nil without touching timestamps.
func (t *Transaction) Transition(to shared.Status) error {
	if t.Status == to {
		return nil
	}
	if !CanTransition(t.Feature, t.Status, to) {
		return ErrInvalidTransition{Reference: t.Reference, From: t.Status, To: to}
	}

	t.Status = to
	t.UpdatedAt = nowFunc()
	if to == shared.StatusSuccessful || to == shared.StatusFailed || to == shared.StatusCompleted {
		if t.CompletedAt == nil {
			completed := t.UpdatedAt
			t.CompletedAt = &completed
		}
	}
	return nil
}

// ForceRefundFailedSettlement is the one sanctioned exception to terminal
// immutability: a failed bank-settlement transaction may move to refunded
// once a reconciling transfer (identified via LinkedReference) completes.
// It exists to correct a stuck settlement retry and must stay an explicit,
// audited call; the general reconciler never takes this path.
func (t *Transaction) ForceRefundFailedSettlement(linkedReference string) error {
	if t.Feature != shared.FeatureSettlement {
		return ErrInvalidTransition{Reference: t.Reference, From: t.Status, To: shared.StatusRefunded}
	}
	if t.Status != shared.StatusFailed {
		return ErrInvalidTransition{Reference: t.Reference, From: t.Status, To: shared.StatusRefunded}
	}
	if linkedReference == "" {
		return ErrMissingReference
	}

	t.Status = shared.StatusRefunded
	t.LinkedReference = linkedReference
	t.UpdatedAt = nowFunc()
	return nil
}
