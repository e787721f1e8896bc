// Package refund holds the claim records raised against an original
// transaction: refunds and chargebacks. The claim and its payout
// transaction reference each other by stable identifiers, never by
// materialized object graphs.
package refund

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

var (
	ErrInvalidAmount      = errors.New("claim amount must be positive")
	ErrMissingTransaction = errors.New("claim must reference an original transaction")
)

// Refund is a claim to return funds for a successful transaction
type Refund struct {
	ID          uuid.UUID       `json:"id"`
	BusinessID  uuid.UUID       `json:"business_id"`
	Transaction string          `json:"transaction"`           // original transaction reference
	RefundedTxn string          `json:"refunded_txn,omitempty"` // payout transaction reference, set once created
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	Status      shared.Status   `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Chargeback is a provider-initiated dispute claim against a transaction
type Chargeback struct {
	ID          uuid.UUID       `json:"id"`
	BusinessID  uuid.UUID       `json:"business_id"`
	Transaction string          `json:"transaction"`
	ChargedTxn  string          `json:"charged_txn,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	Status      shared.Status   `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewRefund creates a pending refund claim for the original transaction
func NewRefund(businessID uuid.UUID, originalRef string, amount decimal.Decimal, reason string) (*Refund, error) {
	if originalRef == "" {
		return nil, ErrMissingTransaction
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Refund{
		ID:          uuid.New(),
		BusinessID:  businessID,
		Transaction: originalRef,
		Amount:      amount,
		Reason:      reason,
		Status:      shared.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewChargeback creates a pending chargeback claim for the original transaction
func NewChargeback(businessID uuid.UUID, originalRef string, amount decimal.Decimal, reason string) (*Chargeback, error) {
	if originalRef == "" {
		return nil, ErrMissingTransaction
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Chargeback{
		ID:          uuid.New(),
		BusinessID:  businessID,
		Transaction: originalRef,
		Amount:      amount,
		Reason:      reason,
		Status:      shared.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// MarkPaid records the claim as settled at the given time
func (r *Refund) MarkPaid(at time.Time) {
	r.Status = shared.StatusSuccessful
	r.PaidAt = &at
	r.UpdatedAt = at
}

// MarkFailed records that the claim's payout did not go through
func (r *Refund) MarkFailed(at time.Time) {
	r.Status = shared.StatusFailed
	r.UpdatedAt = at
}

// MarkPaid records the dispute as settled at the given time
func (c *Chargeback) MarkPaid(at time.Time) {
	c.Status = shared.StatusSuccessful
	c.PaidAt = &at
	c.UpdatedAt = at
}

// MarkFailed records that the dispute's payout did not go through
func (c *Chargeback) MarkFailed(at time.Time) {
	c.Status = shared.StatusFailed
	c.UpdatedAt = at
}
