package refund

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages refund and chargeback claim persistence. Both claim
// kinds live behind one repository because every write path touches them
// the same way: by id or by the payout transaction reference.
type Repository interface {
	CreateRefund(ctx context.Context, r *Refund) error
	GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error)
	GetRefundByPayoutRef(ctx context.Context, payoutRef string) (*Refund, error)
	UpdateRefund(ctx context.Context, r *Refund) error

	CreateChargeback(ctx context.Context, c *Chargeback) error
	GetChargeback(ctx context.Context, id uuid.UUID) (*Chargeback, error)
	GetChargebackByPayoutRef(ctx context.Context, payoutRef string) (*Chargeback, error)
	UpdateChargeback(ctx context.Context, c *Chargeback) error

	WithTx(tx pgx.Tx) Repository
}

// ErrClaimNotFound indicates a missing refund or chargeback record
type ErrClaimNotFound struct {
	ID uuid.UUID
}

func (e ErrClaimNotFound) Error() string {
	return "claim not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrClaimNotFound
func (e ErrClaimNotFound) Is(target error) bool {
	t, ok := target.(ErrClaimNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
