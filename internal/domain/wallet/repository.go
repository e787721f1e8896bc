package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository defines wallet persistence operations
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*Wallet, error)
	Update(ctx context.Context, w *Wallet) error

	// AdjustBalance applies a signed delta under optimistic locking
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, version int) error

	// LockForUpdate acquires a pessimistic row lock for reconciliation
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Wallet, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	WalletID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for wallet: " + e.WalletID.String()
}

// ErrWalletNotFound indicates a missing wallet
type ErrWalletNotFound struct {
	WalletID uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found: " + e.WalletID.String()
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.WalletID == uuid.Nil {
		return true
	}
	return e.WalletID == t.WalletID
}
