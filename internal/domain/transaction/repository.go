package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

// OverviewRow is one aggregate bucket of the business overview query
type OverviewRow struct {
	Status shared.Status
	Count  int64
	Volume decimal.Decimal
}

// Repository defines transaction persistence operations
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	// GetByMerchantRef returns nil, nil when no transaction carries the key,
	// enabling idempotent creation.
	GetByMerchantRef(ctx context.Context, merchantRef string) (*Transaction, error)

	Update(ctx context.Context, txn *Transaction) error
	ListByBusiness(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByBusiness(ctx context.Context, businessID uuid.UUID) (int64, error)

	// Overview aggregates count and volume per status for a business
	Overview(ctx context.Context, businessID uuid.UUID) ([]OverviewRow, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing transaction
type ErrNotFound struct {
	Reference string
}

func (e ErrNotFound) Error() string {
	return "transaction not found: " + e.Reference
}

// Is implements the errors.Is interface for ErrNotFound
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	// An empty target reference matches any ErrNotFound
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}

// ErrDuplicateReference indicates a reference uniqueness violation
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate transaction reference: " + e.Reference
}

// Is implements the errors.Is interface for ErrDuplicateReference
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}
