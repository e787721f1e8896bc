package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paygrid-payments-engine/internal/domain/refund"
	"github.com/paygrid-payments-engine/internal/platform/persistence"
)

// RefundRepository implements the refund.Repository interface for
// PostgreSQL, covering both refund and chargeback claims.
type RefundRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRefundRepository creates a new PostgreSQL claim repository
func NewRefundRepository(logger *slog.Logger, db *persistence.PostgresDB) refund.Repository {
	return &RefundRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *RefundRepository) WithTx(tx pgx.Tx) refund.Repository {
	return &RefundRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateRefund stores a new refund claim
func (r *RefundRepository) CreateRefund(ctx context.Context, claim *refund.Refund) error {
	query := `
		INSERT INTO refunds (id, business_id, transaction_ref, payout_ref, amount, reason, status, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		claim.ID,
		claim.BusinessID,
		claim.Transaction,
		claim.RefundedTxn,
		claim.Amount,
		claim.Reason,
		claim.Status,
		claim.PaidAt,
		claim.CreatedAt,
		claim.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create refund", "id", claim.ID.String(), "error", err)
		return fmt.Errorf("failed to create refund: %w", err)
	}

	return nil
}

// GetRefund retrieves a refund claim by its ID
func (r *RefundRepository) GetRefund(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	query := `
		SELECT id, business_id, transaction_ref, payout_ref, amount, reason, status, paid_at, created_at, updated_at
		FROM refunds
		WHERE id = $1
	`
	return r.scanRefund(r.querier.QueryRow(ctx, query, id), id)
}

// GetRefundByPayoutRef retrieves the refund claim owning a payout transaction
func (r *RefundRepository) GetRefundByPayoutRef(ctx context.Context, payoutRef string) (*refund.Refund, error) {
	query := `
		SELECT id, business_id, transaction_ref, payout_ref, amount, reason, status, paid_at, created_at, updated_at
		FROM refunds
		WHERE payout_ref = $1
	`
	return r.scanRefund(r.querier.QueryRow(ctx, query, payoutRef), uuid.Nil)
}

// UpdateRefund persists a refund claim's mutable state
func (r *RefundRepository) UpdateRefund(ctx context.Context, claim *refund.Refund) error {
	query := `
		UPDATE refunds
		SET payout_ref = $1, status = $2, paid_at = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query,
		claim.RefundedTxn,
		claim.Status,
		claim.PaidAt,
		claim.UpdatedAt,
		claim.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update refund", "id", claim.ID.String(), "error", err)
		return fmt.Errorf("failed to update refund: %w", err)
	}

	if result.RowsAffected() == 0 {
		return refund.ErrClaimNotFound{ID: claim.ID}
	}

	return nil
}

// CreateChargeback stores a new chargeback claim
func (r *RefundRepository) CreateChargeback(ctx context.Context, claim *refund.Chargeback) error {
	query := `
		INSERT INTO chargebacks (id, business_id, transaction_ref, payout_ref, amount, reason, status, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		claim.ID,
		claim.BusinessID,
		claim.Transaction,
		claim.ChargedTxn,
		claim.Amount,
		claim.Reason,
		claim.Status,
		claim.PaidAt,
		claim.CreatedAt,
		claim.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create chargeback", "id", claim.ID.String(), "error", err)
		return fmt.Errorf("failed to create chargeback: %w", err)
	}

	return nil
}

// GetChargeback retrieves a chargeback claim by its ID
func (r *RefundRepository) GetChargeback(ctx context.Context, id uuid.UUID) (*refund.Chargeback, error) {
	query := `
		SELECT id, business_id, transaction_ref, payout_ref, amount, reason, status, paid_at, created_at, updated_at
		FROM chargebacks
		WHERE id = $1
	`
	return r.scanChargeback(r.querier.QueryRow(ctx, query, id), id)
}

// GetChargebackByPayoutRef retrieves the chargeback claim owning a payout
// transaction.
func (r *RefundRepository) GetChargebackByPayoutRef(ctx context.Context, payoutRef string) (*refund.Chargeback, error) {
	query := `
		SELECT id, business_id, transaction_ref, payout_ref, amount, reason, status, paid_at, created_at, updated_at
		FROM chargebacks
		WHERE payout_ref = $1
	`
	return r.scanChargeback(r.querier.QueryRow(ctx, query, payoutRef), uuid.Nil)
}

// UpdateChargeback persists a chargeback claim's mutable state
func (r *RefundRepository) UpdateChargeback(ctx context.Context, claim *refund.Chargeback) error {
	query := `
		UPDATE chargebacks
		SET payout_ref = $1, status = $2, paid_at = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query,
		claim.ChargedTxn,
		claim.Status,
		claim.PaidAt,
		claim.UpdatedAt,
		claim.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update chargeback", "id", claim.ID.String(), "error", err)
		return fmt.Errorf("failed to update chargeback: %w", err)
	}

	if result.RowsAffected() == 0 {
		return refund.ErrClaimNotFound{ID: claim.ID}
	}

	return nil
}

func (r *RefundRepository) scanRefund(row pgx.Row, id uuid.UUID) (*refund.Refund, error) {
	var claim refund.Refund
	err := row.Scan(
		&claim.ID,
		&claim.BusinessID,
		&claim.Transaction,
		&claim.RefundedTxn,
		&claim.Amount,
		&claim.Reason,
		&claim.Status,
		&claim.PaidAt,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refund.ErrClaimNotFound{ID: id}
		}
		r.logger.Error("Failed to get refund", "error", err)
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return &claim, nil
}

func (r *RefundRepository) scanChargeback(row pgx.Row, id uuid.UUID) (*refund.Chargeback, error) {
	var claim refund.Chargeback
	err := row.Scan(
		&claim.ID,
		&claim.BusinessID,
		&claim.Transaction,
		&claim.ChargedTxn,
		&claim.Amount,
		&claim.Reason,
		&claim.Status,
		&claim.PaidAt,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refund.ErrClaimNotFound{ID: id}
		}
		r.logger.Error("Failed to get chargeback", "error", err)
		return nil, fmt.Errorf("failed to get chargeback: %w", err)
	}
	return &claim, nil
}
