package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/wallet"
	"github.com/paygrid-payments-engine/internal/platform/persistence"
)

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new wallet
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (id, business_id, balance, currency, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.BusinessID,
		w.Balance,
		w.Currency,
		w.Version,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create wallet", "business_id", w.BusinessID.String(), "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, business_id, balance, currency, version, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`

	w, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return w, nil
}

// GetByBusinessID retrieves the wallet owned by a business
func (r *WalletRepository) GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, business_id, balance, currency, version, created_at, updated_at
		FROM wallets
		WHERE business_id = $1
	`

	w, err := r.scanOne(r.querier.QueryRow(ctx, query, businessID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{}
		}
		r.logger.Error("Failed to get wallet by business", "business_id", businessID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet by business: %w", err)
	}

	return w, nil
}

// Update persists the wallet under optimistic locking against the previous
// version.
func (r *WalletRepository) Update(ctx context.Context, w *wallet.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = $1, currency = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`

	result, err := r.querier.Exec(ctx, query,
		w.Balance,
		w.Currency,
		w.Version,
		w.UpdatedAt,
		w.ID,
		w.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update wallet", "id", w.ID.String(), "error", err)
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return wallet.ErrConcurrentModification{WalletID: w.ID}
	}

	return nil
}

// AdjustBalance atomically applies a signed delta using optimistic locking.
// Returns ErrConcurrentModification if the wallet moved between read and
// update.
func (r *WalletRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, version int) error {
	query := `
		UPDATE wallets
		SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`

	result, err := r.querier.Exec(ctx, query, delta, id, version)
	if err != nil {
		r.logger.Error("Failed to adjust wallet balance", "id", id.String(), "error", err)
		return fmt.Errorf("failed to adjust wallet balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return wallet.ErrConcurrentModification{WalletID: id}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the wallet row and returns
// its current state. Use inside a transaction.
func (r *WalletRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, business_id, balance, currency, version, created_at, updated_at
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`

	w, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to lock wallet for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet for update: %w", err)
	}

	return w, nil
}

func (r *WalletRepository) scanOne(row pgx.Row) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(
		&w.ID,
		&w.BusinessID,
		&w.Balance,
		&w.Currency,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
