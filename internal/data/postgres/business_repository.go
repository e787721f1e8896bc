package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paygrid-payments-engine/internal/domain/business"
	"github.com/paygrid-payments-engine/internal/platform/persistence"
)

// BusinessRepository implements the business.Repository interface for PostgreSQL
type BusinessRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBusinessRepository creates a new PostgreSQL business repository
func NewBusinessRepository(logger *slog.Logger, db *persistence.PostgresDB) business.Repository {
	return &BusinessRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *BusinessRepository) WithTx(tx pgx.Tx) business.Repository {
	return &BusinessRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new business
func (r *BusinessRepository) Create(ctx context.Context, b *business.Business) error {
	query := `
		INSERT INTO businesses (id, name, email, virtual_account, webhook_url, settlement_bank, settlement_acct, fee_settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		b.ID,
		b.Name,
		b.Email,
		b.VirtualAccount,
		b.WebhookURL,
		b.SettlementBank,
		b.SettlementAcct,
		b.FeeSettings,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create business", "name", b.Name, "error", err)
		return fmt.Errorf("failed to create business: %w", err)
	}

	return nil
}

// GetByID retrieves a business by its ID
func (r *BusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	query := `
		SELECT id, name, email, virtual_account, webhook_url, settlement_bank, settlement_acct, fee_settings, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`

	b, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, business.ErrBusinessNotFound{BusinessID: id}
		}
		r.logger.Error("Failed to get business", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	return b, nil
}

// GetByEmail retrieves a business by its contact email
func (r *BusinessRepository) GetByEmail(ctx context.Context, email string) (*business.Business, error) {
	query := `
		SELECT id, name, email, virtual_account, webhook_url, settlement_bank, settlement_acct, fee_settings, created_at, updated_at
		FROM businesses
		WHERE email = $1
	`

	b, err := r.scanOne(r.querier.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, business.ErrBusinessNotFound{}
		}
		r.logger.Error("Failed to get business by email", "email", email, "error", err)
		return nil, fmt.Errorf("failed to get business by email: %w", err)
	}

	return b, nil
}

// GetByVirtualAccount retrieves the business owning a collection account
func (r *BusinessRepository) GetByVirtualAccount(ctx context.Context, accountNumber string) (*business.Business, error) {
	query := `
		SELECT id, name, email, virtual_account, webhook_url, settlement_bank, settlement_acct, fee_settings, created_at, updated_at
		FROM businesses
		WHERE virtual_account = $1
	`

	b, err := r.scanOne(r.querier.QueryRow(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, business.ErrBusinessNotFound{}
		}
		r.logger.Error("Failed to get business by virtual account", "account", accountNumber, "error", err)
		return nil, fmt.Errorf("failed to get business by virtual account: %w", err)
	}

	return b, nil
}

func (r *BusinessRepository) scanOne(row pgx.Row) (*business.Business, error) {
	var b business.Business
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Email,
		&b.VirtualAccount,
		&b.WebhookURL,
		&b.SettlementBank,
		&b.SettlementAcct,
		&b.FeeSettings,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
