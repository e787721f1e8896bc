// Package postgres provides PostgreSQL implementations of the domain
// repositories. Every write path that must be atomic with others exposes
// WithTx so the ledger can ride one transaction across repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/platform/persistence"
)

const uniqueViolationCode = "23505"

const transactionColumns = `
	id, reference, merchant_ref, provider_ref, provider,
	business_id, wallet_id, status, type, feature, channel,
	amount, fee, vat_fee, stamp_fee, revenue_amount, revenue_reversed,
	settle_status, settle_destination, settle_amount, settled_at,
	customer, bank, card, card_blob,
	linked_reference, refund_id, chargeback_id,
	webhook_enabled, webhook_event, provider_data,
	created_at, updated_at, completed_at`

// TransactionRepository implements transaction.Repository for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new transaction. A reference or merchant_ref collision
// surfaces as ErrDuplicateReference so callers can fall back to the
// existing row.
func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34)
	`

	_, err := r.querier.Exec(ctx, query, r.writeArgs(txn)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return transaction.ErrDuplicateReference{Reference: txn.Reference}
		}
		r.logger.Error("Failed to create transaction", "reference", txn.Reference, "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrNotFound{Reference: id.String()}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// GetByReference retrieves a transaction by its unique reference
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get transaction by reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get transaction by reference: %w", err)
	}

	return txn, nil
}

// GetByMerchantRef retrieves a transaction by the caller-supplied
// idempotency key. Returns nil, nil when no transaction carries the key.
func (r *TransactionRepository) GetByMerchantRef(ctx context.Context, merchantRef string) (*transaction.Transaction, error) {
	if merchantRef == "" {
		return nil, errors.New("merchant reference cannot be empty")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE merchant_ref = $1`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, merchantRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by merchant ref", "merchant_ref", merchantRef, "error", err)
		return nil, fmt.Errorf("failed to get transaction by merchant ref: %w", err)
	}

	return txn, nil
}

// Update persists the full transaction state
func (r *TransactionRepository) Update(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET provider_ref = $2, provider = $3, status = $4,
			fee = $5, vat_fee = $6, stamp_fee = $7,
			revenue_amount = $8, revenue_reversed = $9,
			settle_status = $10, settle_destination = $11, settle_amount = $12, settled_at = $13,
			customer = $14, bank = $15, card = $16, card_blob = $17,
			linked_reference = $18, refund_id = $19, chargeback_id = $20,
			webhook_enabled = $21, webhook_event = $22, provider_data = $23,
			updated_at = $24, completed_at = $25
		WHERE reference = $1
	`

	var card any
	var cardBlob []byte
	if txn.Card != nil {
		card = txn.Card
		cardBlob = txn.Card.EncryptedBlob
	}

	result, err := r.querier.Exec(ctx, query,
		txn.Reference,
		txn.ProviderRef,
		txn.Provider,
		txn.Status,
		txn.Fee,
		txn.VATFee,
		txn.StampFee,
		txn.Revenue.Amount,
		txn.Revenue.Reversed,
		txn.Settle.Status,
		txn.Settle.Destination,
		txn.Settle.Amount,
		txn.Settle.SettledAt,
		txn.Customer,
		txn.Bank,
		card,
		cardBlob,
		txn.LinkedReference,
		txn.RefundID,
		txn.ChargebackID,
		txn.WebhookEnabled,
		txn.WebhookEvent,
		txn.ProviderData,
		txn.UpdatedAt,
		txn.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update transaction", "reference", txn.Reference, "error", err)
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrNotFound{Reference: txn.Reference}
	}

	return nil
}

// ListByBusiness retrieves paginated transactions for a business, newest first
func (r *TransactionRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, businessID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transactions", "business_id", businessID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := r.scanOne(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return txns, nil
}

// CountByBusiness returns the total number of transactions for a business
func (r *TransactionRepository) CountByBusiness(ctx context.Context, businessID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE business_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, businessID).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "business_id", businessID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// Overview aggregates count and volume per status for a business
func (r *TransactionRepository) Overview(ctx context.Context, businessID uuid.UUID) ([]transaction.OverviewRow, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE business_id = $1
		GROUP BY status
	`

	rows, err := r.querier.Query(ctx, query, businessID)
	if err != nil {
		r.logger.Error("Failed to aggregate transactions", "business_id", businessID.String(), "error", err)
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	defer rows.Close()

	var out []transaction.OverviewRow
	for rows.Next() {
		var row transaction.OverviewRow
		if err := rows.Scan(&row.Status, &row.Count, &row.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan overview row: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over overview rows: %w", err)
	}

	return out, nil
}

// writeArgs flattens a transaction into the column order of transactionColumns
func (r *TransactionRepository) writeArgs(txn *transaction.Transaction) []any {
	var card any
	var cardBlob []byte
	if txn.Card != nil {
		card = txn.Card
		cardBlob = txn.Card.EncryptedBlob
	}

	return []any{
		txn.ID,
		txn.Reference,
		txn.MerchantRef,
		txn.ProviderRef,
		txn.Provider,
		txn.BusinessID,
		txn.WalletID,
		txn.Status,
		txn.Type,
		txn.Feature,
		txn.Channel,
		txn.Amount,
		txn.Fee,
		txn.VATFee,
		txn.StampFee,
		txn.Revenue.Amount,
		txn.Revenue.Reversed,
		txn.Settle.Status,
		txn.Settle.Destination,
		txn.Settle.Amount,
		txn.Settle.SettledAt,
		txn.Customer,
		txn.Bank,
		card,
		cardBlob,
		txn.LinkedReference,
		txn.RefundID,
		txn.ChargebackID,
		txn.WebhookEnabled,
		txn.WebhookEvent,
		txn.ProviderData,
		txn.CreatedAt,
		txn.UpdatedAt,
		txn.CompletedAt,
	}
}

// scanOne reads one row laid out as transactionColumns
func (r *TransactionRepository) scanOne(row pgx.Row) (*transaction.Transaction, error) {
	var (
		txn      transaction.Transaction
		status   string
		txnType  string
		feature  string
		channel  string
		settle   string
		card     *transaction.CardInfo
		cardBlob []byte
	)

	err := row.Scan(
		&txn.ID,
		&txn.Reference,
		&txn.MerchantRef,
		&txn.ProviderRef,
		&txn.Provider,
		&txn.BusinessID,
		&txn.WalletID,
		&status,
		&txnType,
		&feature,
		&channel,
		&txn.Amount,
		&txn.Fee,
		&txn.VATFee,
		&txn.StampFee,
		&txn.Revenue.Amount,
		&txn.Revenue.Reversed,
		&settle,
		&txn.Settle.Destination,
		&txn.Settle.Amount,
		&txn.Settle.SettledAt,
		&txn.Customer,
		&txn.Bank,
		&card,
		&cardBlob,
		&txn.LinkedReference,
		&txn.RefundID,
		&txn.ChargebackID,
		&txn.WebhookEnabled,
		&txn.WebhookEvent,
		&txn.ProviderData,
		&txn.CreatedAt,
		&txn.UpdatedAt,
		&txn.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Status = shared.Status(status)
	txn.Type = shared.Type(txnType)
	txn.Feature = shared.Feature(feature)
	txn.Channel = shared.Channel(channel)
	txn.Settle.Status = shared.SettleStatus(settle)
	if card != nil {
		card.EncryptedBlob = cardBlob
		txn.Card = card
	}

	return &txn, nil
}
