package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid-payments-engine/internal/domain/wallet"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestWalletRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}

	w := &wallet.Wallet{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		Balance:    decimal.Zero,
		Currency:   "NGN",
		Version:    1,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	query := `
		INSERT INTO wallets \(id, business_id, balance, currency, version, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.ID, w.BusinessID, w.Balance, w.Currency, w.Version, w.CreatedAt, w.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, w)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(w.ID, w.BusinessID, w.Balance, w.Currency, w.Version, w.CreatedAt, w.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, w)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create wallet")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_GetByBusinessID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	businessID := uuid.New()
	now := time.Now()

	expected := &wallet.Wallet{
		ID:         uuid.New(),
		BusinessID: businessID,
		Balance:    decimal.NewFromInt(15000),
		Currency:   "NGN",
		Version:    3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	query := `
		SELECT id, business_id, balance, currency, version, created_at, updated_at
		FROM wallets
		WHERE business_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "business_id", "balance", "currency", "version", "created_at", "updated_at"}).
			AddRow(expected.ID, expected.BusinessID, expected.Balance, expected.Currency, expected.Version, expected.CreatedAt, expected.UpdatedAt)
		mock.ExpectQuery(query).WithArgs(businessID).WillReturnRows(rows)

		w, err := repo.GetByBusinessID(ctx, businessID)
		assert.NoError(t, err)
		assert.Equal(t, expected, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(businessID).WillReturnError(pgx.ErrNoRows)

		w, err := repo.GetByBusinessID(ctx, businessID)
		assert.Error(t, err)
		assert.Nil(t, w)
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	walletID := uuid.New()
	delta := decimal.NewFromInt(5000).Neg()

	query := `
		UPDATE wallets
		SET balance = balance \+ \$1, version = version \+ 1, updated_at = NOW\(\)
		WHERE id = \$2 AND version = \$3
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(delta, walletID, 4).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.AdjustBalance(ctx, walletID, delta, 4)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(delta, walletID, 4).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.AdjustBalance(ctx, walletID, delta, 4)
		assert.Error(t, err)
		var concurrentErr wallet.ErrConcurrentModification
		assert.ErrorAs(t, err, &concurrentErr)
		assert.Equal(t, walletID, concurrentErr.WalletID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_Update(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}

	w := &wallet.Wallet{
		ID:        uuid.New(),
		Balance:   decimal.NewFromInt(19785),
		Currency:  "NGN",
		Version:   2,
		UpdatedAt: time.Now(),
	}

	query := `
		UPDATE wallets
		SET balance = \$1, currency = \$2, version = \$3, updated_at = \$4
		WHERE id = \$5 AND version = \$6
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.Balance, w.Currency, w.Version, w.UpdatedAt, w.ID, w.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, w)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent modification", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.Balance, w.Currency, w.Version, w.UpdatedAt, w.ID, w.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, w)
		var concurrentErr wallet.ErrConcurrentModification
		assert.ErrorAs(t, err, &concurrentErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	walletID := uuid.New()
	now := time.Now()

	query := `
		SELECT id, business_id, balance, currency, version, created_at, updated_at
		FROM wallets
		WHERE id = \$1
		FOR UPDATE
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "business_id", "balance", "currency", "version", "created_at", "updated_at"}).
			AddRow(walletID, uuid.New(), decimal.NewFromInt(100), "NGN", 1, now, now)
		mock.ExpectQuery(query).WithArgs(walletID).WillReturnRows(rows)

		w, err := repo.LockForUpdate(ctx, walletID)
		assert.NoError(t, err)
		assert.Equal(t, walletID, w.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(walletID).WillReturnError(pgx.ErrNoRows)

		_, err := repo.LockForUpdate(ctx, walletID)
		var notFoundErr wallet.ErrWalletNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, walletID, notFoundErr.WalletID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
