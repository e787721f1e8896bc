package transaction

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()
	txn, err := New(uuid.New(), uuid.New(), shared.FeatureBankTransfer, shared.ChannelBankTransfer, shared.TypeCredit, decimal.NewFromInt(5000), "")
	require.NoError(t, err)
	return txn
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		feature shared.Feature
		from    shared.Status
		to      shared.Status
		allowed bool
	}{
		{"pending to processing", shared.FeatureBankTransfer, shared.StatusPending, shared.StatusProcessing, true},
		{"pending to successful", shared.FeatureBankTransfer, shared.StatusPending, shared.StatusSuccessful, true},
		{"pending to failed", shared.FeatureBankTransfer, shared.StatusPending, shared.StatusFailed, true},
		{"processing to successful", shared.FeatureBankTransfer, shared.StatusProcessing, shared.StatusSuccessful, true},
		{"processing to failed", shared.FeatureBankTransfer, shared.StatusProcessing, shared.StatusFailed, true},
		{"successful to refunded", shared.FeatureBankTransfer, shared.StatusSuccessful, shared.StatusRefunded, true},
		{"successful to failed", shared.FeatureBankTransfer, shared.StatusSuccessful, shared.StatusFailed, false},
		{"successful to pending", shared.FeatureBankTransfer, shared.StatusSuccessful, shared.StatusPending, false},
		{"failed to successful", shared.FeatureBankTransfer, shared.StatusFailed, shared.StatusSuccessful, false},
		{"failed to refunded", shared.FeatureBankTransfer, shared.StatusFailed, shared.StatusRefunded, false},
		{"refunded to anything", shared.FeatureBankTransfer, shared.StatusRefunded, shared.StatusSuccessful, false},
		{"same status replay", shared.FeatureBankTransfer, shared.StatusProcessing, shared.StatusProcessing, true},
		{"inflow cannot be cancelled", shared.FeatureBankTransfer, shared.StatusPending, shared.StatusCancelled, false},
		{"inflow cannot be completed", shared.FeatureBankTransfer, shared.StatusProcessing, shared.StatusCompleted, false},
		{"card charge cannot be cancelled", shared.FeaturePaymentLink, shared.StatusProcessing, shared.StatusCancelled, false},
		{"refund payout cannot be completed", shared.FeatureRefund, shared.StatusPending, shared.StatusCompleted, false},
		{"settlement can be cancelled", shared.FeatureSettlement, shared.StatusPending, shared.StatusCancelled, true},
		{"settlement can be completed", shared.FeatureSettlement, shared.StatusProcessing, shared.StatusCompleted, true},
		{"settlement cannot complete from failed", shared.FeatureSettlement, shared.StatusFailed, shared.StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.feature, tt.from, tt.to))
		})
	}
}

func TestTransition_StampsCompletedAt(t *testing.T) {
	txn := newTestTransaction(t)
	require.Nil(t, txn.CompletedAt)

	require.NoError(t, txn.Transition(shared.StatusProcessing))
	assert.Nil(t, txn.CompletedAt)

	require.NoError(t, txn.Transition(shared.StatusSuccessful))
	require.NotNil(t, txn.CompletedAt)
	first := *txn.CompletedAt

	// refunded keeps the original completion timestamp
	require.NoError(t, txn.Transition(shared.StatusRefunded))
	assert.Equal(t, first, *txn.CompletedAt)
}

func TestTransition_Replay(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.Transition(shared.StatusSuccessful))
	updated := txn.UpdatedAt

	assert.NoError(t, txn.Transition(shared.StatusSuccessful))
	assert.Equal(t, updated, txn.UpdatedAt)
}

func TestTransition_Illegal(t *testing.T) {
	txn := newTestTransaction(t)
	require.NoError(t, txn.Transition(shared.StatusFailed))

	err := txn.Transition(shared.StatusSuccessful)
	assert.ErrorIs(t, err, ErrInvalidTransition{})
}

func TestForceRefundFailedSettlement(t *testing.T) {
	t.Run("failed settlement moves to refunded", func(t *testing.T) {
		txn := newTestTransaction(t)
		txn.Feature = shared.FeatureSettlement
		require.NoError(t, txn.Transition(shared.StatusFailed))

		err := txn.ForceRefundFailedSettlement("TXN_RECOVERY")
		require.NoError(t, err)
		assert.Equal(t, shared.StatusRefunded, txn.Status)
		assert.Equal(t, "TXN_RECOVERY", txn.LinkedReference)
	})

	t.Run("rejects non-settlement features", func(t *testing.T) {
		txn := newTestTransaction(t)
		require.NoError(t, txn.Transition(shared.StatusFailed))

		err := txn.ForceRefundFailedSettlement("TXN_RECOVERY")
		assert.ErrorIs(t, err, ErrInvalidTransition{})
	})

	t.Run("rejects non-failed settlements", func(t *testing.T) {
		txn := newTestTransaction(t)
		txn.Feature = shared.FeatureSettlement
		require.NoError(t, txn.Transition(shared.StatusSuccessful))

		err := txn.ForceRefundFailedSettlement("TXN_RECOVERY")
		assert.ErrorIs(t, err, ErrInvalidTransition{})
	})

	t.Run("requires a linked reference", func(t *testing.T) {
		txn := newTestTransaction(t)
		txn.Feature = shared.FeatureSettlement
		require.NoError(t, txn.Transition(shared.StatusFailed))

		err := txn.ForceRefundFailedSettlement("")
		assert.ErrorIs(t, err, ErrMissingReference)
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(uuid.Nil, uuid.New(), shared.FeatureBankTransfer, shared.ChannelBankTransfer, shared.TypeCredit, decimal.NewFromInt(100), "")
	assert.ErrorIs(t, err, ErrMissingBusiness)

	_, err = New(uuid.New(), uuid.New(), shared.FeatureBankTransfer, shared.ChannelBankTransfer, shared.TypeCredit, decimal.Zero, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNew_DefaultsMerchantRef(t *testing.T) {
	txn := newTestTransaction(t)
	assert.NotEmpty(t, txn.MerchantRef)
	assert.Equal(t, shared.StatusPending, txn.Status)
	assert.Equal(t, shared.SettlePending, txn.Settle.Status)
}

func TestCreditsWallet(t *testing.T) {
	txn := newTestTransaction(t)
	assert.True(t, txn.CreditsWallet())

	txn.Type = shared.TypeDebit
	assert.False(t, txn.CreditsWallet())

	txn.Type = shared.TypeCredit
	txn.Feature = shared.FeatureVAS
	assert.False(t, txn.CreditsWallet())
}
