package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/providers"
)

func settledInflow(t *testing.T) (*Service, *serviceMocks, *transaction.Transaction) {
	t.Helper()
	svc, m := newTestService(t)
	biz := testBusiness()
	w := testWallet(biz.ID)
	require.NoError(t, w.Credit(decimal.NewFromInt(20000)))

	inflow := bankInflow(biz, w, 20000)
	inflow.Settle.Amount = decimal.NewFromInt(19785)
	require.NoError(t, inflow.Transition(shared.StatusSuccessful))

	m.txns.On("GetByReference", mock.Anything, inflow.Reference).Return(inflow, nil)
	m.businesses.On("GetByID", mock.Anything, biz.ID).Return(biz, nil)
	m.wallets.On("LockForUpdate", mock.Anything, w.ID).Return(w, nil)
	return svc, m, inflow
}

func TestCreateSettlement_OpensPayoutAndPinsInflow(t *testing.T) {
	svc, m, inflow := settledInflow(t)
	ctx := context.Background()

	m.wallets.On("AdjustBalance", mock.Anything, inflow.WalletID, decimal.NewFromInt(19785).Neg(), mock.Anything).Return(nil)
	m.txns.On("Create", ctx, mock.AnythingOfType("*transaction.Transaction")).Return(nil)
	m.txns.On("Update", ctx, inflow).Return(nil)
	m.outbox.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil)

	payout, err := svc.CreateSettlement(ctx, inflow.Reference, provider.NameProvidus)
	require.NoError(t, err)

	assert.Equal(t, shared.FeatureSettlement, payout.Feature)
	assert.Equal(t, shared.TypeDebit, payout.Type)
	assert.True(t, payout.Amount.Equal(decimal.NewFromInt(19785)))
	assert.Equal(t, inflow.Reference, payout.LinkedReference)
	assert.Equal(t, provider.NameProvidus, payout.Provider)
	require.NotNil(t, payout.Bank)
	assert.Equal(t, "0123456789", payout.Bank.AccountNumber)

	assert.Equal(t, shared.SettleProcessing, inflow.Settle.Status)
	assert.Equal(t, "0123456789", inflow.Settle.Destination)
}

func TestCreateSettlement_RejectsSecondRun(t *testing.T) {
	svc, _, inflow := settledInflow(t)
	inflow.Settle.Status = shared.SettleProcessing

	_, err := svc.CreateSettlement(context.Background(), inflow.Reference, provider.NameProvidus)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateSettlement_RetriesFailedRun(t *testing.T) {
	svc, m, inflow := settledInflow(t)
	ctx := context.Background()
	inflow.Settle.Status = shared.SettleFailed

	m.wallets.On("AdjustBalance", mock.Anything, inflow.WalletID, decimal.NewFromInt(19785).Neg(), mock.Anything).Return(nil)
	m.txns.On("Create", ctx, mock.AnythingOfType("*transaction.Transaction")).Return(nil)
	m.txns.On("Update", ctx, inflow).Return(nil)
	m.outbox.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil)

	_, err := svc.CreateSettlement(ctx, inflow.Reference, provider.NameProvidus)
	require.NoError(t, err)
	assert.Equal(t, shared.SettleProcessing, inflow.Settle.Status)
}

func TestSettlement_FailureReturnsDebitBeforeRetry(t *testing.T) {
	svc, m, inflow := settledInflow(t)
	ctx := context.Background()

	m.wallets.On("AdjustBalance", mock.Anything, inflow.WalletID, mock.Anything, mock.Anything).Return(nil)
	m.txns.On("Create", ctx, mock.AnythingOfType("*transaction.Transaction")).Return(nil)
	m.txns.On("Update", ctx, mock.AnythingOfType("*transaction.Transaction")).Return(nil)
	m.outbox.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil)

	payout, err := svc.CreateSettlement(ctx, inflow.Reference, provider.NameProvidus)
	require.NoError(t, err)

	m.txns.On("GetByReference", mock.Anything, payout.Reference).Return(payout, nil)
	_, err = svc.ApplyEvent(ctx, providers.Event{
		Provider:  provider.NameProvidus,
		Reference: payout.Reference,
		Status:    shared.StatusFailed,
		Amount:    payout.Amount,
	})
	require.NoError(t, err)
	require.Equal(t, shared.SettleFailed, inflow.Settle.Status)

	_, err = svc.CreateSettlement(ctx, inflow.Reference, provider.NameProvidus)
	require.NoError(t, err)

	// debit, refund of the debit, debit again: one settlement's worth out
	net := decimal.Zero
	for _, c := range m.wallets.Calls {
		if c.Method == "AdjustBalance" {
			net = net.Add(c.Arguments.Get(2).(decimal.Decimal))
		}
	}
	assert.True(t, net.Equal(decimal.NewFromInt(19785).Neg()), "net=%s", net)
}

func TestCreateSettlement_RejectsUncoveredWallet(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()
	biz := testBusiness()
	w := testWallet(biz.ID) // zero balance

	inflow := bankInflow(biz, w, 20000)
	inflow.Settle.Amount = decimal.NewFromInt(19785)
	require.NoError(t, inflow.Transition(shared.StatusSuccessful))

	m.txns.On("GetByReference", ctx, inflow.Reference).Return(inflow, nil)
	m.businesses.On("GetByID", ctx, biz.ID).Return(biz, nil)
	m.wallets.On("LockForUpdate", ctx, w.ID).Return(w, nil)

	_, err := svc.CreateSettlement(ctx, inflow.Reference, provider.NameProvidus)
	assert.ErrorIs(t, err, ErrConsistency)
	m.txns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateSettlement_RejectsMissingSettlementAccount(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()
	biz := testBusiness()
	biz.SettlementAcct = ""
	w := testWallet(biz.ID)

	inflow := bankInflow(biz, w, 20000)
	inflow.Settle.Amount = decimal.NewFromInt(19785)
	require.NoError(t, inflow.Transition(shared.StatusSuccessful))

	m.txns.On("GetByReference", ctx, inflow.Reference).Return(inflow, nil)
	m.businesses.On("GetByID", ctx, biz.ID).Return(biz, nil)

	_, err := svc.CreateSettlement(ctx, inflow.Reference, provider.NameProvidus)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReconcileFailedSettlement_TakesTheSanctionedTransition(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()
	biz := testBusiness()
	w := testWallet(biz.ID)

	failed, err := transaction.New(biz.ID, w.ID, shared.FeatureSettlement, shared.ChannelBankTransfer, shared.TypeDebit, decimal.NewFromInt(19785), "")
	require.NoError(t, err)
	require.NoError(t, failed.Transition(shared.StatusFailed))

	recovery, err := transaction.New(biz.ID, w.ID, shared.FeatureBankTransfer, shared.ChannelBankTransfer, shared.TypeDebit, decimal.NewFromInt(19785), "")
	require.NoError(t, err)
	require.NoError(t, recovery.Transition(shared.StatusSuccessful))

	m.txns.On("GetByReference", ctx, failed.Reference).Return(failed, nil)
	m.txns.On("GetByReference", ctx, recovery.Reference).Return(recovery, nil)
	m.txns.On("Update", ctx, failed).Return(nil)
	m.outbox.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil)

	got, err := svc.ReconcileFailedSettlement(ctx, failed.Reference, recovery.Reference)
	require.NoError(t, err)

	assert.Equal(t, shared.StatusRefunded, got.Status)
	assert.Equal(t, recovery.Reference, got.LinkedReference)
	m.txns.AssertExpectations(t)
}

func TestReconcileFailedSettlement_RejectsPendingRecovery(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()
	biz := testBusiness()
	w := testWallet(biz.ID)

	failed, err := transaction.New(biz.ID, w.ID, shared.FeatureSettlement, shared.ChannelBankTransfer, shared.TypeDebit, decimal.NewFromInt(19785), "")
	require.NoError(t, err)
	require.NoError(t, failed.Transition(shared.StatusFailed))

	recovery, err := transaction.New(biz.ID, w.ID, shared.FeatureBankTransfer, shared.ChannelBankTransfer, shared.TypeDebit, decimal.NewFromInt(19785), "")
	require.NoError(t, err)

	m.txns.On("GetByReference", ctx, failed.Reference).Return(failed, nil)
	m.txns.On("GetByReference", ctx, recovery.Reference).Return(recovery, nil)

	_, err = svc.ReconcileFailedSettlement(ctx, failed.Reference, recovery.Reference)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, shared.StatusFailed, failed.Status)
}

func TestReconcileFailedSettlement_RejectsAmountMismatch(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()
	biz := testBusiness()
	w := testWallet(biz.ID)

	failed, err := transaction.New(biz.ID, w.ID, shared.FeatureSettlement, shared.ChannelBankTransfer, shared.TypeDebit, decimal.NewFromInt(19785), "")
	require.NoError(t, err)
	require.NoError(t, failed.Transition(shared.StatusFailed))

	recovery, err := transaction.New(biz.ID, w.ID, shared.FeatureBankTransfer, shared.ChannelBankTransfer, shared.TypeDebit, decimal.NewFromInt(19000), "")
	require.NoError(t, err)
	require.NoError(t, recovery.Transition(shared.StatusSuccessful))

	m.txns.On("GetByReference", ctx, failed.Reference).Return(failed, nil)
	m.txns.On("GetByReference", ctx, recovery.Reference).Return(recovery, nil)

	_, err = svc.ReconcileFailedSettlement(ctx, failed.Reference, recovery.Reference)
	assert.ErrorIs(t, err, ErrConsistency)
}
