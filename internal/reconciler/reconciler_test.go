package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/providers"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ApplyEvent(ctx context.Context, ev providers.Event) (*ledger.ApplyResult, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ApplyResult), args.Error(1)
}

func newTestReconciler(t *testing.T) (*Reconciler, *MockLedger, *Locker) {
	t.Helper()
	ml := &MockLedger{}
	locker, _ := newTestLocker(t, time.Minute)
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return New(ml, locker, nil, log), ml, locker
}

func monnifyDelivery(reference string) []byte {
	return []byte(fmt.Sprintf(`{
		"paymentReference": %q,
		"transactionReference": "MNFY|2026|000777",
		"paymentStatus": "PAID",
		"amountPaid": 20000,
		"destinationAccountNumber": "8012345678"
	}`, reference))
}

func TestApplyWebhook_AppliesDelivery(t *testing.T) {
	rec, ml, _ := newTestReconciler(t)
	ctx := context.Background()

	txn := &transaction.Transaction{Reference: "TXN_OK", Status: shared.StatusSuccessful}
	ml.On("ApplyEvent", mock.Anything, mock.MatchedBy(func(ev providers.Event) bool {
		return ev.Reference == "TXN_OK" &&
			ev.Status == shared.StatusSuccessful &&
			ev.Amount.Equal(decimal.NewFromInt(20000))
	})).Return(&ledger.ApplyResult{Transaction: txn, Applied: true}, nil)

	res, err := rec.ApplyWebhook(ctx, "monnify", monnifyDelivery("TXN_OK"))
	require.NoError(t, err)

	assert.Equal(t, "TXN_OK", res.Reference)
	assert.Equal(t, "applied", res.Outcome)
	assert.True(t, res.Applied)
	ml.AssertExpectations(t)
}

func TestApplyWebhook_ReplayIsAcked(t *testing.T) {
	rec, ml, _ := newTestReconciler(t)

	txn := &transaction.Transaction{Reference: "TXN_DUP", Status: shared.StatusSuccessful}
	ml.On("ApplyEvent", mock.Anything, mock.Anything).
		Return(&ledger.ApplyResult{Transaction: txn, Applied: false}, nil)

	res, err := rec.ApplyWebhook(context.Background(), "monnify", monnifyDelivery("TXN_DUP"))
	require.NoError(t, err)

	assert.Equal(t, "replayed", res.Outcome)
	assert.False(t, res.Applied)
}

func TestApplyWebhook_UndecodablePayloadIsAcked(t *testing.T) {
	rec, ml, _ := newTestReconciler(t)

	res, err := rec.ApplyWebhook(context.Background(), "monnify", []byte(`{broken`))
	require.NoError(t, err)

	assert.Equal(t, "rejected", res.Outcome)
	ml.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}

func TestApplyWebhook_UnknownProviderIsAcked(t *testing.T) {
	rec, ml, _ := newTestReconciler(t)

	res, err := rec.ApplyWebhook(context.Background(), "nosuchrail", []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "rejected", res.Outcome)
	ml.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}

func TestApplyWebhook_ConsistencyRejectionIsAcked(t *testing.T) {
	rec, ml, _ := newTestReconciler(t)

	ml.On("ApplyEvent", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: amounts disagree", ledger.ErrConsistency))

	res, err := rec.ApplyWebhook(context.Background(), "monnify", monnifyDelivery("TXN_BAD"))
	require.NoError(t, err)

	assert.Equal(t, "rejected", res.Outcome)
	assert.False(t, res.Applied)
}

func TestApplyWebhook_TransientFailureAsksForRetry(t *testing.T) {
	rec, ml, _ := newTestReconciler(t)

	ml.On("ApplyEvent", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("connection reset"))

	_, err := rec.ApplyWebhook(context.Background(), "monnify", monnifyDelivery("TXN_DOWN"))
	assert.Error(t, err)
}

func TestApplyWebhook_HeldLockAsksForRetry(t *testing.T) {
	rec, ml, locker := newTestReconciler(t)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, "TXN_BUSY", "other-delivery"))

	_, err := rec.ApplyWebhook(ctx, "monnify", monnifyDelivery("TXN_BUSY"))
	assert.ErrorIs(t, err, ErrLockHeld)
	ml.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}

func TestApplyWebhook_ReleasesLockAfterCommit(t *testing.T) {
	rec, ml, locker := newTestReconciler(t)
	ctx := context.Background()

	txn := &transaction.Transaction{Reference: "TXN_FREE", Status: shared.StatusSuccessful}
	ml.On("ApplyEvent", mock.Anything, mock.Anything).
		Return(&ledger.ApplyResult{Transaction: txn, Applied: true}, nil)

	_, err := rec.ApplyWebhook(ctx, "monnify", monnifyDelivery("TXN_FREE"))
	require.NoError(t, err)

	// the lease must be gone so the next delivery can proceed
	assert.NoError(t, locker.Acquire(ctx, "TXN_FREE", "next-delivery"))
}
