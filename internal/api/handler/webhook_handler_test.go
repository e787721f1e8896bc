package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/providers"
	"github.com/paygrid-payments-engine/internal/reconciler"
)

type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) ApplyEvent(ctx context.Context, ev providers.Event) (*ledger.ApplyResult, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ApplyResult), args.Error(1)
}

func newWebhookRouter(t *testing.T) (*gin.Engine, *MockApplier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	applier := new(MockApplier)
	rec := reconciler.New(applier, reconciler.NewLocker(client, time.Minute), nil, logger)
	h := NewWebhookHandler(logger, rec)

	router := gin.New()
	router.POST("/webhooks/:provider", h.Receive)
	return router, applier
}

func postWebhook(router *gin.Engine, providerName string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/"+providerName, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandler_Receive(t *testing.T) {
	delivery := []byte(`{
		"paymentReference": "TXN_HOOK01",
		"transactionReference": "MNFY|2026|000551",
		"paymentStatus": "PAID",
		"amountPaid": 12000,
		"destinationAccountNumber": "8012345678"
	}`)

	t.Run("AppliedDeliveryIsAcked", func(t *testing.T) {
		router, applier := newWebhookRouter(t)

		txn := &transaction.Transaction{Reference: "TXN_HOOK01", Status: shared.StatusSuccessful}
		applier.On("ApplyEvent", mock.Anything, mock.MatchedBy(func(ev providers.Event) bool {
			return ev.Reference == "TXN_HOOK01" && ev.Amount.Equal(decimal.NewFromInt(12000))
		})).Return(&ledger.ApplyResult{Transaction: txn, Applied: true}, nil)

		rr := postWebhook(router, "monnify", delivery)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "TXN_HOOK01", data["reference"])
		assert.Equal(t, "applied", data["outcome"])
		applier.AssertExpectations(t)
	})

	t.Run("ReplayedDeliveryIsAcked", func(t *testing.T) {
		router, applier := newWebhookRouter(t)

		txn := &transaction.Transaction{Reference: "TXN_HOOK01", Status: shared.StatusSuccessful}
		applier.On("ApplyEvent", mock.Anything, mock.Anything).
			Return(&ledger.ApplyResult{Transaction: txn, Applied: false}, nil)

		rr := postWebhook(router, "monnify", delivery)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "replayed", data["outcome"])
	})

	t.Run("UndecodablePayloadIsAcked", func(t *testing.T) {
		router, applier := newWebhookRouter(t)

		rr := postWebhook(router, "monnify", []byte(`not json at all`))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "rejected", data["outcome"])
		applier.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
	})

	t.Run("TransientFailureAsksProviderToRetry", func(t *testing.T) {
		router, applier := newWebhookRouter(t)

		applier.On("ApplyEvent", mock.Anything, mock.Anything).
			Return(nil, assert.AnError)

		rr := postWebhook(router, "monnify", delivery)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "RETRY_LATER", resp.Error.Code)
	})
}
