package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paygrid-payments-engine/internal/config"
	"github.com/paygrid-payments-engine/internal/domain/outbox"
	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/queue"
)

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByReference(ctx context.Context, reference string) ([]*outbox.Message, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository { return m }

// MockSyncPublisher for testing
type MockSyncPublisher struct {
	mock.Mock
}

func (m *MockSyncPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockSyncPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDLQPublisher for testing
type MockDLQPublisher struct {
	mock.Mock
}

func (m *MockDLQPublisher) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	args := m.Called(ctx, key, originalMessageValue, reason)
	return args.Error(0)
}

func (m *MockDLQPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testPollerConfig() *config.OutboxConfig {
	return &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}
}

func syncMessage(t *testing.T, id int64, attempts int) *outbox.Message {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"reference": "TXN_SYNC01"})
	require.NoError(t, err)
	return &outbox.Message{
		ID:        id,
		Reference: "TXN_SYNC01",
		Action:    ledger.ActionSyncTransaction,
		Type:      "transaction",
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  attempts,
		CreatedAt: time.Now(),
	}
}

func TestPoller_DispatchesSyncMessageToBus(t *testing.T) {
	mockRepo := &MockOutboxRepo{}
	mockPublisher := &MockSyncPublisher{}
	logger := slog.Default()
	ctx := context.Background()

	poller := NewPoller(testPollerConfig(), mockRepo, mockPublisher, nil, nil, logger)
	msg := syncMessage(t, 1, 0)

	mockRepo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	mockPublisher.On("Publish", ctx, msg.Reference, msg.Envelope()).Return(nil)
	mockRepo.On("UpdateStatus", ctx, int64(1), shared.OutboxStatusProcessed).Return(nil)

	err := poller.processPendingMessages(ctx)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestPoller_RunsJobMessageOnPool(t *testing.T) {
	mockRepo := &MockOutboxRepo{}
	logger := slog.Default()
	ctx := context.Background()

	jobPool, err := queue.NewPool(2, logger)
	require.NoError(t, err)
	defer jobPool.Release()

	ran := make(chan string, 1)
	jobPool.Register(ledger.ActionJobSettlement, func(ctx context.Context, msg *outbox.Message) error {
		ran <- msg.Reference
		return nil
	})

	poller := NewPoller(testPollerConfig(), mockRepo, &MockSyncPublisher{}, nil, jobPool, logger)

	msg := &outbox.Message{
		ID:        2,
		Reference: "TXN_JOB01",
		Action:    ledger.ActionJobSettlement,
		Type:      "settlement",
		Payload:   json.RawMessage(`{"reference":"TXN_JOB01"}`),
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now(),
	}

	mockRepo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	mockRepo.On("UpdateStatus", ctx, int64(2), shared.OutboxStatusProcessed).Return(nil)

	err = poller.processPendingMessages(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "TXN_JOB01", <-ran)
	mockRepo.AssertExpectations(t)
}

func TestPoller_RetriesFailedDispatch(t *testing.T) {
	mockRepo := &MockOutboxRepo{}
	mockPublisher := &MockSyncPublisher{}
	logger := slog.Default()
	ctx := context.Background()

	poller := NewPoller(testPollerConfig(), mockRepo, mockPublisher, nil, nil, logger)
	msg := syncMessage(t, 3, 0)

	mockRepo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	mockPublisher.On("Publish", ctx, msg.Reference, msg.Envelope()).Return(errors.New("broker down"))
	mockRepo.On("IncrementAttempts", ctx, int64(3)).Return(nil)

	err := poller.processPendingMessages(ctx)
	assert.NoError(t, err)

	// the row stays pending for the next tick
	mockRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestPoller_ExhaustedMessageGoesToDLQ(t *testing.T) {
	mockRepo := &MockOutboxRepo{}
	mockPublisher := &MockSyncPublisher{}
	mockDLQ := &MockDLQPublisher{}
	logger := slog.Default()
	ctx := context.Background()

	poller := NewPoller(testPollerConfig(), mockRepo, mockPublisher, mockDLQ, nil, logger)
	msg := syncMessage(t, 4, 2) // one more failure hits the cap of 3

	mockRepo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	mockPublisher.On("Publish", ctx, msg.Reference, msg.Envelope()).Return(errors.New("broker down"))
	mockRepo.On("IncrementAttempts", ctx, int64(4)).Return(nil)
	mockRepo.On("UpdateStatus", ctx, int64(4), shared.OutboxStatusFailedToPublish).Return(nil)
	mockDLQ.On("PublishToDLQ", ctx, msg.Reference, []byte(msg.Payload), "broker down").Return(nil)

	err := poller.processPendingMessages(ctx)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockDLQ.AssertExpectations(t)
}

func TestPoller_UnroutableActionCountsAsFailure(t *testing.T) {
	mockRepo := &MockOutboxRepo{}
	logger := slog.Default()
	ctx := context.Background()

	poller := NewPoller(testPollerConfig(), mockRepo, &MockSyncPublisher{}, nil, nil, logger)

	msg := syncMessage(t, 5, 0)
	msg.Action = "telemetry.flush"

	mockRepo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	mockRepo.On("IncrementAttempts", ctx, int64(5)).Return(nil)

	err := poller.processPendingMessages(ctx)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestPoller_EmptyBatchIsQuiet(t *testing.T) {
	mockRepo := &MockOutboxRepo{}
	ctx := context.Background()

	poller := NewPoller(testPollerConfig(), mockRepo, &MockSyncPublisher{}, nil, nil, slog.Default())

	mockRepo.On("GetPending", ctx, 10).Return([]*outbox.Message{}, nil)

	err := poller.processPendingMessages(ctx)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}
