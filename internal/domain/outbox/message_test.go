package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage("TXN_MSG01", "sync.transaction", "transaction", map[string]string{"reference": "TXN_MSG01"})
	require.NoError(t, err)

	assert.Equal(t, "TXN_MSG01", msg.Reference)
	assert.Equal(t, "sync.transaction", msg.Action)
	assert.Equal(t, "transaction", msg.Type)
	assert.JSONEq(t, `{"reference":"TXN_MSG01"}`, string(msg.Payload))
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Zero(t, msg.Attempts)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Nil(t, msg.LastAttemptAt)
}

func TestNewMessage_UnmarshalablePayload(t *testing.T) {
	_, err := NewMessage("TXN_MSG01", "sync.transaction", "transaction", make(chan int))
	assert.Error(t, err)
}

func TestMessage_Routing(t *testing.T) {
	sync := &Message{Action: "sync.transaction"}
	assert.True(t, sync.IsSync())
	assert.False(t, sync.IsJob())

	job := &Message{Action: "job.settlement"}
	assert.True(t, job.IsJob())
	assert.False(t, job.IsSync())

	neither := &Message{Action: "telemetry.flush"}
	assert.False(t, neither.IsSync())
	assert.False(t, neither.IsJob())
}

func TestMessage_Key(t *testing.T) {
	withRef := &Message{ID: 7, Reference: "TXN_MSG01"}
	assert.Equal(t, "TXN_MSG01", withRef.Key())

	withoutRef := &Message{ID: 7}
	assert.Equal(t, "7", withoutRef.Key())
}

func TestMessage_Lifecycle(t *testing.T) {
	msg := &Message{Status: shared.OutboxStatusPending}

	msg.IncrementAttempts()
	assert.Equal(t, 1, msg.Attempts)
	require.NotNil(t, msg.LastAttemptAt)

	msg.MarkAsProcessed()
	assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)

	msg.MarkAsFailed()
	assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
}

func TestMessage_Envelope(t *testing.T) {
	msg, err := NewMessage("TXN_MSG01", "sync.transaction", "transaction", map[string]string{"k": "v"})
	require.NoError(t, err)

	env := msg.Envelope()
	assert.Equal(t, msg.Action, env.Action)
	assert.Equal(t, msg.Type, env.Type)
	assert.Equal(t, msg.Payload, env.Payload)
}
