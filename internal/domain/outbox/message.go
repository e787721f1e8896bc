// Package outbox stores intended side effects durably, in the same
// database transaction that changes engine state. A dispatcher delivers
// them later: sync actions go to the message bus, job actions to the
// deferred worker pool. This keeps notifications from being lost between a
// state change and its publish.
package outbox

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

// Action prefixes route a message at dispatch time
const (
	ActionPrefixSync = "sync."
	ActionPrefixJob  = "job."
)

// Message stores one intended side effect for reliable delivery
type Message struct {
	ID            int64               `json:"id"`
	Reference     string              `json:"reference"` // owning transaction reference
	Action        string              `json:"action"`    // e.g. sync.transaction, job.settlement
	Type          string              `json:"type"`      // entity type carried in the payload
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage builds a pending outbox row carrying the given payload
func NewMessage(reference, action, entityType string, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Reference: reference,
		Action:    action,
		Type:      entityType,
		Payload:   body,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

// IsSync reports whether the message is destined for the message bus
func (m *Message) IsSync() bool {
	return strings.HasPrefix(m.Action, ActionPrefixSync)
}

// IsJob reports whether the message is destined for the deferred worker pool
func (m *Message) IsJob() bool {
	return strings.HasPrefix(m.Action, ActionPrefixJob)
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// SyncEnvelope is the wire shape published to the message bus
type SyncEnvelope struct {
	Action  string          `json:"action"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope renders the message as its bus wire shape
func (m *Message) Envelope() SyncEnvelope {
	return SyncEnvelope{
		Action:  m.Action,
		Type:    m.Type,
		Payload: m.Payload,
	}
}

// Key returns the partition key used when publishing: the transaction
// reference keeps ordering per reference, falling back to the row id.
func (m *Message) Key() string {
	if m.Reference != "" {
		return m.Reference
	}
	return strconv.FormatInt(m.ID, 10)
}
