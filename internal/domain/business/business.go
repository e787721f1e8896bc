// Package business holds the merchant tenant record the engine needs:
// identity, contact email (also the card-vault key material for
// business-scoped blobs) and the settlement destination.
package business

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paygrid-payments-engine/internal/domain/provider"
)

var ErrEmptyName = errors.New("business name cannot be empty")

// Business is a merchant tenant on the platform. VirtualAccount is the
// dedicated collection account a bank rail assigns the tenant; inbound
// transfer webhooks resolve to a business through it. FeeSettings carries
// negotiated per-merchant overrides; nil means the standard schedule.
type Business struct {
	ID             uuid.UUID                  `json:"id"`
	Name           string                     `json:"name"`
	Email          string                     `json:"email"`
	VirtualAccount string                     `json:"virtual_account,omitempty"`
	WebhookURL     string                     `json:"webhook_url,omitempty"`
	SettlementBank string                     `json:"settlement_bank,omitempty"`
	SettlementAcct string                     `json:"settlement_acct,omitempty"`
	FeeSettings    *provider.MerchantSettings `json:"fee_settings,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// MerchantSettings resolves the fee overrides, standing in the standard
// schedule's zero value when none are configured.
func (b *Business) MerchantSettings() provider.MerchantSettings {
	if b == nil || b.FeeSettings == nil {
		return provider.MerchantSettings{}
	}
	return *b.FeeSettings
}

// Repository defines business persistence operations
type Repository interface {
	Create(ctx context.Context, b *Business) error
	GetByID(ctx context.Context, id uuid.UUID) (*Business, error)
	GetByEmail(ctx context.Context, email string) (*Business, error)
	GetByVirtualAccount(ctx context.Context, accountNumber string) (*Business, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrBusinessNotFound indicates a missing business
type ErrBusinessNotFound struct {
	BusinessID uuid.UUID
}

func (e ErrBusinessNotFound) Error() string {
	return "business not found: " + e.BusinessID.String()
}

// Is implements the errors.Is interface for ErrBusinessNotFound
func (e ErrBusinessNotFound) Is(target error) bool {
	t, ok := target.(ErrBusinessNotFound)
	if !ok {
		return false
	}
	if t.BusinessID == uuid.Nil {
		return true
	}
	return e.BusinessID == t.BusinessID
}
