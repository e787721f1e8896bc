// Package transaction owns the ledger entry for one money movement attempt
// and the rules governing its lifecycle.
package transaction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

// nowFunc is swapped in tests that assert on timestamps
var nowFunc = time.Now

// Common errors
var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrMissingReference = errors.New("transaction reference cannot be empty")
	ErrMissingBusiness  = errors.New("transaction must belong to a business")
)

// Customer is a point-in-time snapshot of who paid; it is never used to
// join back to a user record.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// BankInfo snapshots the counterparty bank account on a transfer leg
type BankInfo struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// CardInfo holds the displayable card fingerprint. The full PAN lives only
// in EncryptedBlob, sealed by the card vault.
type CardInfo struct {
	Bin           string `json:"bin"`
	Last4         string `json:"last4"`
	Brand         string `json:"brand"`
	EncryptedBlob []byte `json:"-"`
}

// Revenue is the platform's net cut on a transaction. Reversed flips when a
// linked reversal claws the cut back.
type Revenue struct {
	Amount   decimal.Decimal `json:"amount"`
	Reversed bool            `json:"reversed"`
}

// Settlement tracks the merchant payout leg of an inflow transaction.
// Amount is computed once at creation from the fee breakdown and is never
// recomputed after settlement begins.
type Settlement struct {
	Status      shared.SettleStatus `json:"status"`
	Destination string              `json:"destination,omitempty"`
	Amount      decimal.Decimal     `json:"amount"`
	SettledAt   *time.Time          `json:"settled_at,omitempty"`
}

// Transaction is a ledger row. It is created pending, mutated only by the
// reconciler, the card state machine, or linked-operation helpers, and
// never deleted; closure is a terminal status, not removal.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	Reference   string    `json:"reference"`    // merchant-facing, unique
	MerchantRef string    `json:"merchant_ref"` // caller-supplied idempotency key
	ProviderRef string    `json:"provider_ref,omitempty"`
	Provider    string    `json:"provider"`

	BusinessID uuid.UUID `json:"business_id"`
	WalletID   uuid.UUID `json:"wallet_id"`

	Status  shared.Status  `json:"status"`
	Type    shared.Type    `json:"type"`
	Feature shared.Feature `json:"feature"`
	Channel shared.Channel `json:"channel"`

	Amount   decimal.Decimal `json:"amount"`
	Fee      decimal.Decimal `json:"fee"`
	VATFee   decimal.Decimal `json:"vat_fee"`
	StampFee decimal.Decimal `json:"stamp_fee"`
	Revenue  Revenue         `json:"revenue"`
	Settle   Settlement      `json:"settle"`

	Customer Customer  `json:"customer"`
	Bank     *BankInfo `json:"bank,omitempty"`
	Card     *CardInfo `json:"card,omitempty"`

	// LinkedReference points at the reversal/refund payout transaction
	// created from this one; RefundID/ChargebackID point back at the claim
	// that spawned this transaction when this is the payout leg.
	LinkedReference string     `json:"linked_reference,omitempty"`
	RefundID        *uuid.UUID `json:"refund_id,omitempty"`
	ChargebackID    *uuid.UUID `json:"chargeback_id,omitempty"`

	WebhookEnabled bool   `json:"webhook_enabled"`
	WebhookEvent   string `json:"webhook_event,omitempty"`

	// ProviderData keeps the raw provider payload for audit; the engine
	// never branches on it.
	ProviderData json.RawMessage `json:"provider_data,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a pending transaction with a generated reference. The merchant
// reference defaults to a fresh UUID when the caller supplies none.
func New(businessID, walletID uuid.UUID, feature shared.Feature, channel shared.Channel, txType shared.Type, amount decimal.Decimal, merchantRef string) (*Transaction, error) {
	if businessID == uuid.Nil {
		return nil, ErrMissingBusiness
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if merchantRef == "" {
		merchantRef = uuid.New().String()
	}

	now := time.Now()
	return &Transaction{
		ID:          uuid.New(),
		Reference:   GenerateRef(),
		MerchantRef: merchantRef,
		BusinessID:  businessID,
		WalletID:    walletID,
		Status:      shared.StatusPending,
		Type:        txType,
		Feature:     feature,
		Channel:     channel,
		Amount:      amount,
		Settle:      Settlement{Status: shared.SettlePending},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsRefundPayout reports whether this transaction is the payout leg of a
// refund claim.
func (t *Transaction) IsRefundPayout() bool {
	return t.Feature == shared.FeatureRefund && t.RefundID != nil
}

// IsChargebackPayout reports whether this transaction is the payout leg of a
// chargeback claim.
func (t *Transaction) IsChargebackPayout() bool {
	return t.Feature == shared.FeatureChargeback && t.ChargebackID != nil
}

// CreditsWallet reports whether reaching successful must move the owning
// wallet balance. Only credit-typed inflow features touch the wallet.
func (t *Transaction) CreditsWallet() bool {
	if t.Type != shared.TypeCredit {
		return false
	}
	switch t.Feature {
	case shared.FeatureBankTransfer, shared.FeaturePaymentLink, shared.FeatureWalletTransfer, shared.FeatureInternalCredit:
		return true
	}
	return false
}
