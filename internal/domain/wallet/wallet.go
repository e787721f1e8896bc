// Package wallet holds the running balance per business. A wallet is
// mutated only by successful transactions affecting it.
package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidCurrency   = errors.New("currency must be a 3-letter code")
)

// Wallet represents a business's running balance
type Wallet struct {
	ID         uuid.UUID       `json:"id"`
	BusinessID uuid.UUID       `json:"business_id"`
	Balance    decimal.Decimal `json:"balance"`
	Currency   string          `json:"currency"`
	Version    int             `json:"version"` // For optimistic locking
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// New creates a zero-balance wallet for a business
func New(businessID uuid.UUID, currency string) (*Wallet, error) {
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	now := time.Now()
	return &Wallet{
		ID:         uuid.New(),
		BusinessID: businessID,
		Balance:    decimal.Zero,
		Currency:   currency,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Credit adds the specified amount to the wallet balance
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// Debit subtracts the specified amount from the wallet balance
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// CanDebit checks if the wallet can cover a debit of the given amount
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}
