package providers

import (
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

// PaystackPayload is the webhook shape pushed by the Paystack card rail.
// Amounts arrive in kobo (minor units).
type PaystackPayload struct {
	Reference string `json:"reference"`
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Customer  struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"customer"`
	Authorization struct {
		Bin      string `json:"bin"`
		Last4    string `json:"last4"`
		CardType string `json:"card_type"`
		Bank     string `json:"bank"`
	} `json:"authorization"`
}

func (p *PaystackPayload) Provider() string { return provider.NamePaystack }

func (p *PaystackPayload) Normalize() (Event, error) {
	if p.Reference == "" {
		return Event{}, errMissingReference
	}

	name := p.Customer.FirstName
	if p.Customer.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.Customer.LastName
	}

	ev := Event{
		Provider:    provider.NamePaystack,
		Reference:   p.Reference,
		ProviderRef: formatInt64(p.ID),
		Status:      GetPaymentStatus(p.Status),
		Amount:      decimal.NewFromInt(p.Amount).Div(decimal.NewFromInt(100)),
		Customer: transaction.Customer{
			Name:  name,
			Email: p.Customer.Email,
			Phone: p.Customer.Phone,
		},
	}
	if p.Authorization.Last4 != "" {
		ev.Card = &transaction.CardInfo{
			Bin:   p.Authorization.Bin,
			Last4: p.Authorization.Last4,
			Brand: p.Authorization.CardType,
		}
	}
	return ev, nil
}

// FlutterwavePayload is the webhook shape pushed by the Flutterwave card
// rail. The merchant reference arrives as tx_ref and Flutterwave's own id
// as flw_ref.
type FlutterwavePayload struct {
	TxRef         string  `json:"tx_ref"`
	FlwRef        string  `json:"flw_ref"`
	Status        string  `json:"status"`
	ChargedAmount float64 `json:"charged_amount"`
	Customer      struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer"`
	Card struct {
		First6 string `json:"first_6digits"`
		Last4  string `json:"last_4digits"`
		Type   string `json:"type"`
	} `json:"card"`
}

func (p *FlutterwavePayload) Provider() string { return provider.NameFlutterwave }

func (p *FlutterwavePayload) Normalize() (Event, error) {
	if p.TxRef == "" {
		return Event{}, errMissingReference
	}

	ev := Event{
		Provider:    provider.NameFlutterwave,
		Reference:   p.TxRef,
		ProviderRef: p.FlwRef,
		Status:      GetPaymentStatus(p.Status),
		Amount:      decimal.NewFromFloat(p.ChargedAmount),
		Customer: transaction.Customer{
			Name:  p.Customer.Name,
			Email: p.Customer.Email,
			Phone: p.Customer.PhoneNumber,
		},
	}
	if p.Card.Last4 != "" {
		ev.Card = &transaction.CardInfo{
			Bin:   p.Card.First6,
			Last4: p.Card.Last4,
			Brand: p.Card.Type,
		}
	}
	return ev, nil
}

func formatInt64(v int64) string {
	if v == 0 {
		return ""
	}
	return decimal.NewFromInt(v).String()
}
