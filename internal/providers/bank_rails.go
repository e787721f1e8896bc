package providers

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

var errMissingReference = errors.New("payload carries no transaction reference")

// MonnifyPayload is the webhook shape pushed by the Monnify bank-transfer
// rail. Amounts arrive as a JSON number, the merchant reference under
// paymentReference and Monnify's own id under transactionReference.
type MonnifyPayload struct {
	PaymentReference         string  `json:"paymentReference"`
	TransactionReference     string  `json:"transactionReference"`
	PaymentStatus            string  `json:"paymentStatus"`
	AmountPaid               float64 `json:"amountPaid"`
	CustomerName             string  `json:"customerName"`
	CustomerEmail            string  `json:"customerEmail"`
	DestinationAccountNumber string  `json:"destinationAccountNumber"`
	PaymentSourceInformation []struct {
		BankName      string `json:"bankName"`
		AccountNumber string `json:"accountNumber"`
		AccountName   string `json:"accountName"`
	} `json:"paymentSourceInformation"`
}

func (p *MonnifyPayload) Provider() string { return provider.NameMonnify }

func (p *MonnifyPayload) Normalize() (Event, error) {
	if p.PaymentReference == "" {
		return Event{}, errMissingReference
	}

	ev := Event{
		Provider:    provider.NameMonnify,
		Reference:   p.PaymentReference,
		ProviderRef: p.TransactionReference,
		Status:      GetPaymentStatus(p.PaymentStatus),
		Amount:      decimal.NewFromFloat(p.AmountPaid),
		Customer: transaction.Customer{
			Name:  p.CustomerName,
			Email: p.CustomerEmail,
		},
		CreditAccount: p.DestinationAccountNumber,
	}
	if len(p.PaymentSourceInformation) > 0 {
		src := p.PaymentSourceInformation[0]
		ev.Bank = &transaction.BankInfo{
			Name:          src.BankName,
			AccountNumber: src.AccountNumber,
			AccountName:   src.AccountName,
		}
	}
	return ev, nil
}

// ProvidusPayload is the webhook shape pushed by the Providus virtual
// account rail. Amounts arrive as strings and the settlement id doubles as
// the provider reference.
type ProvidusPayload struct {
	SessionID            string `json:"sessionId"`
	SettlementID         string `json:"settlementId"`
	AccountNumber        string `json:"accountNumber"` // credited virtual account
	TranRemarks          string `json:"tranRemarks"`   // carries our reference
	TransactionAmount    string `json:"transactionAmount"`
	TranStatus           string `json:"tranStatus"`
	SourceAccountName    string `json:"sourceAccountName"`
	SourceAccountNumber  string `json:"sourceAccountNumber"`
	SourceBankName       string `json:"sourceBankName"`
	CustomerEmailAddress string `json:"customerEmailAddress"`
}

func (p *ProvidusPayload) Provider() string { return provider.NameProvidus }

func (p *ProvidusPayload) Normalize() (Event, error) {
	reference := strings.TrimSpace(p.TranRemarks)
	if reference == "" {
		return Event{}, errMissingReference
	}

	amount := decimal.Zero
	if p.TransactionAmount != "" {
		parsed, err := decimal.NewFromString(p.TransactionAmount)
		if err != nil {
			return Event{}, ErrMalformedPayload{Provider: provider.NameProvidus, Cause: err}
		}
		amount = parsed
	}

	providerRef := p.SettlementID
	if providerRef == "" {
		providerRef = p.SessionID
	}

	return Event{
		Provider:    provider.NameProvidus,
		Reference:   reference,
		ProviderRef: providerRef,
		Status:      GetPaymentStatus(p.TranStatus),
		Amount:      amount,
		Customer: transaction.Customer{
			Name:  p.SourceAccountName,
			Email: p.CustomerEmailAddress,
		},
		Bank: &transaction.BankInfo{
			Name:          p.SourceBankName,
			AccountNumber: p.SourceAccountNumber,
			AccountName:   p.SourceAccountName,
		},
		CreditAccount: p.AccountNumber,
	}, nil
}
