// Package providers normalizes heterogeneous provider payloads into the
// engine's common shapes. Nothing outside this package branches on a
// provider-specific field name.
package providers

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

// ErrUnknownProvider indicates a webhook arrived for a rail the engine
// does not integrate.
type ErrUnknownProvider struct {
	Name string
}

func (e ErrUnknownProvider) Error() string {
	return "unknown payment provider: " + e.Name
}

// Is implements errors.Is so callers can match any unknown-provider error
func (e ErrUnknownProvider) Is(target error) bool {
	_, ok := target.(ErrUnknownProvider)
	return ok
}

// ErrMalformedPayload indicates a payload that could not be decoded for an
// otherwise known provider.
type ErrMalformedPayload struct {
	Provider string
	Cause    error
}

func (e ErrMalformedPayload) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Provider, e.Cause)
}

func (e ErrMalformedPayload) Unwrap() error { return e.Cause }

// Is implements errors.Is so callers can match any malformed-payload error
func (e ErrMalformedPayload) Is(target error) bool {
	_, ok := target.(ErrMalformedPayload)
	return ok
}

// Event is the provider-agnostic result of normalizing a webhook payload.
// CreditAccount is the virtual account the rail credited, used to resolve
// the owning business on first-time inflows.
type Event struct {
	Provider      string
	Reference     string
	ProviderRef   string
	Status        shared.Status
	Amount        decimal.Decimal
	Customer      transaction.Customer
	Bank          *transaction.BankInfo
	Card          *transaction.CardInfo
	CreditAccount string
	Raw           json.RawMessage // untouched payload, archived for audit
}

// Payload is one provider's concrete webhook schema
type Payload interface {
	Provider() string
	Normalize() (Event, error)
}

// Decode unmarshals a raw webhook body into the payload variant for the
// named provider and normalizes it. This is the single entry point the
// reconciler uses.
func Decode(providerName string, raw []byte) (Event, error) {
	var p Payload
	switch providerName {
	case provider.NameMonnify:
		p = &MonnifyPayload{}
	case provider.NameProvidus:
		p = &ProvidusPayload{}
	case provider.NamePaystack:
		p = &PaystackPayload{}
	case provider.NameFlutterwave:
		p = &FlutterwavePayload{}
	default:
		return Event{}, ErrUnknownProvider{Name: providerName}
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return Event{}, ErrMalformedPayload{Provider: providerName, Cause: err}
	}

	ev, err := p.Normalize()
	if err != nil {
		return Event{}, err
	}
	ev.Raw = json.RawMessage(raw)
	return ev, nil
}
