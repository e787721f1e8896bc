// Package fees computes the monetary breakdown of a transaction. The
// calculator is pure: no I/O, no mutation, so the whole schedule can be
// unit tested against fixtures.
package fees

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/provider"
)

// ChargeType selects the fee schedule line for a transaction
type ChargeType string

const (
	ChargeTransfer ChargeType = "transfer"
	ChargeCard     ChargeType = "card"
	ChargeBill     ChargeType = "bill"
)

// Category distinguishes money coming into the platform from money leaving it
type Category string

const (
	CategoryInflow  Category = "inflow"
	CategoryOutflow Category = "outflow"
)

var (
	ErrInvalidAmount     = errors.New("fee calculation requires a positive amount")
	ErrUnknownChargeType = errors.New("unknown charge type")
)

// vatRate is the statutory VAT percentage applied to fees
var vatRate = decimal.NewFromFloat(7.5)

// Stamp duty applies to inflows at or above the threshold
var (
	stampDutyThreshold = decimal.NewFromInt(10000)
	stampDutyAmount    = decimal.NewFromInt(50)
)

// Input carries everything the calculator needs for one transaction
type Input struct {
	Amount   decimal.Decimal
	Provider provider.Provider
	Merchant provider.MerchantSettings
	Type     ChargeType
	Category Category
	IsAdmin  bool // platform-initiated movements carry no fee
}

// Breakdown is the monetary result of a fee calculation. Every field is
// rounded to 2 decimal places with bankers' rounding, the single rounding
// rule for the platform.
type Breakdown struct {
	Fee         decimal.Decimal
	VAT         decimal.Decimal
	StampFee    decimal.Decimal
	ProviderFee decimal.Decimal
	Revenue     decimal.Decimal // platform margin: fee minus provider fee
	Settlement  decimal.Decimal // what the merchant ultimately receives
}

// Calculate produces the fee breakdown for a transaction.
//
// Bills (VAS) deliberately carry a zero platform fee while VAT may still
// apply to the provider's own fee; this is documented policy, not an
// omission.
func Calculate(in Input) (Breakdown, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return Breakdown{}, ErrInvalidAmount
	}

	rule, err := scheduleRule(in)
	if err != nil {
		return Breakdown{}, err
	}

	var fee decimal.Decimal
	switch {
	case in.IsAdmin:
		fee = decimal.Zero
	case in.Type == ChargeBill:
		fee = decimal.Zero
	default:
		fee = rule.Apply(in.Amount)
	}

	providerFee := rule.ProviderFee

	vatBase := fee
	if in.Type == ChargeBill {
		vatBase = providerFee
	}
	vat := vatBase.Mul(vatRate).Div(decimal.NewFromInt(100))
	if in.Merchant.VATExempt {
		vat = decimal.Zero
	}

	stamp := decimal.Zero
	if in.Category == CategoryInflow && in.Type == ChargeTransfer && in.Amount.GreaterThanOrEqual(stampDutyThreshold) {
		stamp = stampDutyAmount
	}

	revenue := fee.Sub(providerFee)

	// Inflows settle amount minus charges; outflows and bills move the full
	// amount, fees are charged on top.
	settlement := in.Amount
	if in.Category == CategoryInflow && in.Type != ChargeBill {
		settlement = in.Amount.Sub(fee).Sub(vat)
	}

	return Breakdown{
		Fee:         fee.RoundBank(2),
		VAT:         vat.RoundBank(2),
		StampFee:    stamp.RoundBank(2),
		ProviderFee: providerFee.RoundBank(2),
		Revenue:     revenue.RoundBank(2),
		Settlement:  settlement.RoundBank(2),
	}, nil
}

// scheduleRule picks the fee rule for the charge type and category, letting
// merchant overrides win over the provider schedule for transfers.
func scheduleRule(in Input) (provider.FeeRule, error) {
	switch in.Type {
	case ChargeTransfer:
		if in.Category == CategoryOutflow {
			if in.Merchant.CustomOutflow != nil {
				return *in.Merchant.CustomOutflow, nil
			}
			return in.Provider.Fees.TransferOut, nil
		}
		if in.Merchant.CustomInflow != nil {
			return *in.Merchant.CustomInflow, nil
		}
		return in.Provider.Fees.TransferIn, nil
	case ChargeCard:
		return in.Provider.Fees.Card, nil
	case ChargeBill:
		return in.Provider.Fees.Bill, nil
	}
	return provider.FeeRule{}, ErrUnknownChargeType
}
