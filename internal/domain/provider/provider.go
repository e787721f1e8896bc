// Package provider describes a payment rail's configuration: its fee
// schedule inputs and which features it can carry. How a rail computes its
// own fees is not modelled; ProviderFee here is the configured cost the
// platform pays it.
package provider

import (
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

// Rail identifies the kind of provider integration
type Rail string

const (
	RailBankTransfer Rail = "bank_transfer"
	RailCard         Rail = "card"
)

// Well-known provider names. The engine only ever branches on these inside
// the adapter layer.
const (
	NameMonnify     = "monnify"
	NameProvidus    = "providus"
	NamePaystack    = "paystack"
	NameFlutterwave = "flutterwave"
)

// FeeRule is one line of a fee schedule: percent of amount plus a flat
// component, optionally capped.
type FeeRule struct {
	Percent     decimal.Decimal `json:"percent"`
	Flat        decimal.Decimal `json:"flat"`
	Cap         decimal.Decimal `json:"cap"`          // zero means uncapped
	ProviderFee decimal.Decimal `json:"provider_fee"` // what the rail charges the platform
}

// Apply computes the fee for an amount under this rule
func (r FeeRule) Apply(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(r.Percent).Div(decimal.NewFromInt(100)).Add(r.Flat)
	if r.Cap.GreaterThan(decimal.Zero) && fee.GreaterThan(r.Cap) {
		return r.Cap
	}
	return fee
}

// FeeSchedule holds the per-category rules for a provider
type FeeSchedule struct {
	TransferIn  FeeRule `json:"transfer_in"`
	TransferOut FeeRule `json:"transfer_out"`
	Card        FeeRule `json:"card"`
	Bill        FeeRule `json:"bill"`
}

// Provider is one configured payment rail
type Provider struct {
	Name         string           `json:"name"`
	Rail         Rail             `json:"rail"`
	Fees         FeeSchedule      `json:"fees"`
	Capabilities []shared.Feature `json:"capabilities"`
}

// Supports reports whether the provider can carry the given feature
func (p Provider) Supports(feature shared.Feature) bool {
	for _, f := range p.Capabilities {
		if f == feature {
			return true
		}
	}
	return false
}

// MerchantSettings are per-business overrides applied on top of a
// provider's schedule.
type MerchantSettings struct {
	VATExempt     bool     `json:"vat_exempt"`
	CustomInflow  *FeeRule `json:"custom_inflow,omitempty"`
	CustomOutflow *FeeRule `json:"custom_outflow,omitempty"`
}

// DefaultRegistry returns the built-in rail configuration. Schedules here
// are the platform's standing rates; per-merchant overrides layer on top
// at calculation time.
func DefaultRegistry() map[string]Provider {
	pct := func(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
	flat := func(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

	return map[string]Provider{
		NameMonnify: {
			Name: NameMonnify,
			Rail: RailBankTransfer,
			Fees: FeeSchedule{
				TransferIn:  FeeRule{Percent: pct(1.0), Cap: flat(300), ProviderFee: flat(35)},
				TransferOut: FeeRule{Flat: flat(30), ProviderFee: flat(20)},
				Bill:        FeeRule{ProviderFee: flat(50)},
			},
			Capabilities: []shared.Feature{shared.FeatureBankTransfer, shared.FeatureSettlement, shared.FeatureVAS},
		},
		NameProvidus: {
			Name: NameProvidus,
			Rail: RailBankTransfer,
			Fees: FeeSchedule{
				TransferIn:  FeeRule{Percent: pct(1.0), Cap: flat(250), ProviderFee: flat(25)},
				TransferOut: FeeRule{Flat: flat(25), ProviderFee: flat(15)},
			},
			Capabilities: []shared.Feature{shared.FeatureBankTransfer, shared.FeatureSettlement},
		},
		NamePaystack: {
			Name: NamePaystack,
			Rail: RailCard,
			Fees: FeeSchedule{
				Card: FeeRule{Percent: pct(1.5), Flat: flat(100), Cap: flat(2000), ProviderFee: flat(60)},
			},
			Capabilities: []shared.Feature{shared.FeaturePaymentLink},
		},
		NameFlutterwave: {
			Name: NameFlutterwave,
			Rail: RailCard,
			Fees: FeeSchedule{
				Card: FeeRule{Percent: pct(1.4), Flat: flat(100), Cap: flat(2000), ProviderFee: flat(55)},
			},
			Capabilities: []shared.Feature{shared.FeaturePaymentLink},
		},
	}
}
