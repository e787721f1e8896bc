package providers

import (
	"context"
	"errors"
)

// ErrProviderUnavailable indicates an outbound call failed, timed out, or
// returned an unreadable response. The owning transaction must stay
// pending/processing; the engine never assumes an outcome on an ambiguous
// provider response.
var ErrProviderUnavailable = errors.New("provider call failed or timed out")

// ChargeRequest initiates a card charge on a rail. The card payload is the
// sealed blob from the vault; rails that need the clear PAN receive it
// decrypted inside the client, never through logs or storage.
type ChargeRequest struct {
	Reference string
	Amount    string // major units, 2dp string
	Currency  string
	Email     string
	CardPAN   string
	CardCVV   string
	ExpMonth  string
	ExpYear   string
	PIN       string
}

// ChargeResponse is a rail's answer to a charge or challenge submission.
// Status carries the rail's raw next-step/status string; the card state
// machine decodes it.
type ChargeResponse struct {
	Status      string
	Message     string
	Reference   string
	ProviderRef string
	AuthURL     string
}

// VerifyResponse is a rail's answer to a transaction verification call
type VerifyResponse struct {
	Status      string
	Amount      string
	ProviderRef string
}

// BinInfo describes a card range for display and risk use
type BinInfo struct {
	Bin      string
	Brand    string
	CardType string
	Bank     string
	Country  string
}

// CardClient is the outbound surface of one card rail. Every call carries
// a bounded timeout via ctx; implementations must not retry.
type CardClient interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	SubmitChallengeAnswer(ctx context.Context, reference, validateType, value string) (*ChargeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error)
	VerifyCardBin(ctx context.Context, bin string) (*BinInfo, error)
}
