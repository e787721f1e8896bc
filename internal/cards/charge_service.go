package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/metrics"
	"github.com/paygrid-payments-engine/internal/providers"
)

// Common errors
var (
	ErrUnsupportedRail = errors.New("no card rail configured for provider")
	ErrChargeSettled   = errors.New("charge already reached a terminal state")
)

// Ledger is the slice of the lifecycle service the card flow needs
type Ledger interface {
	CreatePayment(ctx context.Context, in ledger.CreatePaymentInput) (*transaction.Transaction, error)
	ApplyEvent(ctx context.Context, ev providers.Event) (*ledger.ApplyResult, error)
	GetTransaction(ctx context.Context, reference string) (*transaction.Transaction, error)
	AttachCard(ctx context.Context, reference string, card *transaction.CardInfo) error
}

// ReferenceLock serializes lifecycle commits per transaction reference.
// The card flow takes the same lease webhook reconciliation does, so a
// rail callback and a challenge answer for one charge never commit at
// the same time.
type ReferenceLock interface {
	Acquire(ctx context.Context, reference, token string) error
	Release(ctx context.Context, reference, token string) error
}

// ChargeRequest starts a card payment
type ChargeRequest struct {
	BusinessID  uuid.UUID
	MerchantRef string
	Provider    string
	Amount      decimal.Decimal
	Currency    string
	Customer    transaction.Customer
	Card        CardDetails
	PIN         string
	Webhook     bool
}

// ChallengeAnswer carries the payer's response to a step-up prompt
type ChallengeAnswer struct {
	Reference string
	Step      NextStepType
	Value     string
}

// ChargeService runs card payments through their authorization chain. It
// owns no lifecycle state: every outcome funnels into the ledger the same
// way a webhook would, so a race between this path and the rail's webhook
// resolves to one commit.
type ChargeService struct {
	ledger Ledger
	rails  map[string]providers.CardClient
	vault  *Vault
	lock   ReferenceLock
	logger *slog.Logger
}

func NewChargeService(l Ledger, rails map[string]providers.CardClient, vault *Vault, lock ReferenceLock, logger *slog.Logger) *ChargeService {
	return &ChargeService{
		ledger: l,
		rails:  rails,
		vault:  vault,
		lock:   lock,
		logger: logger.With(slog.String("component", "cards")),
	}
}

// apply pushes one event into the ledger under the per-reference lease
func (s *ChargeService) apply(ctx context.Context, ev providers.Event) (*ledger.ApplyResult, error) {
	token := uuid.NewString()
	if err := s.lock.Acquire(ctx, ev.Reference, token); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrProvider, err)
	}
	defer func() {
		if err := s.lock.Release(ctx, ev.Reference, token); err != nil {
			s.logger.Warn("Failed to release reference lock",
				slog.String("reference", ev.Reference),
				slog.String("error", err.Error()))
		}
	}()
	return s.ledger.ApplyEvent(ctx, ev)
}

// CreateCharge records a pending card transaction, seals the card details
// into the vault, and fires the first charge call. The returned step tells
// the caller what the payer must do next.
func (s *ChargeService) CreateCharge(ctx context.Context, req ChargeRequest) (DecodedStep, error) {
	client, ok := s.rails[req.Provider]
	if !ok {
		return DecodedStep{}, fmt.Errorf("%w: %s", ErrUnsupportedRail, req.Provider)
	}

	txn, err := s.ledger.CreatePayment(ctx, ledger.CreatePaymentInput{
		BusinessID:  req.BusinessID,
		MerchantRef: req.MerchantRef,
		Feature:     shared.FeaturePaymentLink,
		Channel:     shared.ChannelCard,
		Type:        shared.TypeCredit,
		Amount:      req.Amount,
		Provider:    req.Provider,
		Customer:    req.Customer,
		Webhook:     req.Webhook,
	})
	if err != nil {
		return DecodedStep{}, err
	}
	if txn.Status.Terminal() || txn.Status == shared.StatusSuccessful {
		// Idempotent replay of a finished charge.
		return stepForStatus(txn), nil
	}

	blob, err := s.vault.Seal(txn.Reference, req.Card)
	if err != nil {
		return DecodedStep{}, err
	}
	fp := req.Card.Fingerprint("")
	card := &transaction.CardInfo{Bin: fp.Bin, Last4: fp.Last4, Brand: fp.Brand, EncryptedBlob: blob}
	if info, err := client.VerifyCardBin(ctx, fp.Bin); err == nil {
		card.Brand = info.Brand
	}
	if err := s.ledger.AttachCard(ctx, txn.Reference, card); err != nil {
		return DecodedStep{}, err
	}
	txn.Card = card

	resp, err := client.CreateCharge(ctx, providers.ChargeRequest{
		Reference: txn.Reference,
		Amount:    req.Amount.StringFixedBank(2),
		Currency:  req.Currency,
		Email:     req.Customer.Email,
		CardPAN:   req.Card.Number,
		CardCVV:   req.Card.CVV,
		ExpMonth:  req.Card.ExpiryMonth,
		ExpYear:   req.Card.ExpiryYear,
		PIN:       req.PIN,
	})
	if err != nil {
		// Ambiguous outbound failure: the rail may or may not have taken
		// the charge. Park the transaction; reconciliation decides.
		if errors.Is(err, providers.ErrProviderUnavailable) {
			s.park(ctx, txn, req.Provider)
			return DecodedStep{}, fmt.Errorf("%w: %v", ledger.ErrProvider, err)
		}
		s.fail(ctx, txn, req.Provider, err.Error())
		return DecodedStep{}, fmt.Errorf("%w: %v", ledger.ErrProvider, err)
	}

	return s.advance(ctx, txn, req.Provider, resp)
}

// AuthorizeCharge submits a challenge answer and advances the chain. A
// SUCCESS from the rail here is never taken at face value: the charge is
// re-verified against the rail before the ledger sees a successful event.
func (s *ChargeService) AuthorizeCharge(ctx context.Context, answer ChallengeAnswer) (DecodedStep, error) {
	txn, err := s.ledger.GetTransaction(ctx, answer.Reference)
	if err != nil {
		return DecodedStep{}, err
	}
	if txn.Status.Terminal() || txn.Status == shared.StatusSuccessful {
		return stepForStatus(txn), ErrChargeSettled
	}

	client, ok := s.rails[txn.Provider]
	if !ok {
		return DecodedStep{}, fmt.Errorf("%w: %s", ErrUnsupportedRail, txn.Provider)
	}

	validateType := answer.Step.ValidateType()
	if validateType == "" {
		return DecodedStep{}, fmt.Errorf("%w: step %s takes no answer", ledger.ErrValidation, answer.Step)
	}

	resp, err := client.SubmitChallengeAnswer(ctx, txn.Reference, validateType, answer.Value)
	if err != nil {
		if errors.Is(err, providers.ErrProviderUnavailable) {
			s.park(ctx, txn, txn.Provider)
			return DecodedStep{}, fmt.Errorf("%w: %v", ledger.ErrProvider, err)
		}
		s.fail(ctx, txn, txn.Provider, err.Error())
		return DecodedStep{}, fmt.Errorf("%w: %v", ledger.ErrProvider, err)
	}

	return s.advance(ctx, txn, txn.Provider, resp)
}

// advance decodes the rail's answer and pushes the outcome into the
// ledger. Non-terminal steps only park the transaction in processing.
func (s *ChargeService) advance(ctx context.Context, txn *transaction.Transaction, providerName string, resp *providers.ChargeResponse) (DecodedStep, error) {
	step := DecodeNextStep(resp.Status, resp.Message, txn.Reference, resp.AuthURL)
	metrics.ChargeSteps.WithLabelValues(string(step.Step)).Inc()

	switch step.Step {
	case StepSuccess:
		// The rail said success mid-conversation. Confirm out-of-band
		// before the wallet moves; a mismatch downgrades the outcome.
		verified, err := s.reverify(ctx, txn, providerName)
		if err != nil {
			s.park(ctx, txn, providerName)
			return DecodedStep{}, fmt.Errorf("%w: post-authorize verification failed: %v", ledger.ErrProvider, err)
		}
		if !verified {
			s.fail(ctx, txn, providerName, "verification contradicted charge success")
			return DecodeNextStep("failed", "charge could not be verified", txn.Reference, ""), nil
		}
		if _, err := s.apply(ctx, providers.Event{
			Provider:    providerName,
			Reference:   txn.Reference,
			ProviderRef: resp.ProviderRef,
			Status:      shared.StatusSuccessful,
			Amount:      txn.Amount,
		}); err != nil {
			return DecodedStep{}, err
		}
		return step, nil

	case StepFailed:
		s.fail(ctx, txn, providerName, resp.Message)
		return step, nil

	case StepProcessing:
		s.logger.Warn("Charge outcome deferred to reconciliation",
			slog.String("reference", txn.Reference),
			slog.String("provider_status", resp.Status))
		s.park(ctx, txn, providerName)
		return step, nil

	default:
		s.park(ctx, txn, providerName)
		return step, nil
	}
}

// reverify asks the rail for the charge's settled truth. Only an explicit
// successful verification with a matching amount counts.
func (s *ChargeService) reverify(ctx context.Context, txn *transaction.Transaction, providerName string) (bool, error) {
	client := s.rails[providerName]

	v, err := client.VerifyTransaction(ctx, txn.Reference)
	if err != nil {
		return false, err
	}
	if providers.GetPaymentStatus(v.Status) != shared.StatusSuccessful {
		return false, nil
	}
	if v.Amount != "" {
		amt, err := decimal.NewFromString(v.Amount)
		if err != nil || !amt.Equal(txn.Amount) {
			s.logger.Warn("Verification amount mismatch",
				slog.String("reference", txn.Reference),
				slog.String("expected", txn.Amount.String()),
				slog.String("verified", v.Amount))
			return false, nil
		}
	}
	return true, nil
}

// park moves the charge to processing so reconciliation owns the outcome
func (s *ChargeService) park(ctx context.Context, txn *transaction.Transaction, providerName string) {
	if _, err := s.apply(ctx, providers.Event{
		Provider:  providerName,
		Reference: txn.Reference,
		Status:    shared.StatusProcessing,
		Amount:    txn.Amount,
	}); err != nil {
		s.logger.Error("Failed to park charge",
			slog.String("reference", txn.Reference),
			slog.String("error", err.Error()))
	}
}

// fail flips the charge to failed
func (s *ChargeService) fail(ctx context.Context, txn *transaction.Transaction, providerName, reason string) {
	s.logger.Info("Card charge failed",
		slog.String("reference", txn.Reference),
		slog.String("reason", reason))
	if _, err := s.apply(ctx, providers.Event{
		Provider:  providerName,
		Reference: txn.Reference,
		Status:    shared.StatusFailed,
		Amount:    txn.Amount,
	}); err != nil {
		s.logger.Error("Failed to record charge failure",
			slog.String("reference", txn.Reference),
			slog.String("error", err.Error()))
	}
}

func stepForStatus(txn *transaction.Transaction) DecodedStep {
	if txn.Status == shared.StatusSuccessful {
		return DecodeNextStep("success", "payment successful", txn.Reference, "")
	}
	return DecodeNextStep("failed", "", txn.Reference, "")
}
