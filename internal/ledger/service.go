// Package ledger is the write path of the transaction lifecycle. Every
// state change that must hold together (status flip, wallet movement,
// claim pairing, settlement marking, outbound notifications) is applied
// here inside a single database transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/business"
	"github.com/paygrid-payments-engine/internal/domain/outbox"
	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/domain/refund"
	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/domain/wallet"
	"github.com/paygrid-payments-engine/internal/fees"
	"github.com/paygrid-payments-engine/internal/metrics"
	"github.com/paygrid-payments-engine/internal/providers"
)

// Outbox actions emitted by the service
const (
	ActionSyncTransaction = "sync.transaction"
	ActionJobWebhook      = "job.webhook_notification"
	ActionJobSettlement   = "job.settlement"
)

const defaultCurrency = "NGN"

// TxRunner runs a function inside one database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service owns all transaction lifecycle writes
type Service struct {
	db         TxRunner
	txns       transaction.Repository
	wallets    wallet.Repository
	claims     refund.Repository
	businesses business.Repository
	outbox     outbox.Repository
	rails      map[string]provider.Provider
	logger     *slog.Logger
}

func NewService(
	db TxRunner,
	txns transaction.Repository,
	wallets wallet.Repository,
	claims refund.Repository,
	businesses business.Repository,
	ob outbox.Repository,
	rails map[string]provider.Provider,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:         db,
		txns:       txns,
		wallets:    wallets,
		claims:     claims,
		businesses: businesses,
		outbox:     ob,
		rails:      rails,
		logger:     logger.With(slog.String("component", "ledger")),
	}
}

// CreatePaymentInput describes a merchant-initiated pending transaction
type CreatePaymentInput struct {
	BusinessID  uuid.UUID
	MerchantRef string
	Feature     shared.Feature
	Channel     shared.Channel
	Type        shared.Type
	Amount      decimal.Decimal
	Provider    string
	Customer    transaction.Customer
	Bank        *transaction.BankInfo
	Webhook     bool
	IsAdmin     bool
}

// CreatePayment records a pending transaction with its fee breakdown
// snapshotted at creation time. The merchant reference is an idempotency
// key: a replayed request returns the transaction it created the first
// time instead of a second one.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*transaction.Transaction, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if rail, ok := s.rails[in.Provider]; ok && !rail.Supports(in.Feature) {
		return nil, fmt.Errorf("%w: provider %s does not carry %s", ErrValidation, in.Provider, in.Feature)
	}

	if in.MerchantRef != "" {
		existing, err := s.txns.GetByMerchantRef(ctx, in.MerchantRef)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	biz, err := s.businesses.GetByID(ctx, in.BusinessID)
	if err != nil {
		return nil, err
	}

	w, err := s.ensureWallet(ctx, biz.ID)
	if err != nil {
		return nil, err
	}

	txn, err := transaction.New(biz.ID, w.ID, in.Feature, in.Channel, in.Type, in.Amount, in.MerchantRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	txn.Provider = in.Provider
	txn.Customer = in.Customer
	txn.Bank = in.Bank
	txn.WebhookEnabled = in.Webhook

	if err := s.snapshotFees(txn, biz.MerchantSettings(), in.IsAdmin); err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.txns.WithTx(tx).Create(ctx, txn); err != nil {
			return err
		}
		return s.emitSync(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created pending transaction",
		slog.String("reference", txn.Reference),
		slog.String("feature", string(txn.Feature)),
		slog.String("amount", txn.Amount.String()))
	return txn, nil
}

// ApplyResult reports what a reconciliation commit actually did
type ApplyResult struct {
	Transaction *transaction.Transaction
	Created     bool // first-time inflow materialized the transaction
	Applied     bool // false when the delivery was an idempotent replay
}

// ApplyEvent is the single reconciliation commit point. It takes a
// normalized provider event and applies everything the event implies in
// one database transaction: the status transition, the wallet credit or
// debit, refund/chargeback pairing on payout legs, settlement marking, and
// the outbox rows announcing the change.
//
// Callers must serialize invocations per reference (the webhook path holds
// a redis lock). Replays of terminal deliveries return Applied=false and
// no error so at-least-once senders get their ack.
func (s *Service) ApplyEvent(ctx context.Context, ev providers.Event) (*ApplyResult, error) {
	if ev.Reference == "" {
		return nil, fmt.Errorf("%w: event carries no reference", ErrValidation)
	}

	txn, err := s.txns.GetByReference(ctx, ev.Reference)
	created := false
	if err != nil {
		if !errors.Is(err, transaction.ErrNotFound{}) {
			return nil, err
		}
		txn, err = s.materializeInflow(ctx, ev)
		if err != nil {
			return nil, err
		}
		created = true
	}

	// A replay of a status the transaction already holds, or any delivery
	// after a terminal state, changes nothing. Late deliveries that
	// contradict a terminal outcome are refused rather than applied.
	if txn.Status == ev.Status {
		return &ApplyResult{Transaction: txn, Created: created}, nil
	}
	if txn.Status.Terminal() || (txn.Status == shared.StatusSuccessful && ev.Status != shared.StatusRefunded) {
		s.logger.Warn("Ignoring webhook against settled transaction",
			slog.String("reference", txn.Reference),
			slog.String("status", string(txn.Status)),
			slog.String("incoming", string(ev.Status)))
		return &ApplyResult{Transaction: txn, Created: created}, nil
	}

	if !txn.Amount.IsZero() && !ev.Amount.IsZero() && !txn.Amount.Equal(ev.Amount) {
		return nil, fmt.Errorf("%w: transaction %s amount %s does not match provider amount %s",
			ErrConsistency, txn.Reference, txn.Amount.String(), ev.Amount.String())
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.commitEvent(ctx, tx, txn, ev)
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsByStatus.WithLabelValues(string(txn.Status)).Inc()
	s.logger.Info("Applied provider event",
		slog.String("reference", txn.Reference),
		slog.String("provider", ev.Provider),
		slog.String("status", string(txn.Status)))
	return &ApplyResult{Transaction: txn, Created: created, Applied: true}, nil
}

// commitEvent applies one event inside tx. txn is mutated in place so the
// caller can report the final state.
func (s *Service) commitEvent(ctx context.Context, tx pgx.Tx, txn *transaction.Transaction, ev providers.Event) error {
	txns := s.txns.WithTx(tx)
	wallets := s.wallets.WithTx(tx)

	if ev.ProviderRef != "" {
		txn.ProviderRef = ev.ProviderRef
	}
	if txn.Provider == "" {
		txn.Provider = ev.Provider
	}
	if txn.Bank == nil && ev.Bank != nil {
		txn.Bank = ev.Bank
	}
	if txn.Customer.Email == "" {
		txn.Customer = ev.Customer
	}
	if len(ev.Raw) > 0 {
		txn.ProviderData = ev.Raw
	}

	if err := txn.Transition(ev.Status); err != nil {
		return fmt.Errorf("%w: %v", ErrConsistency, err)
	}

	if ev.Status == shared.StatusSuccessful {
		if txn.CreditsWallet() {
			if err := s.creditWallet(ctx, wallets, txn); err != nil {
				return err
			}
			if err := s.enqueueSettlement(ctx, tx, txn); err != nil {
				return err
			}
		}
		if txn.IsRefundPayout() || txn.IsChargebackPayout() {
			if err := s.settleClaim(ctx, tx, txn); err != nil {
				return err
			}
		}
		if txn.Feature == shared.FeatureSettlement {
			if err := s.completeSettlement(ctx, txns, txn); err != nil {
				return err
			}
		}
	}

	if ev.Status == shared.StatusFailed {
		if txn.Feature == shared.FeatureSettlement {
			if err := s.failSettlement(ctx, tx, txn); err != nil {
				return err
			}
		}
		if txn.IsRefundPayout() || txn.IsChargebackPayout() {
			if err := s.releaseClaimHold(ctx, tx, txn); err != nil {
				return err
			}
		}
	}

	if err := txns.Update(ctx, txn); err != nil {
		return err
	}
	return s.emitSync(ctx, tx, txn)
}

// creditWallet moves the settlement amount onto the merchant balance under
// the row lock held for the rest of the commit.
func (s *Service) creditWallet(ctx context.Context, wallets wallet.Repository, txn *transaction.Transaction) error {
	w, err := wallets.LockForUpdate(ctx, txn.WalletID)
	if err != nil {
		return err
	}

	credit := txn.Settle.Amount
	if credit.LessThanOrEqual(decimal.Zero) {
		credit = txn.Amount
	}
	if err := w.Credit(credit); err != nil {
		return fmt.Errorf("%w: %v", ErrConsistency, err)
	}
	return wallets.Update(ctx, w)
}

// settleClaim finishes a refund or chargeback payout: debit the merchant
// wallet, mark the claim paid, and move the original transaction to
// refunded with its revenue clawed back. All of it rides the caller's tx.
func (s *Service) settleClaim(ctx context.Context, tx pgx.Tx, payout *transaction.Transaction) error {
	txns := s.txns.WithTx(tx)
	wallets := s.wallets.WithTx(tx)
	claims := s.claims.WithTx(tx)

	w, err := wallets.LockForUpdate(ctx, payout.WalletID)
	if err != nil {
		return err
	}
	// Chargebacks may push the balance negative; the claim already left the
	// platform's account either way.
	if err := wallets.AdjustBalance(ctx, w.ID, payout.Amount.Neg(), w.Version); err != nil {
		return err
	}

	now := time.Now()
	var originalRef string

	switch {
	case payout.IsRefundPayout():
		claim, err := claims.GetRefund(ctx, *payout.RefundID)
		if err != nil {
			return err
		}
		claim.MarkPaid(now)
		if err := claims.UpdateRefund(ctx, claim); err != nil {
			return err
		}
		originalRef = claim.Transaction
	case payout.IsChargebackPayout():
		claim, err := claims.GetChargeback(ctx, *payout.ChargebackID)
		if err != nil {
			return err
		}
		claim.MarkPaid(now)
		if err := claims.UpdateChargeback(ctx, claim); err != nil {
			return err
		}
		originalRef = claim.Transaction
	}

	original, err := txns.GetByReference(ctx, originalRef)
	if err != nil {
		return err
	}
	if err := original.Transition(shared.StatusRefunded); err != nil {
		return fmt.Errorf("%w: %v", ErrConsistency, err)
	}
	original.LinkedReference = payout.Reference
	original.Revenue.Reversed = true
	if err := txns.Update(ctx, original); err != nil {
		return err
	}
	return s.emitSync(ctx, tx, original)
}

// completeSettlement marks the inflow a successful settlement payout covers
func (s *Service) completeSettlement(ctx context.Context, txns transaction.Repository, payout *transaction.Transaction) error {
	if payout.LinkedReference == "" {
		return nil
	}
	inflow, err := txns.GetByReference(ctx, payout.LinkedReference)
	if err != nil {
		return err
	}
	now := time.Now()
	inflow.Settle.Status = shared.SettleCompleted
	inflow.Settle.SettledAt = &now
	inflow.UpdatedAt = now
	return txns.Update(ctx, inflow)
}

// failSettlement records the payout failure on the covered inflow and hands
// the creation-time debit back to the merchant wallet, so a retry starts
// from a clean balance instead of debiting twice.
func (s *Service) failSettlement(ctx context.Context, tx pgx.Tx, payout *transaction.Transaction) error {
	if payout.LinkedReference == "" {
		return nil
	}
	txns := s.txns.WithTx(tx)
	wallets := s.wallets.WithTx(tx)

	w, err := wallets.LockForUpdate(ctx, payout.WalletID)
	if err != nil {
		return err
	}
	if err := wallets.AdjustBalance(ctx, w.ID, payout.Amount, w.Version); err != nil {
		return err
	}

	inflow, err := txns.GetByReference(ctx, payout.LinkedReference)
	if err != nil {
		return err
	}
	inflow.Settle.Status = shared.SettleFailed
	inflow.UpdatedAt = time.Now()
	return txns.Update(ctx, inflow)
}

// releaseClaimHold unwinds a failed refund or chargeback payout: the claim
// flips to failed and the original transaction drops the payout pin taken
// at claim creation, so a fresh claim can be raised.
func (s *Service) releaseClaimHold(ctx context.Context, tx pgx.Tx, payout *transaction.Transaction) error {
	txns := s.txns.WithTx(tx)
	claims := s.claims.WithTx(tx)

	now := time.Now()
	var originalRef string

	switch {
	case payout.IsRefundPayout():
		claim, err := claims.GetRefund(ctx, *payout.RefundID)
		if err != nil {
			return err
		}
		claim.MarkFailed(now)
		if err := claims.UpdateRefund(ctx, claim); err != nil {
			return err
		}
		originalRef = claim.Transaction
	case payout.IsChargebackPayout():
		claim, err := claims.GetChargeback(ctx, *payout.ChargebackID)
		if err != nil {
			return err
		}
		claim.MarkFailed(now)
		if err := claims.UpdateChargeback(ctx, claim); err != nil {
			return err
		}
		originalRef = claim.Transaction
	}

	original, err := txns.GetByReference(ctx, originalRef)
	if err != nil {
		return err
	}
	if original.LinkedReference != payout.Reference {
		return nil
	}
	original.LinkedReference = ""
	original.UpdatedAt = now
	if err := txns.Update(ctx, original); err != nil {
		return err
	}
	return s.emitSync(ctx, tx, original)
}

// materializeInflow creates the transaction a first-time inflow webhook
// describes. Only bank-rail credits qualify: any other unknown reference is
// a consistency fault, not a creation request.
func (s *Service) materializeInflow(ctx context.Context, ev providers.Event) (*transaction.Transaction, error) {
	rail, ok := s.rails[ev.Provider]
	if !ok || rail.Rail != provider.RailBankTransfer {
		return nil, fmt.Errorf("%w: unknown transaction %s from %s", ErrConsistency, ev.Reference, ev.Provider)
	}
	if ev.CreditAccount == "" {
		return nil, fmt.Errorf("%w: inflow %s carries no credit account", ErrConsistency, ev.Reference)
	}
	if ev.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: inflow %s carries no amount", ErrConsistency, ev.Reference)
	}

	biz, err := s.businesses.GetByVirtualAccount(ctx, ev.CreditAccount)
	if err != nil {
		if errors.Is(err, business.ErrBusinessNotFound{}) {
			return nil, fmt.Errorf("%w: no business owns account %s", ErrConsistency, ev.CreditAccount)
		}
		return nil, err
	}

	w, err := s.ensureWallet(ctx, biz.ID)
	if err != nil {
		return nil, err
	}

	txn, err := transaction.New(biz.ID, w.ID, shared.FeatureBankTransfer, shared.ChannelBankTransfer, shared.TypeCredit, ev.Amount, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	// Keep the rail's reference: retries of the same inflow must land on
	// this row.
	txn.Reference = ev.Reference
	txn.Provider = ev.Provider
	txn.Customer = ev.Customer
	txn.Bank = ev.Bank
	txn.WebhookEnabled = true

	if err := s.snapshotFees(txn, biz.MerchantSettings(), false); err != nil {
		return nil, err
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		if errors.Is(err, transaction.ErrDuplicateReference{}) {
			// Lost a race with a concurrent delivery; read theirs.
			return s.txns.GetByReference(ctx, ev.Reference)
		}
		return nil, err
	}

	s.logger.Info("Materialized first-time inflow",
		slog.String("reference", txn.Reference),
		slog.String("provider", ev.Provider),
		slog.String("business_id", biz.ID.String()))
	return txn, nil
}

// snapshotFees computes and pins the fee breakdown on the transaction,
// honoring the merchant's negotiated overrides
func (s *Service) snapshotFees(txn *transaction.Transaction, merchant provider.MerchantSettings, isAdmin bool) error {
	rail := s.rails[txn.Provider]

	chargeType := fees.ChargeTransfer
	switch txn.Channel {
	case shared.ChannelCard:
		chargeType = fees.ChargeCard
	case shared.ChannelBills:
		chargeType = fees.ChargeBill
	}

	category := fees.CategoryInflow
	if txn.Type == shared.TypeDebit {
		category = fees.CategoryOutflow
	}

	breakdown, err := fees.Calculate(fees.Input{
		Amount:   txn.Amount,
		Provider: rail,
		Merchant: merchant,
		Type:     chargeType,
		Category: category,
		IsAdmin:  isAdmin,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	txn.Fee = breakdown.Fee
	txn.VATFee = breakdown.VAT
	txn.StampFee = breakdown.StampFee
	txn.Revenue = transaction.Revenue{Amount: breakdown.Revenue}
	txn.Settle.Amount = breakdown.Settlement
	return nil
}

// ensureWallet returns the business wallet, provisioning one on first use
func (s *Service) ensureWallet(ctx context.Context, businessID uuid.UUID) (*wallet.Wallet, error) {
	w, err := s.wallets.GetByBusinessID(ctx, businessID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, wallet.ErrWalletNotFound{}) {
		return nil, err
	}

	w, err = wallet.New(businessID, defaultCurrency)
	if err != nil {
		return nil, err
	}
	if err := s.wallets.Create(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("Provisioned wallet", slog.String("business_id", businessID.String()))
	return w, nil
}

// enqueueSettlement defers the merchant payout for a credited inflow. The
// dispatcher drains these through the job pool once the commit is durable.
func (s *Service) enqueueSettlement(ctx context.Context, tx pgx.Tx, txn *transaction.Transaction) error {
	if txn.Settle.Amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	job, err := outbox.NewMessage(txn.Reference, ActionJobSettlement, "settlement", map[string]string{
		"reference": txn.Reference,
	})
	if err != nil {
		return err
	}
	return s.outbox.WithTx(tx).Create(ctx, job)
}

// emitSync writes the outbox rows announcing a transaction change: the bus
// sync message always, a merchant webhook job when the business asked for
// one.
func (s *Service) emitSync(ctx context.Context, tx pgx.Tx, txn *transaction.Transaction) error {
	ob := s.outbox.WithTx(tx)

	msg, err := outbox.NewMessage(txn.Reference, ActionSyncTransaction, "transaction", txn)
	if err != nil {
		return err
	}
	if err := ob.Create(ctx, msg); err != nil {
		return err
	}

	notify := txn.Status == shared.StatusSuccessful || txn.Status.Terminal()
	if txn.WebhookEnabled && notify {
		job, err := outbox.NewMessage(txn.Reference, ActionJobWebhook, "notification", map[string]string{
			"reference": txn.Reference,
			"status":    string(txn.Status),
			"event":     txn.WebhookEvent,
		})
		if err != nil {
			return err
		}
		return ob.Create(ctx, job)
	}
	return nil
}
