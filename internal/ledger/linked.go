package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/refund"
	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

// loadRefundable fetches the original transaction and checks it can back a
// claim of the given amount.
func (s *Service) loadRefundable(ctx context.Context, originalRef string, amount decimal.Decimal) (*transaction.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: claim amount must be positive", ErrValidation)
	}

	original, err := s.txns.GetByReference(ctx, originalRef)
	if err != nil {
		return nil, err
	}
	if original.Status != shared.StatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s is %s, only successful transactions can be claimed against",
			ErrValidation, originalRef, original.Status)
	}
	if amount.GreaterThan(original.Amount) {
		return nil, fmt.Errorf("%w: claim %s exceeds original amount %s",
			ErrValidation, amount.String(), original.Amount.String())
	}
	if original.LinkedReference != "" {
		return nil, fmt.Errorf("%w: transaction %s already carries claim payout %s",
			ErrDuplicate, originalRef, original.LinkedReference)
	}
	return original, nil
}

// newPayout builds the debit leg that moves claim money back out. The
// payout starts pending: the rail's webhook settles it and only then does
// the original flip to refunded.
func (s *Service) newPayout(original *transaction.Transaction, feature shared.Feature, amount decimal.Decimal) (*transaction.Transaction, error) {
	payout, err := transaction.New(original.BusinessID, original.WalletID, feature, original.Channel, shared.TypeDebit, amount, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	payout.Provider = original.Provider
	payout.Customer = original.Customer
	payout.Bank = original.Bank
	payout.LinkedReference = original.Reference
	return payout, nil
}

// CreateRefund opens a refund claim against a successful transaction and
// creates its pending payout leg in the same commit. The merchant wallet
// must cover the amount up front; the debit itself lands when the payout
// succeeds.
func (s *Service) CreateRefund(ctx context.Context, originalRef string, amount decimal.Decimal, reason string) (*refund.Refund, error) {
	original, err := s.loadRefundable(ctx, originalRef, amount)
	if err != nil {
		return nil, err
	}

	w, err := s.wallets.GetByID(ctx, original.WalletID)
	if err != nil {
		return nil, err
	}
	if !w.CanDebit(amount) {
		return nil, fmt.Errorf("%w: wallet cannot cover refund of %s", ErrValidation, amount.String())
	}

	claim, err := refund.NewRefund(original.BusinessID, originalRef, amount, reason)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	payout, err := s.newPayout(original, shared.FeatureRefund, amount)
	if err != nil {
		return nil, err
	}
	payout.RefundID = &claim.ID
	claim.RefundedTxn = payout.Reference

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txns := s.txns.WithTx(tx)
		if err := s.claims.WithTx(tx).CreateRefund(ctx, claim); err != nil {
			return err
		}
		if err := txns.Create(ctx, payout); err != nil {
			return err
		}
		// Pin the payout on the original right away. A second claim must be
		// refused while this one is still in flight, not only once it pays.
		original.LinkedReference = payout.Reference
		original.UpdatedAt = time.Now()
		if err := txns.Update(ctx, original); err != nil {
			return err
		}
		return s.emitSync(ctx, tx, payout)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Opened refund claim",
		slog.String("refund_id", claim.ID.String()),
		slog.String("original", originalRef),
		slog.String("payout", payout.Reference))
	return claim, nil
}

// CreateChargeback records a provider-initiated dispute against a
// successful transaction. Unlike refunds there is no balance precheck: the
// money is leaving whether the merchant can afford it or not.
func (s *Service) CreateChargeback(ctx context.Context, originalRef string, amount decimal.Decimal, reason string) (*refund.Chargeback, error) {
	original, err := s.loadRefundable(ctx, originalRef, amount)
	if err != nil {
		return nil, err
	}

	claim, err := refund.NewChargeback(original.BusinessID, originalRef, amount, reason)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	payout, err := s.newPayout(original, shared.FeatureChargeback, amount)
	if err != nil {
		return nil, err
	}
	payout.ChargebackID = &claim.ID
	claim.ChargedTxn = payout.Reference

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txns := s.txns.WithTx(tx)
		if err := s.claims.WithTx(tx).CreateChargeback(ctx, claim); err != nil {
			return err
		}
		if err := txns.Create(ctx, payout); err != nil {
			return err
		}
		original.LinkedReference = payout.Reference
		original.UpdatedAt = time.Now()
		if err := txns.Update(ctx, original); err != nil {
			return err
		}
		return s.emitSync(ctx, tx, payout)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Opened chargeback claim",
		slog.String("chargeback_id", claim.ID.String()),
		slog.String("original", originalRef),
		slog.String("payout", payout.Reference))
	return claim, nil
}

// ReverseTransaction books an internal reversal for a successful
// transaction: no rail is involved, so the wallet debit, the paired status
// flip and the revenue clawback all land in one commit and the reversal
// leg is born successful.
func (s *Service) ReverseTransaction(ctx context.Context, originalRef, reason string) (*transaction.Transaction, error) {
	original, err := s.txns.GetByReference(ctx, originalRef)
	if err != nil {
		return nil, err
	}
	if original.Status != shared.StatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s is %s, only successful transactions can be reversed",
			ErrValidation, originalRef, original.Status)
	}
	if original.LinkedReference != "" {
		return nil, fmt.Errorf("%w: transaction %s already reversed by %s",
			ErrDuplicate, originalRef, original.LinkedReference)
	}

	reversal, err := s.newPayout(original, shared.FeatureInternalDebit, original.Settle.Amount)
	if err != nil {
		return nil, err
	}
	reversal.WebhookEvent = reason

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txns := s.txns.WithTx(tx)
		wallets := s.wallets.WithTx(tx)

		w, err := wallets.LockForUpdate(ctx, original.WalletID)
		if err != nil {
			return err
		}
		if err := wallets.AdjustBalance(ctx, w.ID, reversal.Amount.Neg(), w.Version); err != nil {
			return err
		}

		if err := reversal.Transition(shared.StatusSuccessful); err != nil {
			return fmt.Errorf("%w: %v", ErrConsistency, err)
		}
		if err := txns.Create(ctx, reversal); err != nil {
			return err
		}

		if err := original.Transition(shared.StatusRefunded); err != nil {
			return fmt.Errorf("%w: %v", ErrConsistency, err)
		}
		original.LinkedReference = reversal.Reference
		original.Revenue.Reversed = true
		original.UpdatedAt = time.Now()
		if err := txns.Update(ctx, original); err != nil {
			return err
		}

		if err := s.emitSync(ctx, tx, reversal); err != nil {
			return err
		}
		return s.emitSync(ctx, tx, original)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reversed transaction",
		slog.String("original", originalRef),
		slog.String("reversal", reversal.Reference))
	return reversal, nil
}
