package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

// CreateSettlement opens the payout leg that moves an inflow's settlement
// amount to the merchant's bank. The inflow is pinned to processing so a
// second settlement run skips it; the payout leg then succeeds or fails by
// webhook like any other transfer.
func (s *Service) CreateSettlement(ctx context.Context, inflowRef, providerName string) (*transaction.Transaction, error) {
	inflow, err := s.txns.GetByReference(ctx, inflowRef)
	if err != nil {
		return nil, err
	}
	if inflow.Status != shared.StatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s is %s, only successful inflows settle",
			ErrValidation, inflowRef, inflow.Status)
	}
	if inflow.Settle.Status != shared.SettlePending && inflow.Settle.Status != shared.SettleFailed {
		return nil, fmt.Errorf("%w: transaction %s settlement is already %s",
			ErrDuplicate, inflowRef, inflow.Settle.Status)
	}
	if inflow.Settle.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: transaction %s has no settlement amount", ErrValidation, inflowRef)
	}

	biz, err := s.businesses.GetByID(ctx, inflow.BusinessID)
	if err != nil {
		return nil, err
	}
	if biz.SettlementAcct == "" {
		return nil, fmt.Errorf("%w: business %s has no settlement account", ErrValidation, biz.ID)
	}

	payout, err := transaction.New(inflow.BusinessID, inflow.WalletID, shared.FeatureSettlement,
		shared.ChannelBankTransfer, shared.TypeDebit, inflow.Settle.Amount, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	payout.Provider = providerName
	payout.LinkedReference = inflow.Reference
	payout.Bank = &transaction.BankInfo{
		Name:          biz.SettlementBank,
		AccountNumber: biz.SettlementAcct,
		AccountName:   biz.Name,
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txns := s.txns.WithTx(tx)
		wallets := s.wallets.WithTx(tx)

		w, err := wallets.LockForUpdate(ctx, inflow.WalletID)
		if err != nil {
			return err
		}
		if !w.CanDebit(payout.Amount) {
			return fmt.Errorf("%w: wallet cannot cover settlement of %s", ErrConsistency, payout.Amount.String())
		}
		if err := wallets.AdjustBalance(ctx, w.ID, payout.Amount.Neg(), w.Version); err != nil {
			return err
		}

		if err := txns.Create(ctx, payout); err != nil {
			return err
		}

		inflow.Settle.Status = shared.SettleProcessing
		inflow.Settle.Destination = biz.SettlementAcct
		inflow.UpdatedAt = time.Now()
		if err := txns.Update(ctx, inflow); err != nil {
			return err
		}
		return s.emitSync(ctx, tx, payout)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Opened settlement payout",
		slog.String("inflow", inflowRef),
		slog.String("payout", payout.Reference),
		slog.String("amount", payout.Amount.String()))
	return payout, nil
}

// ReconcileFailedSettlement is the audited recovery for a settlement payout
// that failed after the money provably moved by other means. It verifies
// the recovery transfer exists and succeeded, then takes the one sanctioned
// failed-to-refunded transition, linking the two rows so the audit trail
// explains itself. Nothing else in the engine may move a failed transaction.
func (s *Service) ReconcileFailedSettlement(ctx context.Context, failedRef, recoveryRef string) (*transaction.Transaction, error) {
	failed, err := s.txns.GetByReference(ctx, failedRef)
	if err != nil {
		return nil, err
	}

	recovery, err := s.txns.GetByReference(ctx, recoveryRef)
	if err != nil {
		return nil, err
	}
	if recovery.Status != shared.StatusSuccessful {
		return nil, fmt.Errorf("%w: recovery transfer %s is %s, not successful",
			ErrValidation, recoveryRef, recovery.Status)
	}
	if !recovery.Amount.Equal(failed.Amount) {
		return nil, fmt.Errorf("%w: recovery transfer %s amount %s does not match failed settlement amount %s",
			ErrConsistency, recoveryRef, recovery.Amount.String(), failed.Amount.String())
	}

	if err := failed.ForceRefundFailedSettlement(recoveryRef); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.txns.WithTx(tx).Update(ctx, failed); err != nil {
			return err
		}
		return s.emitSync(ctx, tx, failed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Reconciled failed settlement",
		slog.String("failed", failedRef),
		slog.String("recovery", recoveryRef))
	return failed, nil
}
