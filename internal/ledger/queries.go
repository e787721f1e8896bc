package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

// GetTransaction looks up one transaction by its reference
func (s *Service) GetTransaction(ctx context.Context, reference string) (*transaction.Transaction, error) {
	return s.txns.GetByReference(ctx, reference)
}

// AttachCard persists the card fingerprint and sealed vault blob on a
// transaction. Only the blob ever holds the full card details.
func (s *Service) AttachCard(ctx context.Context, reference string, card *transaction.CardInfo) error {
	txn, err := s.txns.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	txn.Card = card
	return s.txns.Update(ctx, txn)
}

// ListTransactions pages a business's transactions newest first
func (s *Service) ListTransactions(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*transaction.Transaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.txns.ListByBusiness(ctx, businessID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.txns.CountByBusiness(ctx, businessID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Overview is the per-status aggregate a merchant dashboard renders
type Overview struct {
	BusinessID  uuid.UUID                          `json:"business_id"`
	TotalCount  int64                              `json:"total_count"`
	TotalVolume decimal.Decimal                    `json:"total_volume"`
	ByStatus    map[string]transaction.OverviewRow `json:"by_status"`
}

// GetOverview aggregates count and volume per status for a business
func (s *Service) GetOverview(ctx context.Context, businessID uuid.UUID) (*Overview, error) {
	rows, err := s.txns.Overview(ctx, businessID)
	if err != nil {
		return nil, err
	}

	out := &Overview{
		BusinessID:  businessID,
		TotalVolume: decimal.Zero,
		ByStatus:    make(map[string]transaction.OverviewRow, len(rows)),
	}
	for _, row := range rows {
		out.TotalCount += row.Count
		out.TotalVolume = out.TotalVolume.Add(row.Volume)
		out.ByStatus[string(row.Status)] = row
	}
	return out, nil
}
