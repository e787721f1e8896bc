package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/domain/refund"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

// CreateChargeRequest represents a request to start a card payment
type CreateChargeRequest struct {
	BusinessID  string `json:"business_id" binding:"required,uuid"`
	Provider    string `json:"provider" binding:"required,oneof=paystack flutterwave"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required,len=3"`
	MerchantRef string `json:"merchant_ref,omitempty"`
	Webhook     bool   `json:"webhook,omitempty"`

	Customer struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
		Phone string `json:"phone,omitempty"`
	} `json:"customer" binding:"required"`

	Card struct {
		Number      string `json:"number" binding:"required,min=12,max=19"`
		CVV         string `json:"cvv" binding:"required,min=3,max=4"`
		ExpiryMonth string `json:"expiry_month" binding:"required,len=2"`
		ExpiryYear  string `json:"expiry_year" binding:"required"`
	} `json:"card" binding:"required"`

	PIN string `json:"pin,omitempty"`
}

// CreatePaymentRequest represents a request to record a pending payment on
// a non-card rail.
type CreatePaymentRequest struct {
	BusinessID  string `json:"business_id" binding:"required,uuid"`
	Feature     string `json:"feature" binding:"required,oneof=bank_transfer payment_link wallet_transfer vas"`
	Channel     string `json:"channel" binding:"required,oneof=bank_transfer card bills"`
	Type        string `json:"type" binding:"required,oneof=credit debit"`
	Amount      string `json:"amount" binding:"required"`
	Provider    string `json:"provider,omitempty"`
	MerchantRef string `json:"merchant_ref,omitempty"`
	Webhook     bool   `json:"webhook,omitempty"`

	Customer struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
		Phone string `json:"phone,omitempty"`
	} `json:"customer" binding:"required"`

	Bank *struct {
		Name          string `json:"name"`
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	} `json:"bank,omitempty"`
}

// AuthorizeChargeRequest represents a step-up challenge answer
type AuthorizeChargeRequest struct {
	Step  string `json:"step" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// CreateClaimRequest represents a refund or chargeback request against a
// successful transaction.
type CreateClaimRequest struct {
	Reference string `json:"reference" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Reason    string `json:"reason,omitempty"`
}

// ReverseTransactionRequest represents an internal reversal request
type ReverseTransactionRequest struct {
	Reference string `json:"reference" binding:"required"`
	Reason    string `json:"reason,omitempty"`
}

// CreateSettlementRequest represents a request to settle one inflow
type CreateSettlementRequest struct {
	Reference string `json:"reference" binding:"required"`
	Provider  string `json:"provider" binding:"required,oneof=monnify providus"`
}

// ReconcileSettlementRequest represents the audited recovery request for a
// failed settlement backed by a completed recovery transfer.
type ReconcileSettlementRequest struct {
	FailedReference   string `json:"failed_reference" binding:"required"`
	RecoveryReference string `json:"recovery_reference" binding:"required"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// CardResponse is the displayable card fingerprint; the sealed blob never
// leaves the engine.
type CardResponse struct {
	Bin   string `json:"bin"`
	Last4 string `json:"last4"`
	Brand string `json:"brand,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	Reference       string                `json:"reference"`
	MerchantRef     string                `json:"merchant_ref,omitempty"`
	ProviderRef     string                `json:"provider_ref,omitempty"`
	Provider        string                `json:"provider,omitempty"`
	BusinessID      string                `json:"business_id"`
	Status          string                `json:"status"`
	Type            string                `json:"type"`
	Feature         string                `json:"feature"`
	Channel         string                `json:"channel"`
	Amount          decimal.Decimal       `json:"amount"`
	Fee             decimal.Decimal       `json:"fee"`
	VATFee          decimal.Decimal       `json:"vat_fee"`
	StampFee        decimal.Decimal       `json:"stamp_fee"`
	SettleStatus    string                `json:"settle_status"`
	SettleAmount    decimal.Decimal       `json:"settle_amount"`
	Customer        transaction.Customer  `json:"customer"`
	Bank            *transaction.BankInfo `json:"bank,omitempty"`
	Card            *CardResponse         `json:"card,omitempty"`
	LinkedReference string                `json:"linked_reference,omitempty"`
	CreatedAt       string                `json:"created_at"`
	CompletedAt     string                `json:"completed_at,omitempty"`
}

// ClaimResponse represents a refund or chargeback claim in API responses
type ClaimResponse struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	PayoutRef   string          `json:"payout_ref,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	Status      string          `json:"status"`
	PaidAt      string          `json:"paid_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		Reference:       txn.Reference,
		MerchantRef:     txn.MerchantRef,
		ProviderRef:     txn.ProviderRef,
		Provider:        txn.Provider,
		BusinessID:      txn.BusinessID.String(),
		Status:          string(txn.Status),
		Type:            string(txn.Type),
		Feature:         string(txn.Feature),
		Channel:         string(txn.Channel),
		Amount:          txn.Amount,
		Fee:             txn.Fee,
		VATFee:          txn.VATFee,
		StampFee:        txn.StampFee,
		SettleStatus:    string(txn.Settle.Status),
		SettleAmount:    txn.Settle.Amount,
		Customer:        txn.Customer,
		Bank:            txn.Bank,
		LinkedReference: txn.LinkedReference,
		CreatedAt:       txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.Card != nil {
		resp.Card = &CardResponse{Bin: txn.Card.Bin, Last4: txn.Card.Last4, Brand: txn.Card.Brand}
	}
	if txn.CompletedAt != nil {
		resp.CompletedAt = txn.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func mapRefundToResponse(claim *refund.Refund) ClaimResponse {
	resp := ClaimResponse{
		ID:          claim.ID.String(),
		Transaction: claim.Transaction,
		PayoutRef:   claim.RefundedTxn,
		Amount:      claim.Amount,
		Reason:      claim.Reason,
		Status:      string(claim.Status),
		CreatedAt:   claim.CreatedAt.Format(time.RFC3339),
	}
	if claim.PaidAt != nil {
		resp.PaidAt = claim.PaidAt.Format(time.RFC3339)
	}
	return resp
}

func mapChargebackToResponse(claim *refund.Chargeback) ClaimResponse {
	resp := ClaimResponse{
		ID:          claim.ID.String(),
		Transaction: claim.Transaction,
		PayoutRef:   claim.ChargedTxn,
		Amount:      claim.Amount,
		Reason:      claim.Reason,
		Status:      string(claim.Status),
		CreatedAt:   claim.CreatedAt.Format(time.RFC3339),
	}
	if claim.PaidAt != nil {
		resp.PaidAt = claim.PaidAt.Format(time.RFC3339)
	}
	return resp
}
