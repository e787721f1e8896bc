package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	datamongo "github.com/paygrid-payments-engine/internal/data/mongo"
	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/ledger"
)

// TransactionHandler handles HTTP requests for the transaction lifecycle
type TransactionHandler struct {
	ledger *ledger.Service
	audit  *datamongo.WebhookEventRepository
	logger *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, svc *ledger.Service, audit *datamongo.WebhookEventRepository) *TransactionHandler {
	return &TransactionHandler{
		ledger: svc,
		audit:  audit,
		logger: logger,
	}
}

// Create records a pending payment on a non-card rail
func (h *TransactionHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	businessID, err := uuid.Parse(req.BusinessID)
	if err != nil {
		RespondBadRequest(c, "Invalid business ID")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		RespondBadRequest(c, "Invalid amount")
		return
	}

	in := ledger.CreatePaymentInput{
		BusinessID:  businessID,
		MerchantRef: req.MerchantRef,
		Feature:     shared.Feature(req.Feature),
		Channel:     shared.Channel(req.Channel),
		Type:        shared.Type(req.Type),
		Amount:      amount,
		Provider:    req.Provider,
		Customer: transaction.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Webhook: req.Webhook,
	}
	if req.Bank != nil {
		in.Bank = &transaction.BankInfo{
			Name:          req.Bank.Name,
			AccountNumber: req.Bank.AccountNumber,
			AccountName:   req.Bank.AccountName,
		}
	}

	txn, err := h.ledger.CreatePayment(c.Request.Context(), in)
	if err != nil {
		h.logger.Error("Failed to create payment", "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(txn))
}

// GetByReference retrieves one transaction by its engine reference
func (h *TransactionHandler) GetByReference(c *gin.Context) {
	reference := c.Param("reference")

	txn, err := h.ledger.GetTransaction(c.Request.Context(), reference)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// ListByBusiness retrieves paginated transaction history for a business
func (h *TransactionHandler) ListByBusiness(c *gin.Context) {
	businessID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid business ID")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (params.Page - 1) * params.PerPage
	txns, total, err := h.ledger.ListTransactions(c.Request.Context(), businessID, params.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to list transactions", "business_id", businessID, "error", err)
		RespondServiceError(c, err)
		return
	}

	responses := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		responses = append(responses, mapTransactionToResponse(txn))
	}

	RespondWithPaginatedData(c, responses, params.Page, params.PerPage, total)
}

// Overview aggregates count and volume per status for a business
func (h *TransactionHandler) Overview(c *gin.Context) {
	businessID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid business ID")
		return
	}

	overview, err := h.ledger.GetOverview(c.Request.Context(), businessID)
	if err != nil {
		h.logger.Error("Failed to build overview", "business_id", businessID, "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondOK(c, overview)
}

// CreateRefund raises a refund claim against a successful transaction
func (h *TransactionHandler) CreateRefund(c *gin.Context) {
	var req CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		RespondBadRequest(c, "Invalid amount")
		return
	}

	claim, err := h.ledger.CreateRefund(c.Request.Context(), req.Reference, amount, req.Reason)
	if err != nil {
		h.logger.Error("Failed to create refund", "reference", req.Reference, "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondCreated(c, mapRefundToResponse(claim))
}

// CreateChargeback raises a dispute claim against a successful transaction
func (h *TransactionHandler) CreateChargeback(c *gin.Context) {
	var req CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		RespondBadRequest(c, "Invalid amount")
		return
	}

	claim, err := h.ledger.CreateChargeback(c.Request.Context(), req.Reference, amount, req.Reason)
	if err != nil {
		h.logger.Error("Failed to create chargeback", "reference", req.Reference, "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondCreated(c, mapChargebackToResponse(claim))
}

// Reverse rolls back a successful transaction internally, without a
// provider leg.
func (h *TransactionHandler) Reverse(c *gin.Context) {
	var req ReverseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	reversal, err := h.ledger.ReverseTransaction(c.Request.Context(), req.Reference, req.Reason)
	if err != nil {
		h.logger.Error("Failed to reverse transaction", "reference", req.Reference, "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(reversal))
}

// Settle pays out a settled inflow to the business settlement account
func (h *TransactionHandler) Settle(c *gin.Context) {
	var req CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	payout, err := h.ledger.CreateSettlement(c.Request.Context(), req.Reference, req.Provider)
	if err != nil {
		h.logger.Error("Failed to create settlement", "reference", req.Reference, "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(payout))
}

// ReconcileSettlement recovers a failed settlement leg against a completed
// recovery transfer.
func (h *TransactionHandler) ReconcileSettlement(c *gin.Context) {
	var req ReconcileSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	txn, err := h.ledger.ReconcileFailedSettlement(c.Request.Context(), req.FailedReference, req.RecoveryReference)
	if err != nil {
		h.logger.Error("Failed to reconcile settlement",
			"failed_reference", req.FailedReference,
			"recovery_reference", req.RecoveryReference,
			"error", err)
		RespondServiceError(c, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// WebhookHistory retrieves the archived provider deliveries for a
// transaction reference.
func (h *TransactionHandler) WebhookHistory(c *gin.Context) {
	reference := c.Param("reference")

	events, err := h.audit.GetByReference(c.Request.Context(), reference)
	if err != nil {
		h.logger.Error("Failed to load webhook history", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, events)
}
