package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paygrid-payments-engine/internal/cards"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
)

// ChargeHandler handles HTTP requests for card payments
type ChargeHandler struct {
	charges *cards.ChargeService
	logger  *slog.Logger
}

// NewChargeHandler creates a new charge handler
func NewChargeHandler(logger *slog.Logger, charges *cards.ChargeService) *ChargeHandler {
	return &ChargeHandler{
		charges: charges,
		logger:  logger,
	}
}

// Create starts a card payment. The response status code follows the
// authorization chain: 206 when the payer owes more input, 200 on
// success, 400 on failure.
func (h *ChargeHandler) Create(c *gin.Context) {
	var req CreateChargeRequest
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

	step, err := h.charges.CreateCharge(c.Request.Context(), cards.ChargeRequest{
		BusinessID:  businessID,
		MerchantRef: req.MerchantRef,
		Provider:    req.Provider,
		Amount:      amount,
		Currency:    req.Currency,
		Customer: transaction.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Card: cards.CardDetails{
			Number:      req.Card.Number,
			CVV:         req.Card.CVV,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
		},
		PIN:     req.PIN,
		Webhook: req.Webhook,
	})
	if err != nil {
		if errors.Is(err, cards.ErrUnsupportedRail) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create charge", "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondWithData(c, step.Code, step)
}

// Authorize submits the payer's answer to the current step-up challenge
func (h *ChargeHandler) Authorize(c *gin.Context) {
	reference := c.Param("reference")

	var req AuthorizeChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	stepType := cards.NextStepType(req.Step)
	if stepType.ValidateType() == "" {
		RespondBadRequest(c, "Step does not accept input: "+req.Step)
		return
	}

	step, err := h.charges.AuthorizeCharge(c.Request.Context(), cards.ChallengeAnswer{
		Reference: reference,
		Step:      stepType,
		Value:     req.Value,
	})
	if err != nil {
		if errors.Is(err, cards.ErrChargeSettled) {
			RespondConflict(c, err.Error())
			return
		}
		h.logger.Error("Failed to authorize charge", "reference", reference, "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondWithData(c, step.Code, step)
}
