package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paygrid-payments-engine/internal/reconciler"
)

// maxWebhookBody caps provider payload size at 1 MiB
const maxWebhookBody = 1 << 20

// WebhookHandler receives provider delivery callbacks
type WebhookHandler struct {
	reconciler *reconciler.Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, rec *reconciler.Reconciler) *WebhookHandler {
	return &WebhookHandler{
		reconciler: rec,
		logger:     logger,
	}
}

// Receive ingests one delivery from the named provider. A 200 is the ack
// the provider stops retrying on, so it covers replays and rejections too;
// 503 asks the provider to deliver again later.
func (h *WebhookHandler) Receive(c *gin.Context) {
	providerName := c.Param("provider")

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read webhook body", "provider", providerName, "error", err)
		RespondBadRequest(c, "Unreadable request body")
		return
	}

	res, err := h.reconciler.ApplyWebhook(c.Request.Context(), providerName, raw)
	if err != nil {
		h.logger.Warn("Deferred webhook delivery", "provider", providerName, "error", err)
		RespondWithError(c, http.StatusServiceUnavailable, "RETRY_LATER", "Delivery could not be processed, retry")
		return
	}

	RespondOK(c, gin.H{
		"reference": res.Reference,
		"outcome":   res.Outcome,
	})
}
