package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paygrid-payments-engine/internal/api/handler"
	"github.com/paygrid-payments-engine/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	transactionHandler *handler.TransactionHandler,
	chargeHandler *handler.ChargeHandler,
	webhookHandler *handler.WebhookHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Transaction lifecycle operations
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", transactionHandler.Create)
			transactions.GET("/:reference", transactionHandler.GetByReference)
			transactions.GET("/:reference/webhooks", transactionHandler.WebhookHistory)
			transactions.POST("/reverse", transactionHandler.Reverse)
		}

		// Card payments and their step-up authorization chain
		charges := v1.Group("/charges")
		{
			charges.POST("", chargeHandler.Create)
			charges.POST("/:reference/authorize", chargeHandler.Authorize)
		}

		// Linked claim operations
		v1.POST("/refunds", transactionHandler.CreateRefund)
		v1.POST("/chargebacks", transactionHandler.CreateChargeback)

		// Settlement operations
		settlements := v1.Group("/settlements")
		{
			settlements.POST("", transactionHandler.Settle)
			settlements.POST("/reconcile", transactionHandler.ReconcileSettlement)
		}

		// Business views
		businesses := v1.Group("/businesses")
		{
			businesses.GET("/:id/transactions", transactionHandler.ListByBusiness)
			businesses.GET("/:id/overview", transactionHandler.Overview)
		}
	}

	// Provider delivery sink
	r.POST("/webhooks/:provider", webhookHandler.Receive)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
