// Package api is the HTTP surface of the engine: merchant lifecycle
// endpoints, card authorization endpoints, and the provider webhook sink.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paygrid-payments-engine/internal/api/handler"
	"github.com/paygrid-payments-engine/internal/cards"
	"github.com/paygrid-payments-engine/internal/config"
	datamongo "github.com/paygrid-payments-engine/internal/data/mongo"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/reconciler"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	ledgerService *ledger.Service,
	chargeService *cards.ChargeService,
	rec *reconciler.Reconciler,
	audit *datamongo.WebhookEventRepository,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	transactionHandler := handler.NewTransactionHandler(log, ledgerService, audit)
	chargeHandler := handler.NewChargeHandler(log, chargeService)
	webhookHandler := handler.NewWebhookHandler(log, rec)

	setupRouter(log, httpRouter, transactionHandler, chargeHandler, webhookHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
