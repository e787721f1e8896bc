package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/paygrid-payments-engine/internal/api"
	"github.com/paygrid-payments-engine/internal/cards"
	"github.com/paygrid-payments-engine/internal/config"
	datamongo "github.com/paygrid-payments-engine/internal/data/mongo"
	"github.com/paygrid-payments-engine/internal/data/postgres"
	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/logger"
	"github.com/paygrid-payments-engine/internal/platform/persistence"
	"github.com/paygrid-payments-engine/internal/providers"
	"github.com/paygrid-payments-engine/internal/providers/railhttp"
	"github.com/paygrid-payments-engine/internal/reconciler"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(appCtx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Repositories
	txnRepo := postgres.NewTransactionRepository(log, postgresDB)
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	claimRepo := postgres.NewRefundRepository(log, postgresDB)
	businessRepo := postgres.NewBusinessRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := datamongo.NewWebhookEventRepository(log, mongoDB.Database())

	// Lifecycle service over the configured rails
	ledgerService := ledger.NewService(
		postgresDB,
		txnRepo,
		walletRepo,
		claimRepo,
		businessRepo,
		outboxRepo,
		provider.DefaultRegistry(),
		log,
	)

	// Card authorization chain
	cardRails := map[string]providers.CardClient{
		provider.NamePaystack:    railhttp.NewPaystackClient(log, cfg.Providers.Paystack, cfg.Providers.CallTimeout),
		provider.NameFlutterwave: railhttp.NewFlutterwaveClient(log, cfg.Providers.Flutterwave, cfg.Providers.CallTimeout),
	}
	vault := cards.NewVault(cfg.Vault.Pepper)

	// One per-reference lease for both commit paths: webhook deliveries
	// and card challenge answers contend on the same lock.
	locker := reconciler.NewLocker(redisClient, cfg.Redis.LockTTL)
	chargeService := cards.NewChargeService(ledgerService, cardRails, vault, locker, log)
	rec := reconciler.New(ledgerService, locker, auditRepo, log)

	server := api.NewServer(log, cfg, ledgerService, chargeService, rec, auditRepo)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
