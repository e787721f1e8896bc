package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/paygrid-payments-engine/internal/config"
	"github.com/paygrid-payments-engine/internal/data/postgres"
	"github.com/paygrid-payments-engine/internal/dispatcher"
	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/ledger"
	"github.com/paygrid-payments-engine/internal/logger"
	"github.com/paygrid-payments-engine/internal/platform/messaging/producers"
	"github.com/paygrid-payments-engine/internal/platform/persistence"
	"github.com/paygrid-payments-engine/internal/queue"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("dispatcher")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting dispatcher",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Repositories
	txnRepo := postgres.NewTransactionRepository(log, postgresDB)
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	claimRepo := postgres.NewRefundRepository(log, postgresDB)
	businessRepo := postgres.NewBusinessRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	// The dispatcher drives settlements through the same lifecycle service
	// the API uses, so every commit rule holds on this path too.
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

	// Kafka producers
	syncProducer, err := producers.NewSyncMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize sync message producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ producer", "error", err)
		os.Exit(1)
	}
	// A disabled DLQ comes back as a nil producer; keep the interface nil
	// too so the poller's guard sees it.
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}

	// Deferred job pool
	jobPool, err := queue.NewPool(cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	jobs := dispatcher.NewJobs(ledgerService, businessRepo, cfg.Providers.CallTimeout, log)
	jobPool.Register(ledger.ActionJobWebhook, jobs.NotifyMerchant)
	jobPool.Register(ledger.ActionJobSettlement, jobs.Settle)

	poller := dispatcher.NewPoller(&cfg.Outbox, outboxRepo, syncProducer, dlq, jobPool, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	cancelAppCtx()
	wg.Wait()

	log.Info("Starting graceful shutdown...")

	jobPool.Release()

	if err = syncProducer.Close(); err != nil {
		log.Error("Error closing sync message producer", "error", err)
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ producer", "error", err)
		}
	}

	postgresDB.Close()

	log.Info("Dispatcher shutdown completed")
}
