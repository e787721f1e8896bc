// Package dispatcher drains the transactional outbox: sync messages go to
// the bus, job messages to the deferred worker pool. It is the only
// process that marks outbox rows done, so a crash anywhere before that
// leaves the row pending and the side effect will happen again: consumers
// must tolerate duplicates, never absence.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paygrid-payments-engine/internal/config"
	"github.com/paygrid-payments-engine/internal/domain/outbox"
	"github.com/paygrid-payments-engine/internal/domain/shared"
	"github.com/paygrid-payments-engine/internal/metrics"
	"github.com/paygrid-payments-engine/internal/platform/messaging/producers"
	"github.com/paygrid-payments-engine/internal/queue"
)

const (
	routeSync = "sync"
	routeJob  = "job"
)

// Poller processes pending outbox messages
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        producers.MessagePublisher
	dlq              producers.DeadLetterPublisher
	jobs             *queue.Pool
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher producers.MessagePublisher,
	dlq producers.DeadLetterPublisher,
	jobs *queue.Pool,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		dlq:              dlq,
		jobs:             jobs,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "reference", msg.Reference, "action", msg.Action)

		route, err := p.dispatch(ctx, msg)
		if err != nil {
			metrics.OutboxPublished.WithLabelValues(route, "error").Inc()
			logger.Error("Failed to dispatch outbox message", "current_attempts", msg.Attempts, "error", err)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				logger.Error("Failed to increment attempts for outbox message", "error", errInc)
				continue
			}

			if msg.Attempts+1 >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
					"attempts_made", msg.Attempts+1,
				)
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					logger.Error("Failed to update outbox status after max retries", "error", errUpdate)
					continue
				}
				p.deadLetter(ctx, msg, err)
			}
			continue
		}

		if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusProcessed); errUpdate != nil {
			// The side effect happened but the row stays pending; it will
			// run again. That is the at-least-once contract.
			logger.Error("Dispatched but failed to mark outbox message processed", "error", errUpdate)
			continue
		}
		metrics.OutboxPublished.WithLabelValues(route, "ok").Inc()
		logger.Debug("Dispatched outbox message")
	}
	return nil
}

// dispatch routes one message by its action prefix
func (p *Poller) dispatch(ctx context.Context, msg *outbox.Message) (string, error) {
	switch {
	case msg.IsSync():
		return routeSync, p.publisher.Publish(ctx, msg.Key(), msg.Envelope())
	case msg.IsJob():
		return routeJob, p.jobs.Run(ctx, msg)
	}
	return "unknown", fmt.Errorf("outbox message %d has unroutable action %q", msg.ID, msg.Action)
}

// deadLetter parks an exhausted message where an operator can find it
func (p *Poller) deadLetter(ctx context.Context, msg *outbox.Message, cause error) {
	if p.dlq == nil {
		return
	}
	if err := p.dlq.PublishToDLQ(ctx, msg.Key(), msg.Payload, cause.Error()); err != nil {
		p.logger.Error("Failed to publish exhausted outbox message to DLQ",
			"outbox_id", msg.ID, "error", err)
	}
}
