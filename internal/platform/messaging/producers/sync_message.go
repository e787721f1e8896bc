// Package producers publishes the engine's outbound bus messages. All
// traffic originates in the outbox table: the dispatcher hands rows here
// after the owning database commit, never before.
package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/paygrid-payments-engine/internal/config"
)

// SyncMessageProducer publishes {action, type, payload} envelopes to the
// lifecycle sync topic, keyed by transaction reference so consumers see
// one reference's changes in order.
type SyncMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewSyncMessageProducer creates the sync producer and ensures its topic
// exists. Writes are synchronous: the poller only marks an outbox row
// processed once the broker acked it.
func NewSyncMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*SyncMessageProducer, error) {
	if cfg.SyncTopic == "" {
		return nil, fmt.Errorf("kafka sync topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for sync producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.SyncTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure sync topic %s exists: %w", cfg.SyncTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.SyncTopic,
		Balancer:     &kafka.Hash{}, // keep per-reference ordering
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &SyncMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.SyncTopic,
	}, nil
}

func (p *SyncMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal sync message value: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish sync message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish sync message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published sync message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *SyncMessageProducer) Close() error {
	p.logger.Info("Closing sync message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
