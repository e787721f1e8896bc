// Package mongo holds the webhook audit archive: every raw provider
// delivery and how the engine disposed of it, queryable by reference for
// replay inspection.
package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WebhookEventCollectionName is the name of the audit collection
const WebhookEventCollectionName = "webhook_events"

// WebhookEvent is one archived delivery. Payload is the untouched bytes
// the provider sent; Outcome records what the reconciler did with them.
type WebhookEvent struct {
	ID         uuid.UUID       `bson:"_id"`
	Reference  string          `bson:"reference"`
	Provider   string          `bson:"provider"`
	Status     string          `bson:"status"`
	Outcome    string          `bson:"outcome"`
	Payload    json.RawMessage `bson:"payload"`
	ReceivedAt time.Time       `bson:"received_at"`
}

// WebhookEventRepository archives deliveries in MongoDB
type WebhookEventRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewWebhookEventRepository(logger *slog.Logger, db *mongo.Database) *WebhookEventRepository {
	return &WebhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// Append archives one delivery. Archiving is best effort relative to the
// commit that already happened: the caller logs and continues on error.
func (r *WebhookEventRepository) Append(ctx context.Context, event *WebhookEvent) error {
	collection := r.db.Collection(WebhookEventCollectionName)

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	_, err := collection.InsertOne(ctx, event)
	if err != nil {
		r.logger.Error("Failed to archive webhook event",
			"reference", event.Reference,
			"provider", event.Provider,
			"error", err)
		return fmt.Errorf("failed to archive webhook event: %w", err)
	}

	return nil
}

// GetByReference retrieves every archived delivery for a reference, oldest
// first, so an operator can replay the conversation that led to the
// current state.
func (r *WebhookEventRepository) GetByReference(ctx context.Context, reference string) ([]*WebhookEvent, error) {
	collection := r.db.Collection(WebhookEventCollectionName)

	filter := bson.M{"reference": reference}
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*WebhookEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode webhook events: %w", err)
	}

	return events, nil
}
