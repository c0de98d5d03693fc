package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "therabook/internal/bookings/errors"
	"therabook/pkg/config"
	"therabook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	PaymentEventCollectionName = "PaymentEvents"
)

type mongoPaymentEventRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type PaymentEventRepository interface {
	// Record inserts the event keyed by its gateway event id. A duplicate
	// delivery trips the unique _id index and returns ErrDuplicateEvent,
	// which callers treat as "already processed, acknowledge".
	Record(ctx context.Context, event *model.PaymentEvent) error
}

func NewMongoPaymentEventRepository(cfg *config.Config) PaymentEventRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPaymentEventRepository{
		cfg:        cfg,
		collection: db.Collection(PaymentEventCollectionName),
	}
}

func (r *mongoPaymentEventRepository) Record(ctx context.Context, event *model.PaymentEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	event.ReceivedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to record payment event %s: %w", event.ID, err)
	}

	return nil
}
