package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "therabook/internal/bookings/errors"
	"therabook/pkg/config"
	"therabook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SlotCollectionName = "Slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type SlotRepository interface {
	// Claim places a hold on a slot for the given booking. Exactly one
	// caller wins a concurrent claim; losers get ErrSlotTaken.
	Claim(ctx context.Context, resourceID string, slotStart time.Time, bookingID string, holdExpiresAt time.Time) error
	// Book flips a held slot to booked. The hold must belong to bookingID.
	Book(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error
	// Release reopens a slot held by bookingID. Releasing a slot not held
	// by that booking is a no-op.
	Release(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error
	// ForceRelease reopens any held slot whose hold expired before cutoff.
	// Returns the number of slots reopened.
	ForceRelease(ctx context.Context, cutoff time.Time) (int64, error)
	FindByID(ctx context.Context, resourceID string, slotStart time.Time) (*model.Slot, error)
	FindByResourceAndRange(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error)
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(SlotCollectionName),
	}
}

func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		// Inside transaction - cannot wrap SessionContext, return no-op cancel
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// Claim implements first-writer-wins with a single upsert. The filter only
// matches the slot document when it is open, or held by an expired hold.
// When no document matches and one already exists under the same _id, the
// upsert trips the unique index and we translate that into ErrSlotTaken.
func (r *mongoSlotRepository) Claim(ctx context.Context, resourceID string, slotStart time.Time, bookingID string, holdExpiresAt time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	slotID := model.SlotID(resourceID, slotStart)

	filter := bson.M{
		"_id": slotID,
		"$or": []bson.M{
			{"status": model.SlotOpen},
			{"status": model.SlotHeld, "hold_expires_at": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"status":             model.SlotHeld,
			"hold_expires_at":    holdExpiresAt.UTC(),
			"held_by_booking_id": bookingID,
			"updated_at":         now,
		},
		"$setOnInsert": bson.M{
			"resource_id": resourceID,
			"slot_start":  slotStart.UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrSlotTaken
		}
		return fmt.Errorf("failed to claim slot %s: %w", slotID, err)
	}

	return nil
}

func (r *mongoSlotRepository) Book(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slotID := model.SlotID(resourceID, slotStart)
	// An open slot is also bookable: the TTL sweep may have reopened the
	// hold just before a late payment success landed, and the payment wins.
	filter := bson.M{
		"_id": slotID,
		"$or": []bson.M{
			{"status": model.SlotHeld, "held_by_booking_id": bookingID},
			{"status": model.SlotOpen},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"status":             model.SlotBooked,
			"held_by_booking_id": bookingID,
			"updated_at":         time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to book slot %s: %w", slotID, err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStaleTransition
	}

	return nil
}

func (r *mongoSlotRepository) Release(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slotID := model.SlotID(resourceID, slotStart)
	filter := bson.M{
		"_id":                slotID,
		"status":             bson.M{"$in": []string{string(model.SlotHeld), string(model.SlotBooked)}},
		"held_by_booking_id": bookingID,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.SlotOpen,
			"updated_at": time.Now().UTC(),
		},
		"$unset": bson.M{
			"hold_expires_at":    "",
			"held_by_booking_id": "",
		},
	}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release slot %s: %w", slotID, err)
	}

	return nil
}

func (r *mongoSlotRepository) ForceRelease(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":          model.SlotHeld,
		"hold_expires_at": bson.M{"$lt": cutoff.UTC()},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.SlotOpen,
			"updated_at": time.Now().UTC(),
		},
		"$unset": bson.M{
			"hold_expires_at":    "",
			"held_by_booking_id": "",
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired holds: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, resourceID string, slotStart time.Time) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"_id": model.SlotID(resourceID, slotStart)}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByResourceAndRange(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"resource_id": resourceID,
		"slot_start":  bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "slot_start", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}
