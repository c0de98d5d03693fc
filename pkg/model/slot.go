package model

import (
	"fmt"
	"time"
)

type SlotStatus string

const (
	SlotOpen   SlotStatus = "open"
	SlotHeld   SlotStatus = "held"
	SlotBooked SlotStatus = "booked"
)

// Slot is the durable record of one bookable resource/time unit. The store,
// not the client, is the source of truth for exclusivity: at most one
// non-expired held or booked claim may exist per (resource_id, slot_start).
type Slot struct {
	ID              string     `json:"id" bson:"_id"`
	ResourceID      string     `json:"resource_id" bson:"resource_id"`
	SlotStart       time.Time  `json:"slot_start" bson:"slot_start"`
	Status          SlotStatus `json:"status" bson:"status"`
	HoldExpiresAt   *time.Time `json:"hold_expires_at,omitempty" bson:"hold_expires_at,omitempty"`
	HeldByBookingID string     `json:"held_by_booking_id,omitempty" bson:"held_by_booking_id,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// SlotID builds the canonical document key for a (resource, start) pair.
// The unique _id index on this key is what makes two concurrent claims have
// exactly one winner.
func SlotID(resourceID string, slotStart time.Time) string {
	return fmt.Sprintf("%s|%s", resourceID, slotStart.UTC().Format(time.RFC3339))
}

// HoldExpired reports whether a held slot's claim has lapsed at the given
// instant. Open and booked slots never report expiry.
func (s *Slot) HoldExpired(now time.Time) bool {
	return s.Status == SlotHeld && s.HoldExpiresAt != nil && !now.Before(*s.HoldExpiresAt)
}

// SlotView is the read-model row returned by availability queries. Expired
// holds are reported as open without waiting for the reconciler.
type SlotView struct {
	SlotStart time.Time  `json:"slot_start"`
	Status    SlotStatus `json:"status"`
}
