package model

import (
	"time"
)

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingAuthorized     BookingStatus = "authorized"
	BookingPaid           BookingStatus = "paid"
	BookingFailed         BookingStatus = "failed"
	BookingExpired        BookingStatus = "expired"
	BookingCancelled      BookingStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal bookings are
// immutable history; a retry creates a new booking instead.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingPaid, BookingFailed, BookingExpired, BookingCancelled:
		return true
	}
	return false
}

// Booking tracks one reservation attempt from slot hold through payment
// resolution. It references exactly one slot for its whole lifetime.
type Booking struct {
	ID            string        `json:"id" bson:"_id" validate:"omitempty,uuid4"`
	ResourceID    string        `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=64"`
	SlotStart     time.Time     `json:"slot_start" bson:"slot_start" validate:"required"`
	ClientID      string        `json:"client_id" bson:"client_id" validate:"required,min=1,max=64"`
	Status        BookingStatus `json:"status" bson:"status" validate:"required,oneof=pending_payment authorized paid failed expired cancelled"`
	PaymentRef    string        `json:"payment_ref,omitempty" bson:"payment_ref,omitempty"`
	AmountCents   int64         `json:"amount_cents" bson:"amount_cents" validate:"required,min=50"`
	Currency      string        `json:"currency" bson:"currency" validate:"required,currency_code"`
	Note          string        `json:"note,omitempty" bson:"note,omitempty" validate:"omitempty,max=500"`
	HoldExpiresAt time.Time     `json:"hold_expires_at" bson:"hold_expires_at"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}

// HoldExpired reports whether the hold TTL has elapsed for a booking still
// waiting on payment. Terminal bookings never report expiry.
func (b *Booking) HoldExpired(now time.Time) bool {
	if b.Status.Terminal() {
		return false
	}
	return !now.Before(b.HoldExpiresAt)
}
