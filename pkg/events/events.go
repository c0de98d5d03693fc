package events

import (
	"context"
	"time"

	"therabook/pkg/kafka"
	"therabook/pkg/logger"
)

// Topic carrying the booking lifecycle stream.
const (
	TopicBookingEvents = "booking-events"
	TopicBookingDLQ    = "booking-events-dlq"
)

// Booking lifecycle event types.
const (
	EventBookingReserved   = "booking.reserved"
	EventBookingAuthorized = "booking.authorized"
	EventBookingPaid       = "booking.paid"
	EventBookingFailed     = "booking.failed"
	EventBookingExpired    = "booking.expired"
	EventBookingCancelled  = "booking.cancelled"
)

// BookingEvent is the payload published for every lifecycle transition.
type BookingEvent struct {
	BookingID  string    `json:"bookingId"`
	ResourceID string    `json:"resourceId"`
	ClientID   string    `json:"clientId"`
	SlotStart  time.Time `json:"slotStart"`
	Status     string    `json:"status"`
	PaymentRef string    `json:"paymentRef,omitempty"`
	AmountCents int64    `json:"amountCents"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is the narrow producer interface the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Emitter publishes booking lifecycle events. Publishing is best-effort:
// a broker outage must never fail the booking operation that triggered it.
type Emitter struct {
	producer Publisher
	source   string
	log      *logger.Logger
}

func NewEmitter(producer Publisher, source string, log *logger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		source:   source,
		log:      log,
	}
}

// Emit publishes a lifecycle event keyed by booking ID so all events for
// one booking land on the same partition in order.
func (e *Emitter) Emit(ctx context.Context, eventType string, event BookingEvent) {
	if e == nil || e.producer == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventType(eventType).
		WithSource(e.source).
		Build()

	if err := e.producer.Publish(ctx, msg); err != nil {
		e.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", event.BookingID,
			"error", err)
		return
	}

	e.log.Debug("Published booking event",
		"event_type", eventType,
		"booking_id", event.BookingID,
		"status", event.Status)
}
