// Package notifier consumes the booking lifecycle stream and dispatches
// client-facing notifications. Delivery is a log line for now; the dispatch
// seam is where a mail or push provider plugs in.
package notifier

import (
	"context"
	"fmt"

	"therabook/pkg/events"
	"therabook/pkg/kafka"
	"therabook/pkg/logger"
)

// Dispatcher delivers one rendered notification to a client.
type Dispatcher interface {
	Dispatch(ctx context.Context, clientID, subject, body string) error
}

// LogDispatcher writes notifications to the structured log.
type LogDispatcher struct {
	log *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, clientID, subject, body string) error {
	d.log.Info("Notification dispatched",
		"client_id", clientID,
		"subject", subject,
		"body", body,
	)
	return nil
}

type Notifier struct {
	dispatcher Dispatcher
	log        *logger.Logger
}

func New(dispatcher Dispatcher, log *logger.Logger) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		log:        log,
	}
}

// Handle is the kafka message handler for the booking lifecycle topic.
// Unknown event types are skipped rather than retried; they are not going
// to become known on redelivery.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	var event events.BookingEvent
	if err := msg.DecodeValue(&event); err != nil {
		n.log.Error("Failed to decode booking event",
			"event_id", msg.GetEventID(), "error", err)
		return nil
	}

	subject, body, ok := n.render(msg.GetEventType(), event)
	if !ok {
		n.log.Debug("Skipping event with no notification",
			"event_type", msg.GetEventType(), "booking_id", event.BookingID)
		return nil
	}

	if err := n.dispatcher.Dispatch(ctx, event.ClientID, subject, body); err != nil {
		return fmt.Errorf("failed to dispatch notification for booking %s: %w", event.BookingID, err)
	}

	return nil
}

func (n *Notifier) render(eventType string, event events.BookingEvent) (subject, body string, ok bool) {
	slot := event.SlotStart.Format("Mon, 02 Jan 2006 15:04 MST")

	switch eventType {
	case events.EventBookingReserved:
		return "Your session is on hold",
			fmt.Sprintf("We are holding your %s session. Complete payment to confirm.", slot),
			true
	case events.EventBookingPaid:
		return "Your session is confirmed",
			fmt.Sprintf("Payment received. Your session on %s is booked.", slot),
			true
	case events.EventBookingFailed:
		return "Payment did not go through",
			fmt.Sprintf("We could not collect payment for your %s session. The slot has been released.", slot),
			true
	case events.EventBookingExpired:
		return "Your hold expired",
			fmt.Sprintf("The hold on your %s session expired before payment completed. Please book again.", slot),
			true
	case events.EventBookingCancelled:
		return "Your booking was cancelled",
			fmt.Sprintf("Your session on %s has been cancelled.", slot),
			true
	default:
		// booking.authorized is an internal milestone, nothing to tell
		// the client yet
		return "", "", false
	}
}
