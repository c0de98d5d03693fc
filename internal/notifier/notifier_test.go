package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"therabook/pkg/events"
	"therabook/pkg/kafka"
	"therabook/pkg/logger"
)

type recordingDispatcher struct {
	clientIDs []string
	subjects  []string
	err       error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, clientID, subject, body string) error {
	if d.err != nil {
		return d.err
	}
	d.clientIDs = append(d.clientIDs, clientID)
	d.subjects = append(d.subjects, subject)
	return nil
}

func bookingEventMessage(t *testing.T, eventType string) kafka.Message {
	t.Helper()
	return kafka.NewMessage().
		WithKey("booking-1").
		WithValue(events.BookingEvent{
			BookingID:  "booking-1",
			ResourceID: "therapist-42",
			ClientID:   "client-7",
			SlotStart:  time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
			Status:     "paid",
		}).
		WithEventType(eventType).
		WithSource("test").
		Build()
}

func newTestNotifier(d Dispatcher) *Notifier {
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Service: "test"})
	return New(d, log)
}

func TestHandleDispatchesPaidNotification(t *testing.T) {
	d := &recordingDispatcher{}
	n := newTestNotifier(d)

	err := n.Handle(context.Background(), bookingEventMessage(t, events.EventBookingPaid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.clientIDs) != 1 || d.clientIDs[0] != "client-7" {
		t.Fatalf("expected dispatch to client-7, got %v", d.clientIDs)
	}
	if !strings.Contains(d.subjects[0], "confirmed") {
		t.Errorf("unexpected subject: %s", d.subjects[0])
	}
}

func TestHandleSkipsAuthorizedEvent(t *testing.T) {
	d := &recordingDispatcher{}
	n := newTestNotifier(d)

	err := n.Handle(context.Background(), bookingEventMessage(t, events.EventBookingAuthorized))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.clientIDs) != 0 {
		t.Errorf("authorized events must not notify, got %v", d.subjects)
	}
}

func TestHandleSkipsMalformedPayload(t *testing.T) {
	d := &recordingDispatcher{}
	n := newTestNotifier(d)

	msg := kafka.NewMessage().
		WithKey("booking-x").
		WithEventType(events.EventBookingPaid).
		Build()
	msg.Value = []byte("{not json")

	if err := n.Handle(context.Background(), msg); err != nil {
		t.Fatalf("malformed payloads must be skipped, not retried: %v", err)
	}
	if len(d.clientIDs) != 0 {
		t.Error("no dispatch may happen for a malformed payload")
	}
}

func TestHandlePropagatesDispatchFailure(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("smtp timeout")}
	n := newTestNotifier(d)

	err := n.Handle(context.Background(), bookingEventMessage(t, events.EventBookingPaid))
	if err == nil {
		t.Fatal("dispatch failures must propagate so the consumer retries")
	}
}
