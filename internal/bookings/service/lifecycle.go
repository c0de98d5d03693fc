package service

import (
	"context"
	"errors"
	"strings"
	"time"

	bookingserrors "therabook/internal/bookings/errors"
	"therabook/internal/gateway"
	apperrors "therabook/pkg/errors"
	"therabook/pkg/events"
	"therabook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (s *bookingService) Authorize(ctx context.Context, id string, paymentRef string) (*model.Booking, error) {
	if paymentRef == "" {
		return nil, apperrors.InvalidInput("Payment reference cannot be empty")
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Idempotent replay of the same authorization
	if booking.Status == model.BookingAuthorized && booking.PaymentRef == paymentRef {
		return booking, nil
	}
	if booking.Status.Terminal() {
		return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
	}

	if booking.HoldExpired(time.Now()) {
		if err := s.Expire(ctx, booking); err != nil {
			s.cfg.Log.Error("Failed to expire booking with lapsed hold",
				"booking_id", booking.ID, "error", err)
		}
		return nil, apperrors.HoldExpired(booking.ID)
	}

	err = s.repo.TransitionStatus(ctx, booking.ID,
		[]model.BookingStatus{model.BookingPendingPayment},
		model.BookingAuthorized, bson.M{"payment_ref": paymentRef})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleTransition) {
			return s.resolveStaleAuthorize(ctx, booking.ID, paymentRef)
		}
		return nil, apperrors.Internal("Failed to authorize booking", err)
	}

	booking.Status = model.BookingAuthorized
	booking.PaymentRef = paymentRef
	s.emit(ctx, events.EventBookingAuthorized, booking)
	s.cfg.Log.Info("Booking authorized",
		"booking_id", booking.ID,
		"payment_ref", paymentRef,
	)
	return booking, nil
}

func (s *bookingService) resolveStaleAuthorize(ctx context.Context, id string, paymentRef string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingAuthorized && booking.PaymentRef == paymentRef {
		return booking, nil
	}
	return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
}

func (s *bookingService) Confirm(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Already settled: confirming again is a read
	if booking.Status == model.BookingPaid {
		return booking, nil
	}
	if booking.Status.Terminal() {
		return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
	}
	if booking.PaymentRef == "" {
		return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
	}

	intent, err := s.gateway.IntentStatus(ctx, booking.PaymentRef)
	if err != nil {
		if errors.Is(err, gateway.ErrIntentNotFound) {
			return nil, apperrors.InvalidInput("Payment reference is unknown to the gateway")
		}
		// Gateway down means payment state is unknown, never failed
		return nil, apperrors.AsAppError(err)
	}

	// A settled intent is applied regardless of the hold: a late succeeded
	// still settles. An unsettled intent on a lapsed hold self-heals the
	// same way authorize does.
	if !intent.Settled() && booking.HoldExpired(time.Now()) {
		if err := s.Expire(ctx, booking); err != nil {
			s.cfg.Log.Error("Failed to expire booking with lapsed hold",
				"booking_id", booking.ID, "error", err)
		}
		return nil, apperrors.HoldExpired(booking.ID)
	}

	return s.applyGatewayOutcome(ctx, booking, intent)
}

// applyGatewayOutcome folds a gateway intent state into the booking. It is
// the single place the paid and failed transitions happen, shared by the
// confirm endpoint, the webhook receiver and the reconciliation sweep.
// An unsettled intent returns the booking unchanged.
func (s *bookingService) applyGatewayOutcome(ctx context.Context, booking *model.Booking, intent *gateway.Intent) (*model.Booking, error) {
	switch intent.Status {
	case gateway.StatusSucceeded:
		if intent.AmountCents != booking.AmountCents ||
			!strings.EqualFold(intent.Currency, booking.Currency) {
			s.cfg.Log.Error("Gateway intent amount mismatch",
				"booking_id", booking.ID,
				"booking_amount", booking.AmountCents,
				"booking_currency", booking.Currency,
				"intent_amount", intent.AmountCents,
				"intent_currency", intent.Currency,
			)
			if booking.Status == model.BookingExpired {
				return booking, nil
			}
			return s.fail(ctx, booking)
		}
		return s.settle(ctx, booking)

	case gateway.StatusFailed, gateway.StatusCanceled:
		if booking.Status == model.BookingExpired {
			// Already expired and its slot released; nothing left to undo
			return booking, nil
		}
		return s.fail(ctx, booking)

	default:
		// pending or processing: not settled yet, nothing to apply
		return booking, nil
	}
}

// settle moves the booking to paid and its slot to booked in one
// transaction. A paid booking whose slot stayed held would lose the slot to
// the TTL sweep, so the two writes must land together.
//
// Expired is in the from-set because settle only runs on a gateway-verified
// succeeded: a charge that lands after the sweep expired the booking revives
// it, re-claiming the slot through Book's open-slot match.
func (s *bookingService) settle(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		err := s.repo.TransitionStatus(sessCtx, booking.ID,
			[]model.BookingStatus{model.BookingPendingPayment, model.BookingAuthorized, model.BookingExpired},
			model.BookingPaid, nil)
		if err != nil {
			return err
		}
		return s.slotRepo.Book(sessCtx, booking.ResourceID, booking.SlotStart, booking.ID)
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleTransition) {
			return s.resolveStaleSettle(ctx, booking.ID)
		}
		return nil, apperrors.Internal("Failed to settle booking", err)
	}

	booking.Status = model.BookingPaid
	s.emit(ctx, events.EventBookingPaid, booking)
	s.cfg.Log.Info("Booking paid",
		"booking_id", booking.ID,
		"payment_ref", booking.PaymentRef,
	)
	return booking, nil
}

func (s *bookingService) resolveStaleSettle(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingPaid {
		return booking, nil
	}
	return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
}

func (s *bookingService) fail(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	err := s.repo.TransitionStatus(ctx, booking.ID,
		[]model.BookingStatus{model.BookingPendingPayment, model.BookingAuthorized},
		model.BookingFailed, nil)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleTransition) {
			booking, err = s.GetByID(ctx, booking.ID)
			if err != nil {
				return nil, err
			}
			if booking.Status == model.BookingFailed {
				return booking, nil
			}
			return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
		}
		return nil, apperrors.Internal("Failed to mark booking failed", err)
	}

	if err := s.slotRepo.Release(ctx, booking.ResourceID, booking.SlotStart, booking.ID); err != nil {
		s.cfg.Log.Error("Failed to release slot for failed booking",
			"booking_id", booking.ID, "error", err)
	}

	booking.Status = model.BookingFailed
	s.emit(ctx, events.EventBookingFailed, booking)
	s.cfg.Log.Info("Booking failed", "booking_id", booking.ID)
	return booking, nil
}

func (s *bookingService) ResolvePayment(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	if booking.PaymentRef == "" || booking.Status.Terminal() {
		return booking, nil
	}

	intent, err := s.gateway.IntentStatus(ctx, booking.PaymentRef)
	if err != nil {
		if errors.Is(err, gateway.ErrIntentNotFound) {
			return booking, nil
		}
		return nil, apperrors.AsAppError(err)
	}

	return s.applyGatewayOutcome(ctx, booking, intent)
}

func (s *bookingService) Expire(ctx context.Context, booking *model.Booking) error {
	err := s.repo.TransitionStatus(ctx, booking.ID,
		[]model.BookingStatus{model.BookingPendingPayment, model.BookingAuthorized},
		model.BookingExpired, nil)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleTransition) {
			// Someone else resolved it first; that resolution wins
			return nil
		}
		return apperrors.Internal("Failed to expire booking", err)
	}

	if err := s.slotRepo.Release(ctx, booking.ResourceID, booking.SlotStart, booking.ID); err != nil {
		s.cfg.Log.Error("Failed to release slot for expired booking",
			"booking_id", booking.ID, "error", err)
	}

	booking.Status = model.BookingExpired
	s.emit(ctx, events.EventBookingExpired, booking)
	s.cfg.Log.Info("Booking expired", "booking_id", booking.ID)
	return nil
}

func (s *bookingService) HandleGatewayEvent(ctx context.Context, eventID, paymentRef, eventType string) error {
	if eventID == "" || paymentRef == "" {
		return apperrors.InvalidInput("Event ID and payment reference are required")
	}

	err := s.eventRepo.Record(ctx, &model.PaymentEvent{
		ID:         eventID,
		PaymentRef: paymentRef,
		Type:       eventType,
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrDuplicateEvent) {
			s.cfg.Log.Debug("Duplicate gateway event acknowledged", "event_id", eventID)
			return nil
		}
		return apperrors.Internal("Failed to record payment event", err)
	}

	booking, err := s.repo.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			// The ref may belong to a booking not yet authorized here.
			// Acknowledge; reconciliation will catch up via the gateway.
			s.cfg.Log.Warn("Gateway event for unknown payment ref",
				"event_id", eventID, "payment_ref", paymentRef)
			return nil
		}
		return apperrors.Internal("Failed to look up booking for event", err)
	}

	// Paid, failed and cancelled bookings are settled for good. An expired
	// booking that reached the gateway is still recoverable: the charge may
	// have landed after the hold lapsed, and a verified succeeded revives it.
	if booking.Status.Terminal() && booking.Status != model.BookingExpired {
		return nil
	}

	// Re-query the gateway instead of trusting the delivered payload;
	// deliveries can arrive out of order and the query is authoritative.
	intent, err := s.gateway.IntentStatus(ctx, paymentRef)
	if err != nil {
		if errors.Is(err, gateway.ErrIntentNotFound) {
			s.cfg.Log.Warn("Gateway event references unknown intent",
				"event_id", eventID, "payment_ref", paymentRef)
			return nil
		}
		return apperrors.AsAppError(err)
	}

	_, err = s.applyGatewayOutcome(ctx, booking, intent)
	return err
}
