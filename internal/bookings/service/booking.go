package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "therabook/internal/bookings/errors"
	"therabook/internal/bookings/repository"
	"therabook/internal/bookings/validator"
	"therabook/internal/gateway"
	"therabook/pkg/config"
	apperrors "therabook/pkg/errors"
	"therabook/pkg/events"
	"therabook/pkg/model"
	"therabook/pkg/sanitizer"

	"github.com/google/uuid"
)

type BookingService interface {
	// Reserve claims the requested slot and creates a pending_payment
	// booking. Exactly one of two concurrent reservations for the same
	// slot succeeds; the loser gets SLOT_UNAVAILABLE.
	Reserve(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	// Authorize attaches the gateway payment reference and moves the
	// booking to authorized. Re-authorizing with the same reference is a
	// no-op; an expired hold is expired in place and reported as such.
	Authorize(ctx context.Context, id string, paymentRef string) (*model.Booking, error)
	// Confirm asks the gateway for the intent's settled state and applies
	// it. An unsettled intent leaves the booking untouched; callers read
	// the returned status to see whether anything changed.
	Confirm(ctx context.Context, id string) (*model.Booking, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	// HandleGatewayEvent processes one webhook delivery. Duplicate events
	// are acknowledged without effect; the gateway is re-queried rather
	// than trusting the delivered payload.
	HandleGatewayEvent(ctx context.Context, eventID, paymentRef, eventType string) error
	// ResolvePayment queries the gateway for the booking's intent and
	// applies the outcome if settled. Used by the reconciliation sweep
	// before it gives up on an expired hold.
	ResolvePayment(ctx context.Context, booking *model.Booking) (*model.Booking, error)
	// Expire closes out a booking whose hold TTL elapsed and reopens its
	// slot. Used by the reconciliation sweep.
	Expire(ctx context.Context, booking *model.Booking) error
}

type bookingService struct {
	repo      repository.BookingRepository
	slotRepo  repository.SlotRepository
	eventRepo repository.PaymentEventRepository
	gateway   gateway.Gateway
	emitter   *events.Emitter
	validator *validator.BookingValidator
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	slotRepo repository.SlotRepository,
	eventRepo repository.PaymentEventRepository,
	gw gateway.Gateway,
	emitter *events.Emitter,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		slotRepo:  slotRepo,
		eventRepo: eventRepo,
		gateway:   gw,
		emitter:   emitter,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *bookingService) Reserve(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	s.sanitize(booking)
	if err := s.validate(booking); err != nil {
		return err
	}
	if err := s.checkSlotGrid(booking.SlotStart); err != nil {
		return err
	}

	err := s.slotRepo.Claim(ctx, booking.ResourceID, booking.SlotStart, booking.ID, booking.HoldExpiresAt)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrSlotTaken) {
			return apperrors.SlotUnavailable(booking.ResourceID, booking.SlotStart.UTC().Format(time.RFC3339))
		}
		return apperrors.Internal("Failed to claim slot", err)
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		// Compensate: the hold must not outlive a booking that was never
		// persisted, or the slot stays blocked until the TTL sweep.
		if relErr := s.slotRepo.Release(ctx, booking.ResourceID, booking.SlotStart, booking.ID); relErr != nil {
			s.cfg.Log.Error("Failed to release slot after booking create failure",
				"booking_id", booking.ID, "error", relErr)
		}
		return apperrors.Internal("Failed to create booking", err)
	}

	s.emit(ctx, events.EventBookingReserved, booking)
	s.cfg.Log.Info("Booking reserved",
		"booking_id", booking.ID,
		"resource_id", booking.ResourceID,
		"slot_start", booking.SlotStart,
		"hold_expires_at", booking.HoldExpiresAt,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Status == model.BookingCancelled {
		return booking, nil
	}
	if booking.Status.Terminal() {
		return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
	}

	err = s.repo.TransitionStatus(ctx, booking.ID,
		[]model.BookingStatus{model.BookingPendingPayment, model.BookingAuthorized},
		model.BookingCancelled, nil)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleTransition) {
			return s.resolveStaleCancel(ctx, booking.ID)
		}
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}

	if err := s.slotRepo.Release(ctx, booking.ResourceID, booking.SlotStart, booking.ID); err != nil {
		s.cfg.Log.Error("Failed to release slot on cancel",
			"booking_id", booking.ID, "error", err)
	}

	booking.Status = model.BookingCancelled
	s.emit(ctx, events.EventBookingCancelled, booking)
	s.cfg.Log.Info("Booking cancelled", "booking_id", booking.ID)
	return booking, nil
}

// resolveStaleCancel reloads after a lost cancel race. A concurrent cancel
// makes this call an idempotent success; any other concurrent transition is
// surfaced as a conflict.
func (s *bookingService) resolveStaleCancel(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingCancelled {
		return booking, nil
	}
	return nil, apperrors.InvalidTransition(booking.ID, string(booking.Status))
}

// --- Helpers ---

func (s *bookingService) applyDefaults(b *model.Booking) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Status = model.BookingPendingPayment
	b.SlotStart = b.SlotStart.UTC()
	b.HoldExpiresAt = time.Now().UTC().Add(s.cfg.HoldTTL)
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.ResourceID = sanitizer.SanitizeIdentifier(b.ResourceID)
	b.ClientID = sanitizer.SanitizeIdentifier(b.ClientID)
	b.Note = sanitizer.SanitizeNote(b.Note, 500)
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// checkSlotGrid rejects starts outside working hours or off the slot grid.
func (s *bookingService) checkSlotGrid(slotStart time.Time) error {
	start := slotStart.UTC()

	dayFirst := time.Date(start.Year(), start.Month(), start.Day(), s.cfg.DayFirstSlotHour, 0, 0, 0, time.UTC)
	dayLast := time.Date(start.Year(), start.Month(), start.Day(), s.cfg.DayLastSlotHour, 0, 0, 0, time.UTC)

	if start.Before(dayFirst) || start.After(dayLast) {
		return apperrors.InvalidInput("Slot start is outside bookable hours")
	}
	if start.Sub(dayFirst)%s.cfg.SlotDuration != 0 {
		return apperrors.InvalidInput("Slot start is not aligned to the slot grid")
	}
	return nil
}

func (s *bookingService) emit(ctx context.Context, eventType string, b *model.Booking) {
	s.emitter.Emit(ctx, eventType, events.BookingEvent{
		BookingID:   b.ID,
		ResourceID:  b.ResourceID,
		ClientID:    b.ClientID,
		SlotStart:   b.SlotStart,
		Status:      string(b.Status),
		PaymentRef:  b.PaymentRef,
		AmountCents: b.AmountCents,
		Currency:    b.Currency,
	})
}
