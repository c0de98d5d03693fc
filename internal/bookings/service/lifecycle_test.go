package service

import (
	"context"
	"testing"
	"time"

	bookingserrors "therabook/internal/bookings/errors"
	"therabook/internal/gateway"
	apperrors "therabook/pkg/errors"
	"therabook/pkg/events"
	"therabook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

func storedBooking(status model.BookingStatus) *model.Booking {
	b := reserveRequest()
	b.ID = "7b1fb3a6-55dc-4bc5-9d9f-000000000100"
	b.Status = status
	b.HoldExpiresAt = time.Now().Add(10 * time.Minute)
	if status != model.BookingPendingPayment {
		b.PaymentRef = "pi_abc"
	}
	return b
}

// ────────────────────────────────────────────────
// Authorize
// ────────────────────────────────────────────────

func TestAuthorizeAttachesPaymentRef(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingPendingPayment)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}

	var gotSet bson.M
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		gotSet = set
		return nil
	}

	booking, err := f.svc.Authorize(context.Background(), stored.ID, "pi_new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingAuthorized {
		t.Errorf("expected authorized, got %s", booking.Status)
	}
	if gotSet["payment_ref"] != "pi_new" {
		t.Errorf("expected payment_ref in update, got %v", gotSet)
	}
	if got := f.published.eventTypes(); len(got) != 1 || got[0] != events.EventBookingAuthorized {
		t.Errorf("expected [booking.authorized], got %v", got)
	}
}

func TestAuthorizeSamePaymentRefIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		t.Error("no transition may run for a replayed authorization")
		return nil
	}

	booking, err := f.svc.Authorize(context.Background(), stored.ID, "pi_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingAuthorized {
		t.Errorf("expected authorized, got %s", booking.Status)
	}
}

func TestAuthorizeExpiredHoldExpiresBooking(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingPendingPayment)
	stored.HoldExpiresAt = time.Now().Add(-time.Minute)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}

	var transitionedTo model.BookingStatus
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		transitionedTo = to
		return nil
	}

	released := false
	f.slots.releaseFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		released = true
		return nil
	}

	_, err := f.svc.Authorize(context.Background(), stored.ID, "pi_late")
	if !apperrors.IsCode(err, apperrors.CodeHoldExpired) {
		t.Fatalf("expected HOLD_EXPIRED, got %v", err)
	}
	if transitionedTo != model.BookingExpired {
		t.Errorf("expected booking to be expired in place, transitioned to %q", transitionedTo)
	}
	if !released {
		t.Error("expired hold must release its slot")
	}
}

func TestAuthorizeTerminalBookingRejected(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingFailed)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}

	_, err := f.svc.Authorize(context.Background(), stored.ID, "pi_zzz")
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestAuthorizeEmptyPaymentRef(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Authorize(context.Background(), "7b1fb3a6-55dc-4bc5-9d9f-000000000100", "")
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Confirm
// ────────────────────────────────────────────────

func TestConfirmSucceededIntentSettlesBooking(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusSucceeded, AmountCents: stored.AmountCents, Currency: stored.Currency}, nil
	}

	booked := false
	f.slots.bookFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		booked = true
		return nil
	}

	booking, err := f.svc.Confirm(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingPaid {
		t.Errorf("expected paid, got %s", booking.Status)
	}
	if !booked {
		t.Error("slot must move to booked alongside the paid transition")
	}
	if got := f.published.eventTypes(); len(got) != 1 || got[0] != events.EventBookingPaid {
		t.Errorf("expected [booking.paid], got %v", got)
	}
}

func TestConfirmAmountMismatchFailsBooking(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusSucceeded, AmountCents: stored.AmountCents - 500, Currency: stored.Currency}, nil
	}

	released := false
	f.slots.releaseFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		released = true
		return nil
	}

	booking, err := f.svc.Confirm(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingPaid && booking.Status != model.BookingFailed {
		t.Fatalf("unexpected status %s", booking.Status)
	}
	if booking.Status == model.BookingPaid {
		t.Fatal("a mismatched amount must never settle as paid")
	}
	if !released {
		t.Error("failed booking must release its slot")
	}
}

func TestConfirmUnsettledIntentLeavesBookingUntouched(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusProcessing}, nil
	}
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		t.Error("no transition may run for an unsettled intent")
		return nil
	}

	booking, err := f.svc.Confirm(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingAuthorized {
		t.Errorf("expected authorized unchanged, got %s", booking.Status)
	}
	if len(f.published.messages) != 0 {
		t.Error("no event may be published for an unsettled intent")
	}
}

func TestConfirmGatewayOutageNeverFailsBooking(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return nil, apperrors.GatewayUnavailable(nil)
	}
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		t.Error("no transition may run while payment state is unknown")
		return nil
	}

	_, err := f.svc.Confirm(context.Background(), stored.ID)
	if !apperrors.IsCode(err, apperrors.CodeGatewayUnavailable) {
		t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
	}
}

func TestConfirmPaidBookingIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingPaid)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		t.Error("no gateway query may run for an already paid booking")
		return nil, nil
	}

	booking, err := f.svc.Confirm(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingPaid {
		t.Errorf("expected paid, got %s", booking.Status)
	}
}

func TestConfirmExpiredHoldUnsettledExpiresBooking(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)
	stored.HoldExpiresAt = time.Now().Add(-time.Minute)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusProcessing}, nil
	}

	var transitionedTo model.BookingStatus
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		transitionedTo = to
		return nil
	}

	released := false
	f.slots.releaseFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		released = true
		return nil
	}

	_, err := f.svc.Confirm(context.Background(), stored.ID)
	if !apperrors.IsCode(err, apperrors.CodeHoldExpired) {
		t.Fatalf("expected HOLD_EXPIRED, got %v", err)
	}
	if transitionedTo != model.BookingExpired {
		t.Errorf("expected booking to be expired in place, transitioned to %q", transitionedTo)
	}
	if !released {
		t.Error("expired hold must release its slot")
	}
}

func TestConfirmLateSucceededBeatsExpiredHold(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)
	stored.HoldExpiresAt = time.Now().Add(-time.Minute)

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusSucceeded, AmountCents: stored.AmountCents, Currency: stored.Currency}, nil
	}

	booking, err := f.svc.Confirm(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingPaid {
		t.Errorf("a settled charge outranks the lapsed hold, got %s", booking.Status)
	}
}

func TestConfirmWithoutAuthorizationRejected(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingPendingPayment)
	stored.PaymentRef = ""

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}

	_, err := f.svc.Confirm(context.Background(), stored.ID)
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Expire
// ────────────────────────────────────────────────

func TestExpireReleasesSlotAndEmits(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingPendingPayment)

	released := false
	f.slots.releaseFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		released = true
		return nil
	}

	if err := f.svc.Expire(context.Background(), stored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !released {
		t.Error("expire must release the slot")
	}
	if got := f.published.eventTypes(); len(got) != 1 || got[0] != events.EventBookingExpired {
		t.Errorf("expected [booking.expired], got %v", got)
	}
}

func TestExpireLostRaceIsSilent(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		return bookingserrors.ErrStaleTransition
	}
	f.slots.releaseFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		t.Error("no slot release may run when the expiry lost its race")
		return nil
	}

	if err := f.svc.Expire(context.Background(), stored); err != nil {
		t.Fatalf("expected lost race to be silent, got %v", err)
	}
	if len(f.published.messages) != 0 {
		t.Error("no event may be published when the expiry lost its race")
	}
}

// ────────────────────────────────────────────────
// HandleGatewayEvent
// ────────────────────────────────────────────────

func TestHandleGatewayEventSettlesBooking(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.findByPaymentRefFunc = func(ctx context.Context, paymentRef string) (*model.Booking, error) {
		return stored, nil
	}
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusSucceeded, AmountCents: stored.AmountCents, Currency: stored.Currency}, nil
	}

	err := f.svc.HandleGatewayEvent(context.Background(), "evt_1", "pi_abc", "payment_intent.succeeded")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.published.eventTypes(); len(got) != 1 || got[0] != events.EventBookingPaid {
		t.Errorf("expected [booking.paid], got %v", got)
	}
}

func TestHandleGatewayEventDuplicateAcknowledged(t *testing.T) {
	f := newServiceFixture(t)

	f.eventRepo.recordFunc = func(ctx context.Context, event *model.PaymentEvent) error {
		return bookingserrors.ErrDuplicateEvent
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		t.Error("no gateway query may run for a duplicate event")
		return nil, nil
	}

	err := f.svc.HandleGatewayEvent(context.Background(), "evt_1", "pi_abc", "payment_intent.succeeded")
	if err != nil {
		t.Fatalf("duplicate events must be acknowledged, got %v", err)
	}
}

func TestHandleGatewayEventUnknownRefAcknowledged(t *testing.T) {
	f := newServiceFixture(t)

	err := f.svc.HandleGatewayEvent(context.Background(), "evt_2", "pi_unknown", "payment_intent.succeeded")
	if err != nil {
		t.Fatalf("unknown refs must be acknowledged, got %v", err)
	}
}

func TestHandleGatewayEventRevivesExpiredBooking(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingExpired)
	stored.HoldExpiresAt = time.Now().Add(-time.Hour)

	f.repo.findByPaymentRefFunc = func(ctx context.Context, paymentRef string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusSucceeded, AmountCents: stored.AmountCents, Currency: stored.Currency}, nil
	}

	var fromSet []model.BookingStatus
	var transitionedTo model.BookingStatus
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		fromSet = from
		transitionedTo = to
		return nil
	}

	booked := false
	f.slots.bookFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		booked = true
		return nil
	}

	err := f.svc.HandleGatewayEvent(context.Background(), "evt_4", "pi_abc", "payment_intent.succeeded")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transitionedTo != model.BookingPaid {
		t.Fatalf("a charge landing after expiry must still settle as paid, transitioned to %q", transitionedTo)
	}
	acceptsExpired := false
	for _, status := range fromSet {
		if status == model.BookingExpired {
			acceptsExpired = true
		}
	}
	if !acceptsExpired {
		t.Error("the paid transition must accept an expired booking")
	}
	if !booked {
		t.Error("reviving an expired booking must re-claim its slot")
	}
	if got := f.published.eventTypes(); len(got) != 1 || got[0] != events.EventBookingPaid {
		t.Errorf("expected [booking.paid], got %v", got)
	}
}

func TestHandleGatewayEventExpiredBookingFailedIntentAcknowledged(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingExpired)

	f.repo.findByPaymentRefFunc = func(ctx context.Context, paymentRef string) (*model.Booking, error) {
		return stored, nil
	}
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusFailed}, nil
	}
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		t.Error("an expired booking with a failed intent is already resolved")
		return nil
	}

	err := f.svc.HandleGatewayEvent(context.Background(), "evt_5", "pi_abc", "payment_intent.payment_failed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.published.messages) != 0 {
		t.Error("no event may be published for an already resolved booking")
	}
}

func TestHandleGatewayEventIgnoresPayloadStatus(t *testing.T) {
	f := newServiceFixture(t)
	stored := storedBooking(model.BookingAuthorized)

	f.repo.findByPaymentRefFunc = func(ctx context.Context, paymentRef string) (*model.Booking, error) {
		return stored, nil
	}
	// Gateway says processing even though the event type claims success:
	// the query wins and nothing settles.
	f.gw.intentStatusFunc = func(ctx context.Context, ref string) (*gateway.Intent, error) {
		return &gateway.Intent{Ref: ref, Status: gateway.StatusProcessing}, nil
	}

	err := f.svc.HandleGatewayEvent(context.Background(), "evt_3", "pi_abc", "payment_intent.succeeded")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.published.messages) != 0 {
		t.Error("no event may be published when the gateway is not settled")
	}
}
