package service

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "therabook/internal/bookings/errors"
	"therabook/internal/bookings/validator"
	"therabook/internal/gateway"
	"therabook/pkg/config"
	mongotx "therabook/pkg/db/mongo"
	apperrors "therabook/pkg/errors"
	"therabook/pkg/events"
	"therabook/pkg/kafka"
	"therabook/pkg/logger"
	"therabook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockBookingRepo struct {
	createFunc           func(ctx context.Context, booking *model.Booking) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Booking, error)
	findByPaymentRefFunc func(ctx context.Context, paymentRef string) (*model.Booking, error)
	transitionFunc       func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error
	findExpiredFunc      func(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error)
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	return nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*model.Booking, error) {
	if m.findByPaymentRefFunc != nil {
		return m.findByPaymentRefFunc(ctx, paymentRef)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepo) TransitionStatus(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, id, from, to, set)
	}
	return nil
}

func (m *mockBookingRepo) FindExpiredUnresolved(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	if m.findExpiredFunc != nil {
		return m.findExpiredFunc(ctx, cutoff, limit)
	}
	return nil, nil
}

func (m *mockBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockSlotRepo struct {
	claimFunc        func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string, holdExpiresAt time.Time) error
	bookFunc         func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error
	releaseFunc      func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error
	forceReleaseFunc func(ctx context.Context, cutoff time.Time) (int64, error)
	findByRangeFunc  func(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error)
}

func (m *mockSlotRepo) Claim(ctx context.Context, resourceID string, slotStart time.Time, bookingID string, holdExpiresAt time.Time) error {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, resourceID, slotStart, bookingID, holdExpiresAt)
	}
	return nil
}

func (m *mockSlotRepo) Book(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
	if m.bookFunc != nil {
		return m.bookFunc(ctx, resourceID, slotStart, bookingID)
	}
	return nil
}

func (m *mockSlotRepo) Release(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, resourceID, slotStart, bookingID)
	}
	return nil
}

func (m *mockSlotRepo) ForceRelease(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.forceReleaseFunc != nil {
		return m.forceReleaseFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *mockSlotRepo) FindByID(ctx context.Context, resourceID string, slotStart time.Time) (*model.Slot, error) {
	return nil, bookingserrors.ErrNotFound
}

func (m *mockSlotRepo) FindByResourceAndRange(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error) {
	if m.findByRangeFunc != nil {
		return m.findByRangeFunc(ctx, resourceID, from, to)
	}
	return nil, nil
}

type mockEventRepo struct {
	recordFunc func(ctx context.Context, event *model.PaymentEvent) error
}

func (m *mockEventRepo) Record(ctx context.Context, event *model.PaymentEvent) error {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, event)
	}
	return nil
}

type mockGateway struct {
	intentStatusFunc func(ctx context.Context, ref string) (*gateway.Intent, error)
}

func (m *mockGateway) IntentStatus(ctx context.Context, ref string) (*gateway.Intent, error) {
	if m.intentStatusFunc != nil {
		return m.intentStatusFunc(ctx, ref)
	}
	return nil, gateway.ErrIntentNotFound
}

type capturingPublisher struct {
	messages []kafka.Message
}

func (p *capturingPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	var types []string
	for _, msg := range p.messages {
		types = append(types, msg.GetEventType())
	}
	return types
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type serviceFixture struct {
	svc       BookingService
	repo      *mockBookingRepo
	slots     *mockSlotRepo
	eventRepo *mockEventRepo
	gw        *mockGateway
	published *capturingPublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		HoldTTL:          10 * time.Minute,
		DayFirstSlotHour: 8,
		DayLastSlotHour:  19,
		SlotDuration:     time.Hour,
		Log:              log,
	}

	f := &serviceFixture{
		repo:      &mockBookingRepo{},
		slots:     &mockSlotRepo{},
		eventRepo: &mockEventRepo{},
		gw:        &mockGateway{},
		published: &capturingPublisher{},
	}
	f.svc = NewBookingService(
		f.repo,
		f.slots,
		f.eventRepo,
		f.gw,
		events.NewEmitter(f.published, "test", log),
		validator.NewBookingValidator(log),
		cfg,
	)
	return f
}

func reserveRequest() *model.Booking {
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	return &model.Booking{
		ResourceID:  "therapist-42",
		SlotStart:   time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, time.UTC),
		ClientID:    "client-7",
		AmountCents: 9000,
		Currency:    "USD",
	}
}

// ────────────────────────────────────────────────
// Reserve
// ────────────────────────────────────────────────

func TestReserveCreatesPendingBooking(t *testing.T) {
	f := newServiceFixture(t)
	booking := reserveRequest()

	var claimedBookingID string
	f.slots.claimFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string, holdExpiresAt time.Time) error {
		claimedBookingID = bookingID
		return nil
	}

	if err := f.svc.Reserve(context.Background(), booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.ID == "" {
		t.Error("expected booking ID to be assigned")
	}
	if booking.Status != model.BookingPendingPayment {
		t.Errorf("expected pending_payment, got %s", booking.Status)
	}
	if booking.HoldExpiresAt.Before(time.Now().Add(9 * time.Minute)) {
		t.Errorf("expected hold to run ~10m, got %s", booking.HoldExpiresAt)
	}
	if claimedBookingID != booking.ID {
		t.Errorf("slot claimed for %q, booking is %q", claimedBookingID, booking.ID)
	}
	if got := f.published.eventTypes(); len(got) != 1 || got[0] != events.EventBookingReserved {
		t.Errorf("expected [booking.reserved], got %v", got)
	}
}

func TestReserveSlotTaken(t *testing.T) {
	f := newServiceFixture(t)
	f.slots.claimFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string, holdExpiresAt time.Time) error {
		return bookingserrors.ErrSlotTaken
	}

	created := false
	f.repo.createFunc = func(ctx context.Context, booking *model.Booking) error {
		created = true
		return nil
	}

	err := f.svc.Reserve(context.Background(), reserveRequest())
	if !apperrors.IsCode(err, apperrors.CodeSlotUnavailable) {
		t.Fatalf("expected SLOT_UNAVAILABLE, got %v", err)
	}
	if created {
		t.Error("no booking may be created when the claim loses")
	}
	if len(f.published.messages) != 0 {
		t.Error("no event may be published when the claim loses")
	}
}

func TestReserveReleasesSlotWhenCreateFails(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.createFunc = func(ctx context.Context, booking *model.Booking) error {
		return errors.New("write concern error")
	}

	released := false
	f.slots.releaseFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		released = true
		return nil
	}

	err := f.svc.Reserve(context.Background(), reserveRequest())
	if !apperrors.IsCode(err, apperrors.CodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
	if !released {
		t.Error("slot must be released when the booking create fails")
	}
}

func TestReserveRejectsOffGridSlot(t *testing.T) {
	f := newServiceFixture(t)

	booking := reserveRequest()
	booking.SlotStart = booking.SlotStart.Add(17 * time.Minute)

	err := f.svc.Reserve(context.Background(), booking)
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for off-grid slot, got %v", err)
	}
}

func TestReserveRejectsOutsideBookableHours(t *testing.T) {
	f := newServiceFixture(t)

	booking := reserveRequest()
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	booking.SlotStart = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 23, 0, 0, 0, time.UTC)

	err := f.svc.Reserve(context.Background(), booking)
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for slot outside hours, got %v", err)
	}
}

func TestReserveRejectsInvalidBooking(t *testing.T) {
	f := newServiceFixture(t)

	booking := reserveRequest()
	booking.AmountCents = 0

	err := f.svc.Reserve(context.Background(), booking)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Cancel
// ────────────────────────────────────────────────

func TestCancelReleasesSlot(t *testing.T) {
	f := newServiceFixture(t)
	stored := reserveRequest()
	stored.ID = "0c9e2f9a-9d08-4a3b-8a61-000000000001"
	stored.Status = model.BookingPendingPayment

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}

	released := false
	f.slots.releaseFunc = func(ctx context.Context, resourceID string, slotStart time.Time, bookingID string) error {
		released = true
		return nil
	}

	booking, err := f.svc.Cancel(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingCancelled {
		t.Errorf("expected cancelled, got %s", booking.Status)
	}
	if !released {
		t.Error("slot must be released on cancel")
	}
	if got := f.published.eventTypes(); len(got) != 1 || got[0] != events.EventBookingCancelled {
		t.Errorf("expected [booking.cancelled], got %v", got)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	stored := reserveRequest()
	stored.ID = "0c9e2f9a-9d08-4a3b-8a61-000000000002"
	stored.Status = model.BookingCancelled

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		t.Error("no transition may run for an already cancelled booking")
		return nil
	}

	booking, err := f.svc.Cancel(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingCancelled {
		t.Errorf("expected cancelled, got %s", booking.Status)
	}
}

func TestCancelPaidBookingRejected(t *testing.T) {
	f := newServiceFixture(t)
	stored := reserveRequest()
	stored.ID = "0c9e2f9a-9d08-4a3b-8a61-000000000003"
	stored.Status = model.BookingPaid

	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return stored, nil
	}

	_, err := f.svc.Cancel(context.Background(), stored.ID)
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestCancelLostRaceToConcurrentCancel(t *testing.T) {
	f := newServiceFixture(t)
	stored := reserveRequest()
	stored.ID = "0c9e2f9a-9d08-4a3b-8a61-000000000004"
	stored.Status = model.BookingPendingPayment

	calls := 0
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		calls++
		if calls > 1 {
			// Reload after the lost race sees the other cancel
			done := *stored
			done.Status = model.BookingCancelled
			return &done, nil
		}
		return stored, nil
	}
	f.repo.transitionFunc = func(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, set bson.M) error {
		return bookingserrors.ErrStaleTransition
	}

	booking, err := f.svc.Cancel(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("expected idempotent success after lost cancel race, got %v", err)
	}
	if booking.Status != model.BookingCancelled {
		t.Errorf("expected cancelled, got %s", booking.Status)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GetByID(context.Background(), "0c9e2f9a-9d08-4a3b-8a61-00000000ffff")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
