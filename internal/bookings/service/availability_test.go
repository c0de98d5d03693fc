package service

import (
	"context"
	"testing"
	"time"

	"therabook/pkg/config"
	"therabook/pkg/logger"
	"therabook/pkg/model"
)

func newAvailabilityFixture(t *testing.T) (*mockSlotRepo, AvailabilityService) {
	t.Helper()

	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		DayFirstSlotHour: 9,
		DayLastSlotHour:  11,
		SlotDuration:     time.Hour,
		Log:              log,
	}

	slots := &mockSlotRepo{}
	return slots, NewAvailabilityService(slots, cfg)
}

func TestGetDaySynthesizesFullGrid(t *testing.T) {
	slots, svc := newAvailabilityFixture(t)
	slots.findByRangeFunc = func(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error) {
		return nil, nil
	}

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	views, err := svc.GetDay(context.Background(), "therapist-42", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 9:00, 10:00, 11:00
	if len(views) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(views))
	}
	for i, view := range views {
		if view.Status != model.SlotOpen {
			t.Errorf("slot %d: expected open, got %s", i, view.Status)
		}
		wantHour := 9 + i
		if view.SlotStart.Hour() != wantHour {
			t.Errorf("slot %d: expected hour %d, got %d", i, wantHour, view.SlotStart.Hour())
		}
	}
}

func TestGetDayOverlaysClaimedSlots(t *testing.T) {
	slots, svc := newAvailabilityFixture(t)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	tenAM := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	holdUntil := time.Now().Add(10 * time.Minute)

	slots.findByRangeFunc = func(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error) {
		return []*model.Slot{
			{
				ID:            model.SlotID("therapist-42", tenAM),
				ResourceID:    "therapist-42",
				SlotStart:     tenAM,
				Status:        model.SlotHeld,
				HoldExpiresAt: &holdUntil,
			},
		}, nil
	}

	views, err := svc.GetDay(context.Background(), "therapist-42", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if views[0].Status != model.SlotOpen {
		t.Errorf("9:00 should be open, got %s", views[0].Status)
	}
	if views[1].Status != model.SlotHeld {
		t.Errorf("10:00 should be held, got %s", views[1].Status)
	}
}

func TestGetDayReportsExpiredHoldsAsOpen(t *testing.T) {
	slots, svc := newAvailabilityFixture(t)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	nineAM := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	lapsed := time.Now().Add(-time.Minute)

	slots.findByRangeFunc = func(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error) {
		return []*model.Slot{
			{
				ID:            model.SlotID("therapist-42", nineAM),
				ResourceID:    "therapist-42",
				SlotStart:     nineAM,
				Status:        model.SlotHeld,
				HoldExpiresAt: &lapsed,
			},
		}, nil
	}

	views, err := svc.GetDay(context.Background(), "therapist-42", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if views[0].Status != model.SlotOpen {
		t.Errorf("expired hold must read as open, got %s", views[0].Status)
	}
}

func TestGetDayBookedSlotStaysBooked(t *testing.T) {
	slots, svc := newAvailabilityFixture(t)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	elevenAM := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)

	slots.findByRangeFunc = func(ctx context.Context, resourceID string, from, to time.Time) ([]*model.Slot, error) {
		return []*model.Slot{
			{
				ID:         model.SlotID("therapist-42", elevenAM),
				ResourceID: "therapist-42",
				SlotStart:  elevenAM,
				Status:     model.SlotBooked,
			},
		}, nil
	}

	views, err := svc.GetDay(context.Background(), "therapist-42", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if views[2].Status != model.SlotBooked {
		t.Errorf("11:00 should be booked, got %s", views[2].Status)
	}
}

func TestGetDayEmptyResourceRejected(t *testing.T) {
	_, svc := newAvailabilityFixture(t)

	if _, err := svc.GetDay(context.Background(), "  ", time.Now()); err == nil {
		t.Fatal("expected error for empty resource ID")
	}
}
