package service

import (
	"context"
	"time"

	"therabook/internal/bookings/repository"
	"therabook/pkg/config"
	apperrors "therabook/pkg/errors"
	"therabook/pkg/model"
	"therabook/pkg/sanitizer"
)

type AvailabilityService interface {
	// GetDay returns the full slot grid for one resource and UTC day.
	// Slots with no stored claim and slots whose hold lapsed both read as
	// open; callers never see an expired hold.
	GetDay(ctx context.Context, resourceID string, day time.Time) ([]model.SlotView, error)
}

type availabilityService struct {
	slotRepo repository.SlotRepository
	cfg      *config.Config
}

func NewAvailabilityService(slotRepo repository.SlotRepository, cfg *config.Config) AvailabilityService {
	return &availabilityService{
		slotRepo: slotRepo,
		cfg:      cfg,
	}
}

func (s *availabilityService) GetDay(ctx context.Context, resourceID string, day time.Time) ([]model.SlotView, error) {
	resourceID = sanitizer.SanitizeIdentifier(resourceID)
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), s.cfg.DayFirstSlotHour, 0, 0, 0, time.UTC)
	// The last slot starts at DayLastSlotHour, so the range end is one
	// duration past it.
	to := time.Date(day.Year(), day.Month(), day.Day(), s.cfg.DayLastSlotHour, 0, 0, 0, time.UTC).Add(s.cfg.SlotDuration)

	slots, err := s.slotRepo.FindByResourceAndRange(ctx, resourceID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to load slots for availability",
			"resource_id", resourceID, "day", day, "error", err)
		return nil, apperrors.Internal("Failed to load availability", err)
	}

	claimed := make(map[string]*model.Slot, len(slots))
	for _, slot := range slots {
		claimed[slot.ID] = slot
	}

	now := time.Now()
	var views []model.SlotView
	for start := from; start.Before(to); start = start.Add(s.cfg.SlotDuration) {
		view := model.SlotView{SlotStart: start, Status: model.SlotOpen}

		if slot, ok := claimed[model.SlotID(resourceID, start)]; ok {
			switch {
			case slot.HoldExpired(now):
				view.Status = model.SlotOpen
			default:
				view.Status = slot.Status
			}
		}

		views = append(views, view)
	}

	return views, nil
}
