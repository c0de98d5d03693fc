package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"therabook/pkg/logger"
	"therabook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockAvailabilityService struct {
	getDayFunc func(ctx context.Context, resourceID string, day time.Time) ([]model.SlotView, error)
}

func (m *mockAvailabilityService) GetDay(ctx context.Context, resourceID string, day time.Time) ([]model.SlotView, error) {
	if m.getDayFunc != nil {
		return m.getDayFunc(ctx, resourceID, day)
	}
	return nil, nil
}

func newAvailabilityRouter(svc *mockAvailabilityService) *httprouter.Router {
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Service: "test"})
	router := httprouter.New()
	NewAvailabilityHandler(svc, log).RegisterRoutes(router)
	return router
}

func TestAvailabilityHandlerReturnsGrid(t *testing.T) {
	var gotResource string
	var gotDay time.Time
	svc := &mockAvailabilityService{
		getDayFunc: func(ctx context.Context, resourceID string, day time.Time) ([]model.SlotView, error) {
			gotResource, gotDay = resourceID, day
			return []model.SlotView{
				{SlotStart: day.Add(9 * time.Hour), Status: model.SlotOpen},
				{SlotStart: day.Add(10 * time.Hour), Status: model.SlotHeld},
			}, nil
		},
	}
	router := newAvailabilityRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/therapist-42?date=2026-09-01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotResource != "therapist-42" {
		t.Errorf("expected therapist-42, got %s", gotResource)
	}
	if gotDay.Format("2006-01-02") != "2026-09-01" {
		t.Errorf("expected 2026-09-01, got %s", gotDay)
	}

	var resp struct {
		Data []model.SlotView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(resp.Data))
	}
	if resp.Data[1].Status != model.SlotHeld {
		t.Errorf("expected held, got %s", resp.Data[1].Status)
	}
}

func TestAvailabilityHandlerBadDate(t *testing.T) {
	router := newAvailabilityRouter(&mockAvailabilityService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/therapist-42?date=tomorrow", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
