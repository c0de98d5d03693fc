package handler

import (
	"encoding/json"
	"net/http"

	"therabook/internal/bookings/service"
	httputil "therabook/pkg/http"
	"therabook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type WebhookHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewWebhookHandler(service service.BookingService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log,
	}
}

// GatewayEvent is the shape the payment provider delivers. Only the event
// id, type and intent id are read; the rest of the payload is ignored in
// favor of re-querying the provider.
type GatewayEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

func (h *WebhookHandler) ReceivePaymentEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var event GatewayEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid event payload",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ReceivePaymentEvent", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	err := h.service.HandleGatewayEvent(r.Context(), event.ID, event.Data.Object.ID, event.Type)
	if err != nil {
		// A non-2xx answer makes the provider redeliver, which is what we
		// want for transient failures; the event store dedupes replays.
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ReceivePaymentEvent", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "ReceivePaymentEvent", "operation", "WriteJSON", "error", err)
	}
}

func (h *WebhookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/webhooks/payments", h.ReceivePaymentEvent)
}
