package api

import (
	"encoding/json"
	"net/http"

	"github.com/brandflow/hookd/internal/dispatch"
	"github.com/brandflow/hookd/internal/models"
)

// DispatchHandler is the internal event-ingestion surface: the rest of the
// application posts domain events here and they fan out to subscribers.
type DispatchHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewDispatchHandler(dispatcher *dispatch.Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher}
}

type dispatchRequest struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

const maxEventSize = 256 * 1024 // 256KB

func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxEventSize)
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}
	if !models.ValidEventType(req.Event) {
		writeError(w, http.StatusBadRequest, "unknown event type: "+req.Event)
		return
	}

	// Delivery outcomes never surface here; the producer's operation is
	// done once fan-out settles.
	if err := h.dispatcher.Dispatch(r.Context(), req.Event, req.Data, id.TenantID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve subscriptions")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
