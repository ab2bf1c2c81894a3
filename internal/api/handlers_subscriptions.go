package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brandflow/hookd/internal/dispatch"
	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/registry"
)

type SubscriptionHandler struct {
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
}

func NewSubscriptionHandler(reg *registry.Registry, dispatcher *dispatch.Dispatcher) *SubscriptionHandler {
	return &SubscriptionHandler{reg: reg, dispatcher: dispatcher}
}

func (h *SubscriptionHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": models.EventCatalog})
}

type createSubscriptionRequest struct {
	Name      string              `json:"name"`
	URL       string              `json:"url"`
	Events    []string            `json:"events"`
	ClientID  string              `json:"client_id"`
	Secret    string              `json:"secret"`
	Headers   map[string]string   `json:"headers"`
	TimeoutMs int                 `json:"timeout_ms"`
	Retry     *models.RetryPolicy `json:"retry_policy"`
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if req.ClientID != id.TenantID {
		writeError(w, http.StatusForbidden, "client_id does not match caller tenant")
		return
	}

	sub, err := h.reg.Create(r.Context(), id, registry.CreateInput{
		Name:      req.Name,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		Headers:   req.Headers,
		TimeoutMs: req.TimeoutMs,
		Retry:     req.Retry,
	})
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	// The one response carrying the full secret. Callers must capture it
	// now; every later read returns the masked form.
	writeJSON(w, http.StatusCreated, sub)
}

type subscriptionWithStats struct {
	*models.Subscription
	Stats *registry.SubscriptionStats `json:"stats,omitempty"`
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	subs, err := h.reg.List(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	items := make([]subscriptionWithStats, 0, len(subs))
	for i := range subs {
		stats, err := h.reg.SubscriptionStats(r.Context(), &subs[i])
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		items = append(items, subscriptionWithStats{Subscription: &subs[i], Stats: stats})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	subID := chi.URLParam(r, "id")

	sub, err := h.reg.Get(r.Context(), id, subID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	stats, err := h.reg.SubscriptionStats(r.Context(), sub)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	attempts, err := h.reg.RecentAttempts(r.Context(), id, subID, 10)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	audit, err := h.reg.AuditHistory(r.Context(), id, subID, 10)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	if attempts == nil {
		attempts = []models.DeliveryAttempt{}
	}
	if audit == nil {
		audit = []models.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subscription":    sub,
		"stats":           stats,
		"recent_attempts": attempts,
		"audit_log":       audit,
	})
}

type updateSubscriptionRequest struct {
	Name      *string             `json:"name"`
	URL       *string             `json:"url"`
	Events    []string            `json:"events"`
	Headers   map[string]string   `json:"headers"`
	TimeoutMs *int                `json:"timeout_ms"`
	Retry     *models.RetryPolicy `json:"retry_policy"`
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	subID := chi.URLParam(r, "id")

	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.reg.Update(r.Context(), id, subID, registry.UpdateInput{
		Name:      req.Name,
		URL:       req.URL,
		Events:    req.Events,
		Headers:   req.Headers,
		TimeoutMs: req.TimeoutMs,
		Retry:     req.Retry,
	})
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	subID := chi.URLParam(r, "id")

	if err := h.reg.Delete(r.Context(), id, subID); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	subID := chi.URLParam(r, "id")

	sub, err := h.reg.Toggle(r.Context(), id, subID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) RegenerateSecret(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	subID := chi.URLParam(r, "id")

	sub, err := h.reg.RegenerateSecret(r.Context(), id, subID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	// Full secret, once, same as at creation.
	writeJSON(w, http.StatusOK, map[string]string{"secret": sub.Secret})
}

func (h *SubscriptionHandler) Test(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	subID := chi.URLParam(r, "id")

	// Mutating-equivalent action: tests consume real delivery slots.
	if !id.Role.CanManageWebhooks() {
		writeRegistryError(w, registry.ErrForbidden)
		return
	}

	sub, err := h.reg.Resolve(r.Context(), id, subID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	res, err := h.dispatcher.DispatchTest(r.Context(), sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "test delivery failed to start")
		return
	}
	h.reg.RecordTest(r.Context(), id, sub, res.Success, res.StatusCode)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     res.Success,
		"status_code": res.StatusCode,
		"response":    res.ResponseBody,
		"delivery_id": res.DeliveryID,
	})
}

func (h *SubscriptionHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	subID := chi.URLParam(r, "id")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	attempts, err := h.reg.RecentAttempts(r.Context(), id, subID, limit)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	if attempts == nil {
		attempts = []models.DeliveryAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *SubscriptionHandler) TenantStats(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	stats, err := h.reg.TenantStats(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
