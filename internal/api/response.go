package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brandflow/hookd/internal/registry"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Invalid []string `json:"invalid_event_types,omitempty"`
	Valid   []string `json:"valid_event_types,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeRegistryError maps the registry's error taxonomy onto HTTP statuses.
func writeRegistryError(w http.ResponseWriter, err error) {
	var validationErr *registry.ValidationError
	var eventsErr *registry.InvalidEventTypesError
	var unreachableErr *registry.EndpointUnreachableError

	switch {
	case errors.As(err, &eventsErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   eventsErr.Error(),
			Invalid: eventsErr.Invalid,
			Valid:   eventsErr.Catalog,
		})
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, registry.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, registry.ErrForbidden):
		writeError(w, http.StatusForbidden, "insufficient role")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "subscription not found")
	case errors.As(err, &unreachableErr):
		writeError(w, http.StatusUnprocessableEntity, unreachableErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
