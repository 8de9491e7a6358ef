package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fentz26/pacer/internal/apperr"
)

// Sentinel errors for request handling.
var (
	ErrInvalidJSON      = errors.New("invalid json")
	ErrMissingID        = errors.New("id required")
	ErrInvalidHour      = errors.New("hour must be an integer")
	ErrInvalidDays      = errors.New("days must be a positive integer")
	ErrRouteNotFound    = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidTransition:
		return http.StatusBadRequest
	case apperr.KindInvariantViolation:
		return http.StatusConflict
	case apperr.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindRelayUnavailable:
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrMissingID),
		errors.Is(err, ErrInvalidHour), errors.Is(err, ErrInvalidDays):
		return http.StatusBadRequest
	case errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		resp.Kind = kind.String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(err))
	json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
