package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"accounting/internal/core"
	"accounting/internal/log"
)

var (
	errUnauthenticated = errors.New("actor identity required")
	errForbidden       = errors.New("admin role required")
)

// envelope is the body of every JSON response.
type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Status:  status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
}

func ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, message, data)
}

func created(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, message, data)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it in the envelope. Server-side failures
// get a generic message; their detail stays in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())

	message := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		logger.ErrorContext(r.Context(), "Storage unavailable", log.FieldError, err)
		message = "storage temporarily unavailable"
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err)
		message = "internal error"
	default:
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	writeJSON(w, status, message, nil)
}
