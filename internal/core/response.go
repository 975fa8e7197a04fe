// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// Envelope is the uniform response shape: "success" for 2xx, "fail" for
// client-caused 4xx, "error" for server-caused 5xx.
type Envelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(env)
}

func OK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Status: statusSuccess, Data: data})
}

func OKMessage(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		Status:  statusSuccess,
		Message: message,
		Data:    data,
	})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Envelope{Status: statusSuccess, Data: data})
}

// Paginated wraps a list page with its pagination block.
func Paginated(w http.ResponseWriter, items, pagination any) {
	writeJSON(w, http.StatusOK, Envelope{
		Status: statusSuccess,
		Data: map[string]any{
			"items":      items,
			"pagination": pagination,
		},
	})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func BadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Status:  statusFail,
		Message: message,
	})
}

func ValidationFailed(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Status:  statusFail,
		Message: FormatValidationError(err),
		Errors:  ValidationDetails(err),
	})
}

func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	writeJSON(w, http.StatusUnauthorized, Envelope{
		Status:  statusFail,
		Message: message,
	})
}

func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "insufficient permissions"
	}
	writeJSON(w, http.StatusForbidden, Envelope{
		Status:  statusFail,
		Message: message,
	})
}

func NotFound(w http.ResponseWriter, resource string) {
	writeJSON(w, http.StatusNotFound, Envelope{
		Status:  statusFail,
		Message: resource + " not found",
	})
}

// InternalServerError logs the full error server-side and returns a generic
// message; internals never reach the client.
func InternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal error", "error", err)
	writeJSON(w, http.StatusInternalServerError, Envelope{
		Status:  statusError,
		Message: "something went wrong",
	})
}

// JSONError maps an error to the envelope. AppErrors keep their status and
// message; known sentinels map to their canonical status; everything else is
// a generic 500.
func JSONError(w http.ResponseWriter, err error) {
	if appErr, ok := AsAppError(err); ok {
		status := statusFail
		if appErr.Status >= http.StatusInternalServerError {
			status = statusError
		}
		writeJSON(w, appErr.Status, Envelope{
			Status:  status,
			Message: appErr.Message,
		})
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, Envelope{Status: statusFail, Message: "resource not found"})
	case errors.Is(err, ErrDuplicateKey):
		writeJSON(w, http.StatusBadRequest, Envelope{Status: statusFail, Message: "duplicate resource"})
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, Envelope{Status: statusFail, Message: "invalid input"})
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenStale):
		writeJSON(w, http.StatusUnauthorized, Envelope{Status: statusFail, Message: "authentication required"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, Envelope{Status: statusFail, Message: "insufficient permissions"})
	case errors.Is(err, ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, Envelope{Status: statusFail, Message: "too many requests"})
	default:
		InternalServerError(w, err)
	}
}
