// Package handlers contains the HTTP glue over the access-control core.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteDenied maps a deny decision to its HTTP contract: NotFound to 404,
// Forbidden to 403.
func WriteDenied(w http.ResponseWriter, decision *services.Decision) {
	switch decision.Reason {
	case services.DenyForbidden:
		_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "Access denied")
	default:
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
	}
}

// WriteServiceError maps expected service outcomes to HTTP statuses.
// Anything unmatched is an internal error; the detail stays in the logs.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrForbidden):
		_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "Access denied")
	case errors.Is(err, apperrors.ErrExpired):
		_ = ErrorResponse(w, http.StatusGone, "expired", "Token expired")
	case errors.Is(err, apperrors.ErrEmailMismatch):
		_ = ErrorResponse(w, http.StatusForbidden, "email_mismatch", "Invitation is bound to a different email")
	case errors.Is(err, apperrors.ErrConflict):
		_ = ErrorResponse(w, http.StatusConflict, "conflict", "Conflicting operation")
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		_ = ErrorResponse(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, apperrors.ErrInvalidRole), errors.Is(err, apperrors.ErrInvalidPermission):
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
