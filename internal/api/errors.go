package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/phrazzld/taskboard-scheduler/internal/api/shared"
	"github.com/phrazzld/taskboard-scheduler/internal/assignment"
	"github.com/phrazzld/taskboard-scheduler/internal/scheduler"
	"github.com/phrazzld/taskboard-scheduler/internal/service/auth"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

var (
	// ErrInvalidID indicates a path parameter is not a valid UUID.
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidQuery indicates a malformed query parameter.
	ErrInvalidQuery = errors.New("invalid query parameter")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidRole):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrInsufficientRole):
		return http.StatusForbidden

	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, assignment.ErrSubscriberNotFound),
		errors.Is(err, store.ErrSubscriberNotFound):
		return http.StatusNotFound

	case errors.Is(err, assignment.ErrSubscriberNotEligible),
		errors.Is(err, assignment.ErrAssignmentInProgress):
		return http.StatusConflict

	case errors.Is(err, scheduler.ErrRunTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidRole):
		return "Invalid token"
	case errors.Is(err, auth.ErrInsufficientRole):
		return "Admin access required"
	case errors.Is(err, ErrInvalidID):
		return "Invalid subscriber id"
	case errors.Is(err, ErrInvalidQuery):
		return "Invalid query parameter"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, assignment.ErrSubscriberNotFound),
		errors.Is(err, store.ErrSubscriberNotFound):
		return "Subscriber not found"
	case errors.Is(err, assignment.ErrSubscriberNotEligible):
		return "Subscriber is not eligible for automatic tasks"
	case errors.Is(err, assignment.ErrAssignmentInProgress):
		return "Assignment already in progress for subscriber"
	case errors.Is(err, scheduler.ErrRunTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return "Run did not finish in time"
	case errors.Is(err, store.ErrUnavailable):
		return "Service temporarily unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted details. A non-empty fallback replaces the generic message
// for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		msg = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}
