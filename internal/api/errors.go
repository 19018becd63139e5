package api

import (
	"errors"
	"net/http"

	"github.com/membo-ai/study-engine/internal/api/shared"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/service/insights"
	"github.com/membo-ai/study-engine/internal/service/scheduler"
	"github.com/membo-ai/study-engine/internal/service/study"
	"github.com/membo-ai/study-engine/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authorization errors
	case errors.Is(err, study.ErrCardNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, study.ErrSessionNotFound),
		errors.Is(err, study.ErrCardNotFound),
		errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound

	// Precondition failures
	case errors.Is(err, study.ErrInvalidTransition):
		return http.StatusConflict

	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, study.ErrInvalidRating),
		errors.Is(err, study.ErrInvalidConfidence),
		errors.Is(err, insights.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidStudyMode),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Special cases
	case errors.Is(err, scheduler.ErrNoCardsDue):
		return http.StatusNoContent

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message based
// on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, study.ErrCardNotOwned):
		return "You do not own this card"

	case errors.Is(err, study.ErrSessionNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		return "Session not found"

	case errors.Is(err, study.ErrCardNotFound),
		errors.Is(err, store.ErrCardNotFound):
		return "Card not found"

	case errors.Is(err, study.ErrInvalidTransition):
		return "Operation not allowed in the session's current state"

	case errors.Is(err, store.ErrVersionConflict):
		return "Card was modified concurrently, please retry"

	case errors.Is(err, study.ErrInvalidRating):
		return "Rating must be between 0 and 5"

	case errors.Is(err, study.ErrInvalidConfidence):
		return "Confidence must be between 0 and 1"

	case errors.Is(err, insights.ErrInvalidRange):
		return "Report range end precedes its start"

	case errors.Is(err, domain.ErrInvalidStudyMode):
		return "Invalid study mode"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid identifier"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps the error to a status code and writes the response,
// logging the full error. An empty userMessage falls back to the safe
// message for the error type.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)

	if status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}

	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}
