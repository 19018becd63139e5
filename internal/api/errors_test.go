package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/service/insights"
	"github.com/membo-ai/study-engine/internal/service/scheduler"
	"github.com/membo-ai/study-engine/internal/service/study"
	"github.com/membo-ai/study-engine/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"Card Not Owned", study.ErrCardNotOwned, http.StatusForbidden},
		{"Session Not Found", study.ErrSessionNotFound, http.StatusNotFound},
		{"Card Not Found", study.ErrCardNotFound, http.StatusNotFound},
		{"Store Card Not Found", store.ErrCardNotFound, http.StatusNotFound},
		{"Invalid Transition", study.ErrInvalidTransition, http.StatusConflict},
		{"Version Conflict", store.ErrVersionConflict, http.StatusConflict},
		{"Invalid Rating", study.ErrInvalidRating, http.StatusBadRequest},
		{"Invalid Confidence", study.ErrInvalidConfidence, http.StatusBadRequest},
		{"Invalid Report Range", insights.ErrInvalidRange, http.StatusBadRequest},
		{"Invalid Study Mode", domain.ErrInvalidStudyMode, http.StatusBadRequest},
		{"Validation Failure", domain.ErrValidation, http.StatusBadRequest},
		{"No Cards Due", scheduler.ErrNoCardsDue, http.StatusNoContent},
		{"Unknown Error", errors.New("database exploded"), http.StatusInternalServerError},
		{
			"Wrapped Sentinel",
			fmt.Errorf("processing review: %w", study.ErrCardNotOwned),
			http.StatusForbidden,
		},
		{
			"Service Error Wrapper",
			&study.ServiceError{Operation: "pause", Err: study.ErrInvalidTransition},
			http.StatusConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MapErrorToStatusCode(tc.err); got != tc.expected {
				t.Errorf("expected status %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Nil Error", nil, "An unexpected error occurred"},
		{"Card Not Owned", study.ErrCardNotOwned, "You do not own this card"},
		{"Session Not Found", study.ErrSessionNotFound, "Session not found"},
		{"Invalid Rating", study.ErrInvalidRating, "Rating must be between 0 and 5"},
		{
			"Internal Details Hidden",
			errors.New("pq: connection refused host=10.0.0.5"),
			"An unexpected error occurred",
		},
		{
			"Wrapped Sentinel",
			fmt.Errorf("completing session: %w", study.ErrSessionNotFound),
			"Session not found",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := GetSafeErrorMessage(tc.err); got != tc.expected {
				t.Errorf("expected message %q, got %q", tc.expected, got)
			}
		})
	}
}
