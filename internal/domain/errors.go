// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidStudyMode is returned when a study mode is not one of the
	// known modes (standard, voice, quiz).
	ErrInvalidStudyMode = errors.New("invalid study mode")

	// ErrInvalidRating is returned when a review rating is outside [0, 5].
	ErrInvalidRating = errors.New("rating must be between 0 and 5")

	// ErrInvalidTransition is returned when a session status change is not
	// permitted by the lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid session status transition")

	// ErrInvalidCardContent is returned when card content is not valid JSON.
	ErrInvalidCardContent = errors.New("invalid card content")
)
