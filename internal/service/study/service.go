// Package study orchestrates the lifecycle of study sessions: an in-memory
// table of active sessions, the {active, paused, completed} state machine,
// review processing against the scheduler, and the inactivity timeout.
package study

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/service/insights"
)

// SessionStart is the result of creating a session: the session itself plus
// the due cards selected for it and the advisory batch size.
type SessionStart struct {
	Session   *domain.StudySession `json:"session"`
	DueCards  []*domain.Card       `json:"due_cards"`
	BatchSize int                  `json:"batch_size"`
}

// ReviewResult is the outcome of processing one card review: the refreshed
// session, the card with its new schedule, and the next due card if any.
type ReviewResult struct {
	Session     *domain.StudySession `json:"session"`
	UpdatedCard *domain.Card         `json:"updated_card"`
	// NextCard is nil when no further cards are due.
	NextCard *domain.Card `json:"next_card,omitempty"`
}

// SessionSummary is the composite result of completing a session.
type SessionSummary struct {
	Session *domain.StudySession        `json:"session"`
	Streak  *insights.StreakAnalysis    `json:"streak"`
	Report  *insights.PerformanceReport `json:"report"`
}

// StudyService manages active study sessions. All mutating operations on a
// given session id are mutually exclusive; sessions of different users
// proceed fully in parallel.
type StudyService interface {
	// CreateSession builds an active session for the user, selects its due
	// cards, arms the inactivity timeout, and stores the session in the
	// active table. A zero-valued settings argument falls back to the
	// mode's defaults. Settings are immutable after creation.
	CreateSession(
		ctx context.Context,
		userID uuid.UUID,
		mode domain.StudyMode,
		tier domain.SubscriptionTier,
		settings domain.SessionSettings,
	) (*SessionStart, error)

	// ProcessCardReview applies one review: schedules the card, persists
	// the write-back, updates session counters, refreshes the performance
	// aggregate, and resets the inactivity timeout. The review is atomic
	// from the caller's point of view: on error nothing is recorded.
	// Returns ErrSessionNotFound for unknown sessions, ErrInvalidTransition
	// when the session is not active, ErrCardNotFound / ErrCardNotOwned for
	// bad card references, and ErrInvalidRating for out-of-range ratings.
	ProcessCardReview(
		ctx context.Context,
		sessionID uuid.UUID,
		cardID uuid.UUID,
		rating int,
		confidence float64,
	) (*ReviewResult, error)

	// PauseSession moves an active session to paused and disarms the
	// inactivity timeout. Returns ErrInvalidTransition unless the session
	// is active.
	PauseSession(ctx context.Context, sessionID uuid.UUID) (*domain.StudySession, error)

	// ResumeSession moves a paused session back to active, shifting its
	// start time forward by the pause duration so elapsed-time accounting
	// excludes the pause, and re-arms the inactivity timeout. Returns
	// ErrInvalidTransition unless the session is paused.
	ResumeSession(ctx context.Context, sessionID uuid.UUID) (*domain.StudySession, error)

	// CompleteSession finalizes the session: disarms the timeout, runs the
	// final analysis, streak assessment and performance report, stamps the
	// end time, removes the session from the active table, and emits a
	// session-completed event for asynchronous archival.
	CompleteSession(ctx context.Context, sessionID uuid.UUID) (*SessionSummary, error)

	// GetSessionState returns a freshly analyzed snapshot of the session
	// without mutating lifecycle state.
	GetSessionState(ctx context.Context, sessionID uuid.UUID) (*domain.StudySession, error)

	// Shutdown disarms all timers. In-flight operations finish; no new
	// timeouts fire afterwards.
	Shutdown()
}

// Common error types for StudyService
var (
	// ErrSessionNotFound indicates the session id is not in the active table.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition indicates the operation is not allowed in the
	// session's current state.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrCardNotFound indicates the reviewed card does not exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrCardNotOwned indicates the card belongs to a different user than
	// the session's owner.
	ErrCardNotOwned = errors.New("card not owned by session user")

	// ErrInvalidRating indicates a rating outside [0, 5].
	ErrInvalidRating = errors.New("rating must be between 0 and 5")

	// ErrInvalidConfidence indicates a confidence outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)

// ServiceError wraps errors from the study service with additional context
// for errors.As-based handling.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "process_card_review")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}
