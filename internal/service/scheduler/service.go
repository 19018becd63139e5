// Package scheduler selects which cards a study session should surface and
// how many. Selection is retention-first: the cards the learner is most
// likely to have forgotten come back first.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
)

// Batch sizing constants. The batch size is advisory input to session
// creation, not an enforced cap.
const (
	// DefaultBatchSize is used when the user's mean retention gives no
	// reason to adjust.
	DefaultBatchSize = 20

	// RaisedBatchSize applies when mean retention exceeds the high-water
	// mark; a well-retaining learner can take on more cards.
	RaisedBatchSize = 30

	// LoweredBatchSize applies when mean retention falls below the
	// low-water mark.
	LoweredBatchSize = 15

	// highRetentionMean and lowRetentionMean bound the default batch band.
	highRetentionMean = 0.9
	lowRetentionMean  = 0.7

	// voiceBatchFactor shrinks batches in voice mode; spoken reviews take
	// longer per card.
	voiceBatchFactor = 0.7

	// DefaultTargetRetention is the retention score at or above which a due
	// card is considered safe to skip.
	DefaultTargetRetention = 0.85
)

// SchedulerService decides which due cards to study and the advisory batch
// size for a new session.
type SchedulerService interface {
	// SelectDue returns the user's due cards for the mode, ordered
	// most-at-risk first: retentionScore ascending, then stability
	// ascending, then reviewCount descending. Cards already at or above the
	// target retention are dropped before truncating to limit. Limit <= 0
	// means no truncation.
	SelectDue(ctx context.Context, userID uuid.UUID, mode domain.StudyMode, limit int) ([]*domain.Card, error)

	// NextCard returns the single most-at-risk due card for the user.
	// Returns ErrNoCardsDue when nothing qualifies.
	NextCard(ctx context.Context, userID uuid.UUID, mode domain.StudyMode) (*domain.Card, error)

	// OptimalBatchSize computes the advisory batch size for a new session
	// from the user's mean retention score across all cards.
	OptimalBatchSize(ctx context.Context, userID uuid.UUID, mode domain.StudyMode) (int, error)
}

// Common error types for SchedulerService
var (
	// ErrNoCardsDue indicates that the user has no cards due for review.
	ErrNoCardsDue = errors.New("no cards due for review")
)

// ServiceError wraps errors from the scheduler service with additional
// context, so consumers can differentiate failure sites with errors.As
// instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "select_due")
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
