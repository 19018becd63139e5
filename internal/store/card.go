package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
)

// CardStore defines the interface for card persistence as consumed by the
// study core: due-card queries feeding the selector and the schedule
// write-back after each review.
// Version: 1.0
type CardStore interface {
	// FindByID retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// FindDueCards retrieves the user's cards compatible with the study mode
	// whose NextReview is at or before now, up to limit. Limit <= 0 means no
	// limit. Ordering is left to the caller (the due-card selector applies
	// the retention-first sort).
	FindDueCards(ctx context.Context, userID uuid.UUID, mode domain.StudyMode, limit int) ([]*domain.Card, error)

	// FindByUser retrieves all of the user's cards.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Card, error)

	// UpdateSchedule persists a card's scheduling fields after a review using
	// an optimistic-concurrency check: the write only succeeds if the stored
	// version matches card.Version, and increments it. Two concurrent reviews
	// of the same card must not silently lose an update.
	// Returns ErrCardNotFound if the card does not exist and
	// ErrVersionConflict if the version check fails.
	UpdateSchedule(ctx context.Context, card *domain.Card) error

	// WithTx returns a new CardStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) CardStore
}

// SessionArchive defines the interface for persisting completed session
// snapshots. The Session Lifecycle Manager owns a session only while it is
// active; at completion the final snapshot is handed here.
// Version: 1.0
type SessionArchive interface {
	// SaveSnapshot persists a completed session. The session must be in the
	// completed status with a stamped end time.
	// Returns ErrInvalidEntity if the session fails validation.
	SaveSnapshot(ctx context.Context, session *domain.StudySession) error

	// FindByUser retrieves the user's archived sessions whose start time
	// falls within [start, end], newest first.
	FindByUser(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*domain.StudySession, error)
}
