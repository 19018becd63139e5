package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/store"
)

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the
// CardStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

const cardColumns = `id, user_id, deck_id, content, stability, difficulty,
	review_count, last_review, last_rating, retention_score, streak_count,
	next_review, version, created_at, updated_at`

// scanCard reads one card row. The scanner abstracts *sql.Row and *sql.Rows.
func scanCard(scanner interface{ Scan(dest ...any) error }) (*domain.Card, error) {
	var card domain.Card
	var lastReview sql.NullTime

	err := scanner.Scan(
		&card.ID,
		&card.UserID,
		&card.DeckID,
		&card.Content,
		&card.Stability,
		&card.Difficulty,
		&card.ReviewCount,
		&lastReview,
		&card.LastRating,
		&card.RetentionScore,
		&card.StreakCount,
		&card.NextReview,
		&card.Version,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastReview.Valid {
		reviewed := lastReview.Time
		card.LastReview = &reviewed
	}

	return &card, nil
}

// FindByID implements store.CardStore.FindByID.
// Returns store.ErrCardNotFound if the card does not exist.
func (s *PostgresCardStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf(`SELECT %s FROM cards WHERE id = $1`, cardColumns)

	card, err := scanCard(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to find card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return nil, MapError(err)
	}

	return card, nil
}

// FindDueCards implements store.CardStore.FindDueCards.
// Mode does not currently restrict the candidate set at the SQL level; every
// card can be studied in every mode. The selector applies the retention-first
// ordering, so rows are returned most-overdue first only as a stable base.
func (s *PostgresCardStore) FindDueCards(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
	limit int,
) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("querying due cards",
		slog.String("user_id", userID.String()),
		slog.String("mode", string(mode)),
		slog.Int("limit", limit))

	query := fmt.Sprintf(`
		SELECT %s FROM cards
		WHERE user_id = $1 AND next_review <= $2
		ORDER BY next_review ASC
	`, cardColumns)

	args := []any{userID, time.Now().UTC()}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	return s.queryCards(ctx, query, args...)
}

// FindByUser implements store.CardStore.FindByUser.
func (s *PostgresCardStore) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Card, error) {
	query := fmt.Sprintf(`SELECT %s FROM cards WHERE user_id = $1`, cardColumns)
	return s.queryCards(ctx, query, userID)
}

// queryCards runs a multi-row card query and scans the results.
func (s *PostgresCardStore) queryCards(ctx context.Context, query string, args ...any) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("card query failed", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var cards []*domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, MapError(err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return cards, nil
}

// UpdateSchedule implements store.CardStore.UpdateSchedule.
// The version predicate makes the write-back an atomic compare-and-set:
// a concurrent review of the same card bumps the version first and this
// update then affects zero rows, surfacing store.ErrVersionConflict instead
// of silently losing the earlier update.
func (s *PostgresCardStore) UpdateSchedule(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during schedule update",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE cards
		SET stability = $1, difficulty = $2, review_count = $3,
			last_review = $4, last_rating = $5, retention_score = $6,
			streak_count = $7, next_review = $8, version = version + 1,
			updated_at = $9
		WHERE id = $10 AND version = $11
	`

	var lastReview sql.NullTime
	if card.LastReview != nil {
		lastReview = sql.NullTime{Time: *card.LastReview, Valid: true}
	}

	result, err := s.db.ExecContext(
		ctx,
		query,
		card.Stability,
		card.Difficulty,
		card.ReviewCount,
		lastReview,
		card.LastRating,
		card.RetentionScore,
		card.StreakCount,
		card.NextReview,
		card.UpdatedAt,
		card.ID,
		card.Version,
	)
	if err != nil {
		log.Error("failed to update card schedule",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if affected == 0 {
		// Distinguish a missing card from a lost version race.
		var exists bool
		checkErr := s.db.QueryRowContext(
			ctx, `SELECT EXISTS(SELECT 1 FROM cards WHERE id = $1)`, card.ID,
		).Scan(&exists)
		if checkErr != nil {
			return MapError(checkErr)
		}
		if !exists {
			return store.ErrCardNotFound
		}

		log.Warn("schedule write-back lost version race",
			slog.String("card_id", card.ID.String()),
			slog.Int("version", card.Version))
		return store.ErrVersionConflict
	}

	log.Debug("card schedule updated",
		slog.String("card_id", card.ID.String()),
		slog.Int("review_count", card.ReviewCount),
		slog.Time("next_review", card.NextReview))
	return nil
}

// WithTx implements store.CardStore.WithTx.
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{
		db:     tx,
		logger: s.logger,
	}
}
