package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/store"
)

// PostgresSessionArchive implements the store.SessionArchive interface.
// Completed sessions are immutable, so the archive is insert-only; settings,
// performance and the studied-card list are stored as JSONB documents rather
// than normalized tables.
type PostgresSessionArchive struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionArchive creates a new PostgreSQL implementation of the
// SessionArchive interface.
// If logger is nil, a default logger will be used.
func NewPostgresSessionArchive(db store.DBTX, logger *slog.Logger) *PostgresSessionArchive {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSessionArchive{
		db:     db,
		logger: logger.With(slog.String("component", "session_archive")),
	}
}

// Ensure PostgresSessionArchive implements store.SessionArchive interface
var _ store.SessionArchive = (*PostgresSessionArchive)(nil)

// SaveSnapshot implements store.SessionArchive.SaveSnapshot.
func (a *PostgresSessionArchive) SaveSnapshot(ctx context.Context, session *domain.StudySession) error {
	log := logger.FromContextOrDefault(ctx, a.logger)

	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if session.Status != domain.SessionStatusCompleted || session.EndTime == nil {
		return fmt.Errorf("%w: only completed sessions can be archived", store.ErrInvalidEntity)
	}

	settings, err := json.Marshal(session.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal session settings: %w", err)
	}
	performance, err := json.Marshal(session.Performance)
	if err != nil {
		return fmt.Errorf("failed to marshal session performance: %w", err)
	}
	cardsStudied, err := json.Marshal(session.CardsStudied)
	if err != nil {
		return fmt.Errorf("failed to marshal studied cards: %w", err)
	}

	query := `
		INSERT INTO session_archive (id, user_id, mode, start_time, end_time,
			cards_studied, voice_enabled, status, settings, performance, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = a.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		string(session.Mode),
		session.StartTime,
		*session.EndTime,
		cardsStudied,
		session.VoiceEnabled,
		string(session.Status),
		settings,
		performance,
		time.Now().UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("session already archived",
				slog.String("session_id", session.ID.String()))
			return store.ErrDuplicate
		}
		log.Error("failed to archive session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return MapError(err)
	}

	log.Debug("session archived",
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", session.UserID.String()),
		slog.Int("cards_studied", len(session.CardsStudied)))
	return nil
}

// FindByUser implements store.SessionArchive.FindByUser.
func (a *PostgresSessionArchive) FindByUser(
	ctx context.Context,
	userID uuid.UUID,
	start, end time.Time,
) ([]*domain.StudySession, error) {
	log := logger.FromContextOrDefault(ctx, a.logger)

	query := `
		SELECT id, user_id, mode, start_time, end_time, cards_studied,
			voice_enabled, status, settings, performance
		FROM session_archive
		WHERE user_id = $1 AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time DESC
	`

	rows, err := a.db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		log.Error("session archive query failed", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var sessions []*domain.StudySession
	for rows.Next() {
		session, err := scanArchivedSession(rows)
		if err != nil {
			return nil, MapError(err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return sessions, nil
}

func scanArchivedSession(rows *sql.Rows) (*domain.StudySession, error) {
	var session domain.StudySession
	var endTime time.Time
	var mode, status string
	var cardsStudied, settings, performance []byte

	err := rows.Scan(
		&session.ID,
		&session.UserID,
		&mode,
		&session.StartTime,
		&endTime,
		&cardsStudied,
		&session.VoiceEnabled,
		&status,
		&settings,
		&performance,
	)
	if err != nil {
		return nil, err
	}

	session.Mode = domain.StudyMode(mode)
	session.Status = domain.SessionStatus(status)
	session.EndTime = &endTime

	if err := json.Unmarshal(cardsStudied, &session.CardsStudied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal studied cards: %w", err)
	}
	if err := json.Unmarshal(settings, &session.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session settings: %w", err)
	}
	if err := json.Unmarshal(performance, &session.Performance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session performance: %w", err)
	}

	return &session, nil
}
