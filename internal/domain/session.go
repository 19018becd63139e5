package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// StudyMode identifies how a session presents its cards.
type StudyMode string

// Possible study mode values
const (
	StudyModeStandard StudyMode = "standard"
	StudyModeVoice    StudyMode = "voice"
	StudyModeQuiz     StudyMode = "quiz"
)

// IsValid reports whether the mode is one of the known study modes.
func (m StudyMode) IsValid() bool {
	switch m {
	case StudyModeStandard, StudyModeVoice, StudyModeQuiz:
		return true
	default:
		return false
	}
}

// SessionStatus represents the lifecycle state of a study session.
type SessionStatus string

// Possible session status values. Completed is terminal.
const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
)

// CanTransitionTo reports whether the status change is permitted by the
// session state machine: active->paused, paused->active, and
// (active|paused)->completed. No other transition is legal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusActive:
		return next == SessionStatusPaused || next == SessionStatusCompleted
	case SessionStatusPaused:
		return next == SessionStatusActive || next == SessionStatusCompleted
	default:
		return false
	}
}

// Session-specific validation errors
var (
	ErrSessionIDEmpty     = errors.New("session ID cannot be empty")
	ErrSessionUserIDEmpty = errors.New("session user ID cannot be empty")
	ErrSessionCardBounds  = errors.New("session card bounds must satisfy 0 < min <= max")
)

// SessionSettings holds the immutable per-session configuration. It is fixed
// at session creation and never mutated afterward.
type SessionSettings struct {
	SessionDuration          time.Duration `json:"session_duration"`           // Cap on session length
	MinCards                 int           `json:"min_cards"`                  // Lower bound on cards per session
	MaxCards                 int           `json:"max_cards"`                  // Upper bound on cards per session
	VoiceConfidenceThreshold float64       `json:"voice_confidence_threshold"` // Recognition accuracy floor
	TargetRetention          float64       `json:"target_retention"`           // FSRS retention target
}

// DefaultSettingsForMode returns the stock settings for a study mode:
// standard sessions run an hour over 10-50 cards, voice sessions half an hour
// over 10-30 cards, quiz sessions 45 minutes over 20-50 cards.
func DefaultSettingsForMode(mode StudyMode) SessionSettings {
	settings := SessionSettings{
		SessionDuration:          time.Hour,
		MinCards:                 10,
		MaxCards:                 50,
		VoiceConfidenceThreshold: 0.8,
		TargetRetention:          0.85,
	}

	switch mode {
	case StudyModeVoice:
		settings.SessionDuration = 30 * time.Minute
		settings.MaxCards = 30
	case StudyModeQuiz:
		settings.SessionDuration = 45 * time.Minute
		settings.MinCards = 20
	}

	return settings
}

// FSRSProgress summarizes scheduling state across the cards studied in a
// session.
type FSRSProgress struct {
	AverageStability  float64 `json:"average_stability"`
	AverageDifficulty float64 `json:"average_difficulty"`
	RetentionRate     float64 `json:"retention_rate"`
	IntervalProgress  float64 `json:"interval_progress"`
}

// Performance aggregates a session's review outcomes. Counters are mutated
// after every review; derived metrics are recomputed by the analyzer.
// TotalCards never decreases.
type Performance struct {
	TotalCards        int           `json:"total_cards"`
	CorrectCount      int           `json:"correct_count"`
	AverageConfidence float64       `json:"average_confidence"`
	CurrentStreak     int           `json:"current_streak"`
	TimeSpent         time.Duration `json:"time_spent"`
	FSRS              FSRSProgress  `json:"fsrs"`

	// Analyzer-derived metrics.
	RetentionRate      float64   `json:"retention_rate"`
	StreakStability    float64   `json:"streak_stability"`
	RetentionTrend     []float64 `json:"retention_trend,omitempty"`
	VoiceEffectiveness *float64  `json:"voice_effectiveness,omitempty"` // Nil unless voice mode
}

// StudySession is a timed run through a batch of due cards. It is exclusively
// owned by the session lifecycle manager while active; the final snapshot is
// handed to the persistence collaborator on completion.
type StudySession struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Mode         StudyMode       `json:"mode"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	CardsStudied []uuid.UUID     `json:"cards_studied"`
	VoiceEnabled bool            `json:"voice_enabled"`
	Status       SessionStatus   `json:"status"`
	Settings     SessionSettings `json:"settings"`
	Performance  Performance     `json:"performance"`
}

// NewStudySession creates an active session for the user with zeroed
// performance and the given immutable settings.
// Returns an error if validation fails.
func NewStudySession(
	userID uuid.UUID,
	mode StudyMode,
	settings SessionSettings,
) (*StudySession, error) {
	session := &StudySession{
		ID:           uuid.New(),
		UserID:       userID,
		Mode:         mode,
		StartTime:    time.Now().UTC(),
		CardsStudied: make([]uuid.UUID, 0),
		VoiceEnabled: mode == StudyModeVoice,
		Status:       SessionStatusActive,
		Settings:     settings,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks if the StudySession has valid data.
// Returns an error if any field fails validation.
func (s *StudySession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrSessionIDEmpty
	}

	if s.UserID == uuid.Nil {
		return ErrSessionUserIDEmpty
	}

	if !s.Mode.IsValid() {
		return ErrInvalidStudyMode
	}

	if s.Settings.MinCards <= 0 || s.Settings.MinCards > s.Settings.MaxCards {
		return ErrSessionCardBounds
	}

	return nil
}

// HasStudied reports whether the card already appears in the studied list.
func (s *StudySession) HasStudied(cardID uuid.UUID) bool {
	for _, id := range s.CardsStudied {
		if id == cardID {
			return true
		}
	}
	return false
}

// Elapsed returns the time spent in the session as of now. Pause time is
// excluded because resuming shifts StartTime forward.
func (s *StudySession) Elapsed(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// Clone returns a deep copy of the session. The lifecycle manager hands
// clones to callers so the in-memory entry is never shared.
func (s *StudySession) Clone() *StudySession {
	clone := *s

	clone.CardsStudied = make([]uuid.UUID, len(s.CardsStudied))
	copy(clone.CardsStudied, s.CardsStudied)

	if s.EndTime != nil {
		end := *s.EndTime
		clone.EndTime = &end
	}

	if s.Performance.RetentionTrend != nil {
		trend := make([]float64, len(s.Performance.RetentionTrend))
		copy(trend, s.Performance.RetentionTrend)
		clone.Performance.RetentionTrend = trend
	}

	if s.Performance.VoiceEffectiveness != nil {
		ve := *s.Performance.VoiceEffectiveness
		clone.Performance.VoiceEffectiveness = &ve
	}

	return &clone
}
