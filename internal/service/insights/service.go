// Package insights derives performance metrics from sessions and study
// history: per-session analysis, streak risk assessment, and ranged
// performance reports with study recommendations.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
)

// RiskLevel classifies how likely a learner's streak is to break.
type RiskLevel string

// Risk level values
const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// StreakAnalysis summarizes the learner's study streak and when they should
// review next to keep it alive.
type StreakAnalysis struct {
	CurrentStreak            int       `json:"current_streak"`
	LongestStreak            int       `json:"longest_streak"`
	StreakStability          float64   `json:"streak_stability"`
	NextReviewRecommendation time.Time `json:"next_review_recommendation"`
	RiskLevel                RiskLevel `json:"risk_level"`
}

// Recommendations is the actionable part of a performance report.
type Recommendations struct {
	NextStudyTime   time.Time        `json:"next_study_time"`
	RecommendedMode domain.StudyMode `json:"recommended_mode"`
	FocusAreas      []string         `json:"focus_areas"`
}

// PerformanceReport aggregates archived sessions over a time range.
type PerformanceReport struct {
	UserID            uuid.UUID       `json:"user_id"`
	PeriodStart       time.Time       `json:"period_start"`
	PeriodEnd         time.Time       `json:"period_end"`
	SessionCount      int             `json:"session_count"`
	TotalCardsStudied int             `json:"total_cards_studied"`
	AverageRetention  float64         `json:"average_retention"`
	RetentionTrend    []float64       `json:"retention_trend"`
	VoiceSessionCount int             `json:"voice_session_count"`
	// VoiceEffectiveness is nil when no voice sessions fall in the range.
	VoiceEffectiveness    *float64        `json:"voice_effectiveness,omitempty"`
	ConfidenceCorrelation float64         `json:"confidence_correlation"`
	Recommendations       Recommendations `json:"recommendations"`
	Streak                StreakAnalysis  `json:"streak"`
}

// InsightsService analyzes session performance and study history.
type InsightsService interface {
	// AnalyzeSessionPerformance recomputes the derived metrics of the
	// session's performance aggregate: retention rate (falling back to the
	// FSRS-progress retention rate when no cards have been studied), voice
	// effectiveness, streak stability, and the retention trend with the
	// voice confidence penalty applied. The input session is not modified.
	AnalyzeSessionPerformance(session *domain.StudySession) domain.Performance

	// AnalyzeStudyStreak assesses the user's streak across their cards and
	// recommends when to review next.
	AnalyzeStudyStreak(ctx context.Context, userID uuid.UUID) (*StreakAnalysis, error)

	// GeneratePerformanceReport aggregates the user's archived sessions
	// whose start time falls within [start, end].
	GeneratePerformanceReport(ctx context.Context, userID uuid.UUID, start, end time.Time) (*PerformanceReport, error)
}

// Common error types for InsightsService
var (
	// ErrNilSession indicates a nil session was passed for analysis.
	ErrNilSession = errors.New("session cannot be nil")

	// ErrInvalidRange indicates the report range end precedes its start.
	ErrInvalidRange = errors.New("range end precedes start")
)

// ServiceError wraps errors from the insights service with additional
// context for errors.As-based handling.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "generate_report")
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
