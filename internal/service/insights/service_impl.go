package insights

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/store"
)

// Analyzer constants.
const (
	// streakTarget is the streak length treated as fully established.
	streakTarget = 14.0

	// establishedStreakBonus rewards streaks past the target before the
	// stability clamp.
	establishedStreakBonus = 1.2

	// voiceConfidencePenalty discounts self-reported confidence under voice
	// mode, where transcription noise inflates it.
	voiceConfidencePenalty = 0.9

	// Risk level thresholds on streak stability.
	lowRiskThreshold    = 0.8
	mediumRiskThreshold = 0.6

	// Next-review recommendation shape: one day scaled by stability and
	// streak progress.
	recommendationBase    = 24 * time.Hour
	minStabilityFactor    = 0.5
	maxStreakFactor       = 1.5

	// Report recommendation thresholds.
	strugglingRetention   = 0.7
	masteryRetention      = 0.9
	voiceModeEffective    = 0.75
	retentionFocusCutoff  = 0.85
	confidenceFocusCutoff = 0.6
	consistencyFocus      = 0.5
)

// Verify interface compliance at compile time
var _ InsightsService = (*insightsServiceImpl)(nil)

// insightsServiceImpl implements the InsightsService interface.
type insightsServiceImpl struct {
	cardStore store.CardStore
	archive   store.SessionArchive
	logger    *slog.Logger
}

// NewInsightsService creates a new InsightsService implementation.
func NewInsightsService(
	cardStore store.CardStore,
	archive store.SessionArchive,
	logger *slog.Logger,
) InsightsService {
	if cardStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardStore cannot be nil")
	}
	if archive == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("archive cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &insightsServiceImpl{
		cardStore: cardStore,
		archive:   archive,
		logger:    logger.With(slog.String("component", "insights_service")),
	}
}

// AnalyzeSessionPerformance implements InsightsService.AnalyzeSessionPerformance.
func (s *insightsServiceImpl) AnalyzeSessionPerformance(session *domain.StudySession) domain.Performance {
	if session == nil {
		return domain.Performance{}
	}

	perf := session.Performance

	// With nothing studied yet the correct-count ratio is undefined; the
	// FSRS-progress retention rate stands in. The denominator counts
	// reviews, not unique cards, so re-reviewing a card cannot push the
	// rate above 1.
	if perf.TotalCards > 0 {
		perf.RetentionRate = float64(perf.CorrectCount) / float64(perf.TotalCards)
	} else {
		perf.RetentionRate = perf.FSRS.RetentionRate
	}

	confidence := perf.AverageConfidence
	if session.VoiceEnabled {
		confidence *= voiceConfidencePenalty

		effectiveness := (perf.AverageConfidence + perf.RetentionRate) / 2
		perf.VoiceEffectiveness = &effectiveness
	} else {
		perf.VoiceEffectiveness = nil
	}

	perf.StreakStability = streakStability(perf.CurrentStreak)
	perf.RetentionTrend = []float64{
		perf.RetentionRate,
		perf.FSRS.AverageStability,
		confidence,
	}

	return perf
}

// AnalyzeStudyStreak implements InsightsService.AnalyzeStudyStreak.
func (s *insightsServiceImpl) AnalyzeStudyStreak(
	ctx context.Context,
	userID uuid.UUID,
) (*StreakAnalysis, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cards, err := s.cardStore.FindByUser(ctx, userID)
	if err != nil {
		log.Error("failed to load cards for streak analysis",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, &ServiceError{
			Operation: "analyze_study_streak",
			Message:   "failed to load user cards",
			Err:       err,
		}
	}

	// Current streak follows the most recently reviewed card; the longest
	// streak is the maximum across the collection.
	var current, longest int
	var latestReview time.Time
	for _, card := range cards {
		if card.StreakCount > longest {
			longest = card.StreakCount
		}
		if card.LastReview != nil && card.LastReview.After(latestReview) {
			latestReview = *card.LastReview
			current = card.StreakCount
		}
	}

	stability := streakStability(current)
	now := time.Now().UTC()

	analysis := &StreakAnalysis{
		CurrentStreak:            current,
		LongestStreak:            longest,
		StreakStability:          stability,
		NextReviewRecommendation: nextReviewRecommendation(now, stability, current),
		RiskLevel:                riskLevelFor(stability),
	}

	log.Debug("analyzed study streak",
		slog.String("user_id", userID.String()),
		slog.Int("current_streak", current),
		slog.Float64("streak_stability", stability),
		slog.String("risk_level", string(analysis.RiskLevel)))
	return analysis, nil
}

// GeneratePerformanceReport implements InsightsService.GeneratePerformanceReport.
func (s *insightsServiceImpl) GeneratePerformanceReport(
	ctx context.Context,
	userID uuid.UUID,
	start, end time.Time,
) (*PerformanceReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	sessions, err := s.archive.FindByUser(ctx, userID, start, end)
	if err != nil {
		log.Error("failed to load archived sessions for report",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, &ServiceError{
			Operation: "generate_report",
			Message:   "failed to load archived sessions",
			Err:       err,
		}
	}

	streak, err := s.AnalyzeStudyStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze streak for report: %w", err)
	}

	report := &PerformanceReport{
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end,
		Streak:      *streak,
	}

	var retentionSum, confidenceSum, voiceEffSum float64
	var voiceEffCount int
	retentions := make([]float64, 0, len(sessions))
	confidences := make([]float64, 0, len(sessions))

	// The archive returns newest first; the trend reads oldest to newest.
	for i := len(sessions) - 1; i >= 0; i-- {
		perf := sessions[i].Performance

		report.SessionCount++
		report.TotalCardsStudied += perf.TotalCards
		retentionSum += perf.RetentionRate
		confidenceSum += perf.AverageConfidence
		retentions = append(retentions, perf.RetentionRate)
		confidences = append(confidences, perf.AverageConfidence)

		if sessions[i].VoiceEnabled {
			report.VoiceSessionCount++
			if perf.VoiceEffectiveness != nil {
				voiceEffSum += *perf.VoiceEffectiveness
				voiceEffCount++
			}
		}
	}

	report.RetentionTrend = retentions
	if report.SessionCount > 0 {
		report.AverageRetention = retentionSum / float64(report.SessionCount)
	}
	if voiceEffCount > 0 {
		avg := voiceEffSum / float64(voiceEffCount)
		report.VoiceEffectiveness = &avg
	}
	report.ConfidenceCorrelation = correlation(confidences, retentions)

	meanConfidence := 0.0
	if report.SessionCount > 0 {
		meanConfidence = confidenceSum / float64(report.SessionCount)
	}
	report.Recommendations = s.buildRecommendations(report, meanConfidence)

	log.Debug("generated performance report",
		slog.String("user_id", userID.String()),
		slog.Int("session_count", report.SessionCount),
		slog.Float64("average_retention", report.AverageRetention))
	return report, nil
}

// buildRecommendations derives the actionable advice from the aggregates.
func (s *insightsServiceImpl) buildRecommendations(
	report *PerformanceReport,
	meanConfidence float64,
) Recommendations {
	rec := Recommendations{
		NextStudyTime:   report.Streak.NextReviewRecommendation,
		RecommendedMode: domain.StudyModeStandard,
		FocusAreas:      []string{},
	}

	switch {
	case report.SessionCount == 0 || report.AverageRetention < strugglingRetention:
		rec.RecommendedMode = domain.StudyModeStandard
	case report.VoiceEffectiveness != nil && *report.VoiceEffectiveness >= voiceModeEffective:
		rec.RecommendedMode = domain.StudyModeVoice
	case report.AverageRetention >= masteryRetention:
		rec.RecommendedMode = domain.StudyModeQuiz
	}

	if report.SessionCount > 0 && report.AverageRetention < retentionFocusCutoff {
		rec.FocusAreas = append(rec.FocusAreas, "retention")
	}
	if report.SessionCount > 0 && meanConfidence < confidenceFocusCutoff {
		rec.FocusAreas = append(rec.FocusAreas, "confidence")
	}
	if report.Streak.StreakStability < consistencyFocus {
		rec.FocusAreas = append(rec.FocusAreas, "consistency")
	}

	return rec
}

// streakStability maps a streak length to [0,1]: linear progress toward the
// target, a bonus past it, clamped at 1.
func streakStability(streak int) float64 {
	progress := math.Min(float64(streak)/streakTarget, 1)
	if streak > int(streakTarget) {
		progress *= establishedStreakBonus
	}
	return math.Min(1, progress)
}

// riskLevelFor classifies streak stability.
func riskLevelFor(stability float64) RiskLevel {
	switch {
	case stability >= lowRiskThreshold:
		return RiskLevelLow
	case stability >= mediumRiskThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

// nextReviewRecommendation positions the next study time one day out, scaled
// by stability (floored so weak streaks still get a same-day nudge) and by
// streak progress.
func nextReviewRecommendation(now time.Time, stability float64, streak int) time.Time {
	stabilityFactor := math.Max(minStabilityFactor, stability)
	streakFactor := math.Min(float64(streak)/streakTarget, maxStreakFactor)
	offset := time.Duration(float64(recommendationBase) * stabilityFactor * streakFactor)
	return now.Add(offset)
}

// correlation computes the Pearson correlation between two equal-length
// series, returning 0 for fewer than two points or zero variance.
func correlation(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
