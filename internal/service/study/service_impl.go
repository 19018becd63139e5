package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/domain/fsrs"
	"github.com/membo-ai/study-engine/internal/events"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/service/insights"
	"github.com/membo-ai/study-engine/internal/service/scheduler"
	"github.com/membo-ai/study-engine/internal/store"
	"github.com/membo-ai/study-engine/internal/task"
)

// DefaultInactivityTimeout is how long a session may sit idle before it is
// auto-completed.
const DefaultInactivityTimeout = time.Hour

// Config holds tunables for the study service.
type Config struct {
	// InactivityTimeout overrides DefaultInactivityTimeout when positive.
	InactivityTimeout time.Duration
}

// sessionEntry is one row of the active-session table. Its mutex serializes
// every mutating operation for the session; the FSRS sums back the running
// averages in the performance aggregate.
type sessionEntry struct {
	mu       sync.Mutex
	session  *domain.StudySession
	tier     domain.SubscriptionTier
	pausedAt time.Time
	removed  bool

	// startedAt is the wall-clock creation time. Resume shifts the
	// session's StartTime forward to exclude pauses from elapsed-time
	// accounting, so report period bounds read this instead.
	startedAt time.Time

	stabilitySum  float64
	difficultySum float64
	retentionSum  float64
	intervalSum   float64
}

// Verify interface compliance at compile time
var _ StudyService = (*studyServiceImpl)(nil)

// studyServiceImpl implements the StudyService interface.
type studyServiceImpl struct {
	mu    sync.RWMutex
	table map[uuid.UUID]*sessionEntry

	cardStore         store.CardStore
	scheduler         scheduler.SchedulerService
	fsrsService       fsrs.Service
	insights          insights.InsightsService
	timeouts          *task.TimeoutScheduler
	emitter           events.EventEmitter
	inactivityTimeout time.Duration
	logger            *slog.Logger

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewStudyService creates a new StudyService implementation.
func NewStudyService(
	cardStore store.CardStore,
	schedulerService scheduler.SchedulerService,
	fsrsService fsrs.Service,
	insightsService insights.InsightsService,
	timeouts *task.TimeoutScheduler,
	emitter events.EventEmitter,
	cfg Config,
	logger *slog.Logger,
) StudyService {
	if cardStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardStore cannot be nil")
	}
	if schedulerService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("schedulerService cannot be nil")
	}
	if fsrsService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("fsrsService cannot be nil")
	}
	if insightsService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("insightsService cannot be nil")
	}
	if timeouts == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("timeouts cannot be nil")
	}
	if emitter == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("emitter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.InactivityTimeout
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}

	return &studyServiceImpl{
		table:             make(map[uuid.UUID]*sessionEntry),
		cardStore:         cardStore,
		scheduler:         schedulerService,
		fsrsService:       fsrsService,
		insights:          insightsService,
		timeouts:          timeouts,
		emitter:           emitter,
		inactivityTimeout: timeout,
		logger:            logger.With(slog.String("component", "study_service")),
		now:               time.Now,
	}
}

// CreateSession implements StudyService.CreateSession.
func (s *studyServiceImpl) CreateSession(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
	tier domain.SubscriptionTier,
	settings domain.SessionSettings,
) (*SessionStart, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if settings == (domain.SessionSettings{}) {
		settings = domain.DefaultSettingsForMode(mode)
	}

	batch, err := s.scheduler.OptimalBatchSize(ctx, userID, mode)
	if err != nil {
		return nil, &ServiceError{
			Operation: "create_session",
			Message:   "failed to compute batch size",
			Err:       err,
		}
	}

	due, err := s.scheduler.SelectDue(ctx, userID, mode, batch)
	if err != nil {
		return nil, &ServiceError{
			Operation: "create_session",
			Message:   "failed to select due cards",
			Err:       err,
		}
	}

	session, err := domain.NewStudySession(userID, mode, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	entry := &sessionEntry{
		session:   session,
		tier:      tier,
		startedAt: session.StartTime,
	}

	s.mu.Lock()
	s.table[session.ID] = entry
	s.mu.Unlock()

	s.armTimeout(session.ID)

	log.Info("session created",
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", userID.String()),
		slog.String("mode", string(mode)),
		slog.String("tier", string(tier)),
		slog.Int("batch_size", batch),
		slog.Int("due_cards", len(due)))

	return &SessionStart{
		Session:   session.Clone(),
		DueCards:  due,
		BatchSize: batch,
	}, nil
}

// ProcessCardReview implements StudyService.ProcessCardReview.
func (s *studyServiceImpl) ProcessCardReview(
	ctx context.Context,
	sessionID uuid.UUID,
	cardID uuid.UUID,
	rating int,
	confidence float64,
) (*ReviewResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if rating < 0 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrInvalidConfidence
	}

	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return nil, ErrSessionNotFound
	}

	session := entry.session
	if session.Status != domain.SessionStatusActive {
		log.Warn("review against non-active session",
			slog.String("session_id", sessionID.String()),
			slog.String("status", string(session.Status)))
		return nil, ErrInvalidTransition
	}

	card, err := s.cardStore.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, &ServiceError{
			Operation: "process_card_review",
			Message:   "failed to load card",
			Err:       err,
		}
	}
	if card.UserID != session.UserID {
		log.Warn("card not owned by session user",
			slog.String("session_id", sessionID.String()),
			slog.String("card_id", cardID.String()),
			slog.String("owner_id", card.UserID.String()))
		return nil, ErrCardNotOwned
	}

	now := s.now().UTC()
	perf := &session.Performance

	// Running mean including this review, fed to the scheduler as session
	// context before the counters are committed.
	reviews := float64(perf.TotalCards)
	newAvgConfidence := (perf.AverageConfidence*reviews + confidence) / (reviews + 1)

	updated, err := s.fsrsService.ApplyReview(card, rating, entry.tier, fsrs.Context{
		VoiceEnabled:      session.VoiceEnabled,
		AverageConfidence: newAvgConfidence,
		Streak:            perf.CurrentStreak,
	}, now)
	if err != nil {
		return nil, &ServiceError{
			Operation: "process_card_review",
			Message:   "failed to compute schedule",
			Err:       err,
		}
	}

	// Persist before touching session state so a storage failure leaves the
	// review unrecorded.
	if err := s.cardStore.UpdateSchedule(ctx, updated); err != nil {
		log.Error("failed to persist card schedule",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()),
			slog.String("card_id", cardID.String()))
		return nil, &ServiceError{
			Operation: "process_card_review",
			Message:   "failed to persist card schedule",
			Err:       err,
		}
	}

	if !session.HasStudied(cardID) {
		session.CardsStudied = append(session.CardsStudied, cardID)
	}

	perf.TotalCards++
	if rating >= fsrs.SuccessRating {
		perf.CorrectCount++
		perf.CurrentStreak++
	} else {
		perf.CurrentStreak = 0
	}
	perf.AverageConfidence = newAvgConfidence
	perf.TimeSpent = session.Elapsed(now)

	entry.stabilitySum += updated.Stability
	entry.difficultySum += updated.Difficulty
	entry.retentionSum += updated.RetentionScore
	entry.intervalSum += intervalProgress(updated.NextReview.Sub(now), entry.tier)

	count := float64(perf.TotalCards)
	perf.FSRS = domain.FSRSProgress{
		AverageStability:  entry.stabilitySum / count,
		AverageDifficulty: entry.difficultySum / count,
		RetentionRate:     entry.retentionSum / count,
		IntervalProgress:  entry.intervalSum / count,
	}

	session.Performance = s.insights.AnalyzeSessionPerformance(session)

	// Activity resets the inactivity clock.
	s.armTimeout(sessionID)

	next, err := s.scheduler.NextCard(ctx, session.UserID, session.Mode)
	if err != nil && !errors.Is(err, scheduler.ErrNoCardsDue) {
		log.Warn("failed to select next due card",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		next = nil
	}

	log.Debug("card review processed",
		slog.String("session_id", sessionID.String()),
		slog.String("card_id", cardID.String()),
		slog.Int("rating", rating),
		slog.Int("total_cards", perf.TotalCards),
		slog.Time("next_review", updated.NextReview))

	return &ReviewResult{
		Session:     session.Clone(),
		UpdatedCard: updated,
		NextCard:    next,
	}, nil
}

// PauseSession implements StudyService.PauseSession.
func (s *studyServiceImpl) PauseSession(
	ctx context.Context,
	sessionID uuid.UUID,
) (*domain.StudySession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return nil, ErrSessionNotFound
	}

	session := entry.session
	if !session.Status.CanTransitionTo(domain.SessionStatusPaused) {
		return nil, fmt.Errorf("%w: cannot pause %s session", ErrInvalidTransition, session.Status)
	}

	s.timeouts.Cancel(sessionID)

	now := s.now().UTC()
	entry.pausedAt = now
	session.Status = domain.SessionStatusPaused
	session.Performance.TimeSpent = session.Elapsed(now)
	session.Performance = s.insights.AnalyzeSessionPerformance(session)

	log.Info("session paused", slog.String("session_id", sessionID.String()))
	return session.Clone(), nil
}

// ResumeSession implements StudyService.ResumeSession.
func (s *studyServiceImpl) ResumeSession(
	ctx context.Context,
	sessionID uuid.UUID,
) (*domain.StudySession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return nil, ErrSessionNotFound
	}

	session := entry.session
	if session.Status != domain.SessionStatusPaused {
		return nil, fmt.Errorf("%w: cannot resume %s session", ErrInvalidTransition, session.Status)
	}

	// Shift the start time forward by the pause duration so elapsed-time
	// accounting excludes the pause.
	now := s.now().UTC()
	pauseDuration := now.Sub(entry.pausedAt)
	session.StartTime = session.StartTime.Add(pauseDuration)
	entry.pausedAt = time.Time{}
	session.Status = domain.SessionStatusActive

	s.armTimeout(sessionID)

	log.Info("session resumed",
		slog.String("session_id", sessionID.String()),
		slog.Duration("pause_duration", pauseDuration))
	return session.Clone(), nil
}

// CompleteSession implements StudyService.CompleteSession.
func (s *studyServiceImpl) CompleteSession(
	ctx context.Context,
	sessionID uuid.UUID,
) (*SessionSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return nil, ErrSessionNotFound
	}

	session := entry.session
	now := s.now().UTC()

	// Run the analysis before mutating lifecycle state so a failure leaves
	// the session active and the timeout armed.
	streak, err := s.insights.AnalyzeStudyStreak(ctx, session.UserID)
	if err != nil {
		return nil, &ServiceError{
			Operation: "complete_session",
			Message:   "failed to analyze streak",
			Err:       err,
		}
	}
	report, err := s.insights.GeneratePerformanceReport(ctx, session.UserID, entry.startedAt, now)
	if err != nil {
		return nil, &ServiceError{
			Operation: "complete_session",
			Message:   "failed to generate report",
			Err:       err,
		}
	}

	s.timeouts.Cancel(sessionID)

	end := now
	session.EndTime = &end
	session.Status = domain.SessionStatusCompleted
	session.Performance.TimeSpent = session.Elapsed(now)
	session.Performance = s.insights.AnalyzeSessionPerformance(session)

	entry.removed = true
	s.mu.Lock()
	delete(s.table, sessionID)
	s.mu.Unlock()

	snapshot := session.Clone()

	// Archival is asynchronous; a failed emit is logged, not surfaced, so
	// completion itself never depends on storage.
	event, err := events.NewSessionEvent(events.EventTypeSessionCompleted, snapshot)
	if err != nil {
		log.Error("failed to build session-completed event",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
	} else if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit session-completed event",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
	}

	log.Info("session completed",
		slog.String("session_id", sessionID.String()),
		slog.String("user_id", session.UserID.String()),
		slog.Int("cards_studied", len(session.CardsStudied)),
		slog.Duration("time_spent", session.Performance.TimeSpent))

	return &SessionSummary{
		Session: snapshot,
		Streak:  streak,
		Report:  report,
	}, nil
}

// GetSessionState implements StudyService.GetSessionState.
func (s *studyServiceImpl) GetSessionState(
	ctx context.Context,
	sessionID uuid.UUID,
) (*domain.StudySession, error) {
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return nil, ErrSessionNotFound
	}

	// Analysis happens on a clone so the lifecycle state is untouched.
	snapshot := entry.session.Clone()
	snapshot.Performance.TimeSpent = snapshot.Elapsed(s.now().UTC())
	snapshot.Performance = s.insights.AnalyzeSessionPerformance(snapshot)
	return snapshot, nil
}

// Shutdown implements StudyService.Shutdown.
func (s *studyServiceImpl) Shutdown() {
	s.timeouts.Stop()
	s.logger.Info("study service shut down")
}

// entry looks up the session's table row.
func (s *studyServiceImpl) entry(sessionID uuid.UUID) (*sessionEntry, error) {
	s.mu.RLock()
	entry, ok := s.table[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

// armTimeout (re-)arms the session's inactivity timer. On expiry the session
// is completed through the normal path; a session the caller completed in
// the meantime surfaces as not-found and is discarded.
func (s *studyServiceImpl) armTimeout(sessionID uuid.UUID) {
	s.timeouts.Schedule(sessionID, s.inactivityTimeout, func() {
		s.logger.Info("inactivity timeout fired",
			slog.String("session_id", sessionID.String()))
		if _, err := s.CompleteSession(context.Background(), sessionID); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				s.logger.Debug("session already completed before timeout",
					slog.String("session_id", sessionID.String()))
				return
			}
			s.logger.Error("inactivity auto-complete failed",
				slog.String("error", err.Error()),
				slog.String("session_id", sessionID.String()))
		}
	})
}

// intervalProgress expresses a next-review interval as a fraction of the
// tier's ceiling, clamped to [0, 1].
func intervalProgress(interval time.Duration, tier domain.SubscriptionTier) float64 {
	maxInterval := tier.MaxInterval()
	if maxInterval <= 0 {
		return 0
	}
	progress := float64(interval) / float64(maxInterval)
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}
