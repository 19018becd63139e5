package study

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/domain/fsrs"
	"github.com/membo-ai/study-engine/internal/events"
	"github.com/membo-ai/study-engine/internal/service/insights"
	"github.com/membo-ai/study-engine/internal/service/scheduler"
	"github.com/membo-ai/study-engine/internal/store"
	"github.com/membo-ai/study-engine/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCardStore is an in-memory CardStore with mutable schedules.
type fakeCardStore struct {
	mu        sync.Mutex
	cards     map[uuid.UUID]*domain.Card
	updateErr error
	updates   int
}

func newFakeCardStore(cards ...*domain.Card) *fakeCardStore {
	f := &fakeCardStore{cards: make(map[uuid.UUID]*domain.Card)}
	for _, c := range cards {
		f.cards[c.ID] = c
	}
	return f
}

func (f *fakeCardStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	clone := *card
	return &clone, nil
}

func (f *fakeCardStore) FindDueCards(
	_ context.Context, userID uuid.UUID, _ domain.StudyMode, limit int,
) ([]*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var due []*domain.Card
	for _, c := range f.cards {
		if c.UserID == userID && !c.NextReview.After(now) {
			clone := *c
			due = append(due, &clone)
			if limit > 0 && len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (f *fakeCardStore) FindByUser(_ context.Context, userID uuid.UUID) ([]*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Card
	for _, c := range f.cards {
		if c.UserID == userID {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeCardStore) UpdateSchedule(_ context.Context, card *domain.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.cards[card.ID]; !ok {
		return store.ErrCardNotFound
	}
	clone := *card
	clone.Version++
	f.cards[card.ID] = &clone
	f.updates++
	return nil
}

func (f *fakeCardStore) WithTx(_ *sql.Tx) store.CardStore { return f }

// fakeArchive is an in-memory SessionArchive.
type fakeArchive struct {
	mu       sync.Mutex
	sessions []*domain.StudySession
}

func (a *fakeArchive) SaveSnapshot(_ context.Context, session *domain.StudySession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, session)
	return nil
}

func (a *fakeArchive) FindByUser(
	_ context.Context, userID uuid.UUID, start, end time.Time,
) ([]*domain.StudySession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.StudySession
	for _, s := range a.sessions {
		if s.UserID == userID && !s.StartTime.Before(start) && !s.StartTime.After(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

// capturingHandler records session events.
type capturingHandler struct {
	mu     sync.Mutex
	events []*events.SessionEvent
}

func (h *capturingHandler) HandleEvent(_ context.Context, event *events.SessionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *capturingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

type testEnv struct {
	svc     StudyService
	cards   *fakeCardStore
	archive *fakeArchive
	handler *capturingHandler
	userID  uuid.UUID
}

func dueCard(userID uuid.UUID) *domain.Card {
	now := time.Now().UTC()
	return &domain.Card{
		ID:             uuid.New(),
		UserID:         userID,
		Content:        []byte(`{"front":"q","back":"a"}`),
		Stability:      domain.DefaultStability,
		Difficulty:     domain.DefaultDifficulty,
		RetentionScore: 0.3,
		NextReview:     now.Add(-time.Hour),
		CreatedAt:      now.Add(-24 * time.Hour),
		UpdatedAt:      now.Add(-24 * time.Hour),
	}
}

func newTestEnv(t *testing.T, timeout time.Duration, cards ...*domain.Card) *testEnv {
	t.Helper()

	userID := uuid.New()
	for _, c := range cards {
		c.UserID = userID
	}

	cardStore := newFakeCardStore(cards...)
	archive := &fakeArchive{}
	handler := &capturingHandler{}

	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(handler)

	timeouts := task.NewTimeoutScheduler(testLogger())
	t.Cleanup(timeouts.Stop)

	svc := NewStudyService(
		cardStore,
		scheduler.NewSchedulerService(cardStore, 0, testLogger()),
		fsrs.NewDefaultService(),
		insights.NewInsightsService(cardStore, archive, testLogger()),
		timeouts,
		emitter,
		Config{InactivityTimeout: timeout},
		testLogger(),
	)

	return &testEnv{
		svc:     svc,
		cards:   cardStore,
		archive: archive,
		handler: handler,
		userID:  userID,
	}
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, time.Hour, dueCard(uuid.Nil), dueCard(uuid.Nil))

	start, err := env.svc.CreateSession(
		context.Background(),
		env.userID,
		domain.StudyModeStandard,
		domain.TierFree,
		domain.SessionSettings{},
	)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusActive, start.Session.Status)
	assert.Equal(t, env.userID, start.Session.UserID)
	assert.Equal(t, domain.DefaultSettingsForMode(domain.StudyModeStandard), start.Session.Settings)
	assert.False(t, start.Session.VoiceEnabled)
	assert.Len(t, start.DueCards, 2)
	assert.Equal(t, scheduler.LoweredBatchSize, start.BatchSize, "low mean retention lowers the batch")
	assert.Zero(t, start.Session.Performance.TotalCards)
}

func TestCreateSessionVoiceMode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, time.Hour)

	start, err := env.svc.CreateSession(
		context.Background(),
		env.userID,
		domain.StudyModeVoice,
		domain.TierPro,
		domain.SessionSettings{},
	)
	require.NoError(t, err)

	assert.True(t, start.Session.VoiceEnabled)
	assert.Equal(t, 30*time.Minute, start.Session.Settings.SessionDuration)
}

func TestCreateSessionCustomSettingsPreserved(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, time.Hour)
	custom := domain.SessionSettings{
		SessionDuration:          20 * time.Minute,
		MinCards:                 5,
		MaxCards:                 15,
		VoiceConfidenceThreshold: 0.9,
		TargetRetention:          0.8,
	}

	start, err := env.svc.CreateSession(
		context.Background(),
		env.userID,
		domain.StudyModeStandard,
		domain.TierFree,
		custom,
	)
	require.NoError(t, err)
	assert.Equal(t, custom, start.Session.Settings)
}

func TestProcessCardReview(t *testing.T) {
	t.Parallel()

	first := dueCard(uuid.Nil)
	second := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, first, second)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierPro, domain.SessionSettings{},
	)
	require.NoError(t, err)

	result, err := env.svc.ProcessCardReview(context.Background(), start.Session.ID, first.ID, 5, 0.9)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Session.Performance.TotalCards)
	assert.Equal(t, 1, result.Session.Performance.CorrectCount)
	assert.Equal(t, 1, result.Session.Performance.CurrentStreak)
	assert.InDelta(t, 0.9, result.Session.Performance.AverageConfidence, 1e-9)
	assert.Contains(t, result.Session.CardsStudied, first.ID)

	require.NotNil(t, result.UpdatedCard)
	assert.Equal(t, 1, result.UpdatedCard.ReviewCount)
	assert.Greater(t, result.UpdatedCard.Stability, domain.DefaultStability)
	assert.True(t, result.UpdatedCard.NextReview.After(time.Now().UTC()))

	require.NotNil(t, result.NextCard, "second card is still due")
	assert.Equal(t, second.ID, result.NextCard.ID)

	env.cards.mu.Lock()
	assert.Equal(t, 1, env.cards.updates, "schedule write-back persisted")
	env.cards.mu.Unlock()
}

func TestProcessCardReviewIncorrectResetsStreak(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 4, 0.8)
	require.NoError(t, err)

	result, err := env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 1, 0.4)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Session.Performance.TotalCards)
	assert.Equal(t, 1, result.Session.Performance.CorrectCount)
	assert.Zero(t, result.Session.Performance.CurrentStreak)
	assert.Len(t, result.Session.CardsStudied, 1, "repeat review does not duplicate the card")
}

func TestProcessCardReviewValidation(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 6, 0.5)
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 3, 1.5)
	assert.ErrorIs(t, err, ErrInvalidConfidence)

	_, err = env.svc.ProcessCardReview(context.Background(), uuid.New(), card.ID, 3, 0.5)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, uuid.New(), 3, 0.5)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestProcessCardReviewCardNotOwned(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	foreign := dueCard(uuid.New())
	env.cards.mu.Lock()
	env.cards.cards[foreign.ID] = foreign
	env.cards.mu.Unlock()

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, foreign.ID, 3, 0.5)
	assert.ErrorIs(t, err, ErrCardNotOwned)
}

func TestProcessCardReviewNotRecordedOnStorageFailure(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	env.cards.mu.Lock()
	env.cards.updateErr = store.ErrVersionConflict
	env.cards.mu.Unlock()

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 5, 0.9)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	state, err := env.svc.GetSessionState(context.Background(), start.Session.ID)
	require.NoError(t, err)
	assert.Zero(t, state.Performance.TotalCards, "failed review leaves the session untouched")
	assert.Empty(t, state.CardsStudied)
}

func TestProcessCardReviewRequiresActiveSession(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.PauseSession(context.Background(), start.Session.ID)
	require.NoError(t, err)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 3, 0.5)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 4, 0.7)
	require.NoError(t, err)

	paused, err := env.svc.PauseSession(context.Background(), start.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusPaused, paused.Status)

	pauseStart := time.Now()
	time.Sleep(30 * time.Millisecond)

	resumed, err := env.svc.ResumeSession(context.Background(), start.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, resumed.Status)

	// Counters survive the pause; the start time moves forward by at least
	// the pause duration.
	assert.Equal(t, 1, resumed.Performance.TotalCards)
	assert.Equal(t, paused.CardsStudied, resumed.CardsStudied)
	minShift := time.Since(pauseStart) // generous upper bound on the pause
	assert.True(t, resumed.StartTime.After(paused.StartTime.Add(25*time.Millisecond)),
		"start time must shift forward by about the pause duration")
	assert.True(t, resumed.StartTime.Before(paused.StartTime.Add(minShift+time.Second)))
}

func TestPauseInvalidTransitions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, time.Hour)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.PauseSession(context.Background(), start.Session.ID)
	require.NoError(t, err)

	// Pausing a paused session is an invalid transition.
	_, err = env.svc.PauseSession(context.Background(), start.Session.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Resuming an active session likewise.
	_, err = env.svc.ResumeSession(context.Background(), start.Session.ID)
	require.NoError(t, err)
	_, err = env.svc.ResumeSession(context.Background(), start.Session.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPauseCompletedSessionIsNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, time.Hour)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.CompleteSession(context.Background(), start.Session.ID)
	require.NoError(t, err)

	// Completed sessions leave the table, so pause and resume surface
	// not-found rather than failing silently.
	_, err = env.svc.PauseSession(context.Background(), start.Session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.svc.ResumeSession(context.Background(), start.Session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCompleteSession(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 5, 0.9)
	require.NoError(t, err)

	summary, err := env.svc.CompleteSession(context.Background(), start.Session.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusCompleted, summary.Session.Status)
	require.NotNil(t, summary.Session.EndTime)
	require.NotNil(t, summary.Streak)
	require.NotNil(t, summary.Report)
	assert.Equal(t, env.userID, summary.Report.UserID)

	// The session leaves the active table.
	_, err = env.svc.GetSessionState(context.Background(), start.Session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Completing again is not-found, not a silent no-op.
	_, err = env.svc.CompleteSession(context.Background(), start.Session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// A session-completed event went out for archival.
	assert.Equal(t, 1, env.handler.count())
}

func TestCompleteSessionReportCoversPausedTime(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)
	createdAt := start.Session.StartTime

	_, err = env.svc.ProcessCardReview(context.Background(), start.Session.ID, card.ID, 4, 0.7)
	require.NoError(t, err)

	_, err = env.svc.PauseSession(context.Background(), start.Session.ID)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	resumed, err := env.svc.ResumeSession(context.Background(), start.Session.ID)
	require.NoError(t, err)
	require.True(t, resumed.StartTime.After(createdAt), "resume must shift the start time")

	summary, err := env.svc.CompleteSession(context.Background(), start.Session.ID)
	require.NoError(t, err)

	// The report period opens at the wall-clock creation time, not the
	// pause-shifted start, so reviews before the resume stay in range.
	assert.True(t, summary.Report.PeriodStart.Equal(createdAt),
		"report period start must be the original session start")
	assert.True(t, summary.Report.PeriodStart.Before(summary.Session.StartTime))
}

func TestCompleteSessionUnknown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, time.Hour)
	_, err := env.svc.CompleteSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetSessionStateDoesNotMutate(t *testing.T) {
	t.Parallel()

	card := dueCard(uuid.Nil)
	env := newTestEnv(t, time.Hour, card)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	first, err := env.svc.GetSessionState(context.Background(), start.Session.ID)
	require.NoError(t, err)

	// Mutating the returned snapshot must not leak into the table.
	first.CardsStudied = append(first.CardsStudied, uuid.New())
	first.Status = domain.SessionStatusCompleted

	second, err := env.svc.GetSessionState(context.Background(), start.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, second.Status)
	assert.Empty(t, second.CardsStudied)
}

func TestInactivityTimeoutAutoCompletes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 40*time.Millisecond)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := env.svc.GetSessionState(context.Background(), start.Session.ID)
		return errors.Is(err, ErrSessionNotFound)
	}, 2*time.Second, 10*time.Millisecond, "session should auto-complete after the inactivity timeout")

	assert.Equal(t, 1, env.handler.count(), "auto-complete emits the completed event")
}

func TestPauseDisarmsInactivityTimeout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 40*time.Millisecond)

	start, err := env.svc.CreateSession(
		context.Background(), env.userID, domain.StudyModeStandard, domain.TierFree, domain.SessionSettings{},
	)
	require.NoError(t, err)

	_, err = env.svc.PauseSession(context.Background(), start.Session.ID)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)

	state, err := env.svc.GetSessionState(context.Background(), start.Session.ID)
	require.NoError(t, err, "paused session must not time out")
	assert.Equal(t, domain.SessionStatusPaused, state.Status)
}
