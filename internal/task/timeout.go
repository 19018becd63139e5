package task

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimeoutScheduler arms at most one cancellable timer per session. The
// lifecycle manager uses it for the inactivity deadline: every review resets
// the timer, pause cancels it, and an expired timer auto-completes the
// session. Cancel is idempotent and safe to call after the timer has fired.
type TimeoutScheduler struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	logger *slog.Logger
}

// NewTimeoutScheduler creates an empty scheduler.
func NewTimeoutScheduler(logger *slog.Logger) *TimeoutScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeoutScheduler{
		timers: make(map[uuid.UUID]*time.Timer),
		logger: logger.With("component", "timeout_scheduler"),
	}
}

// Schedule arms a timer for the session, replacing any existing one. The
// callback runs on the timer goroutine once the duration elapses without a
// reset or cancel.
func (s *TimeoutScheduler) Schedule(sessionID uuid.UUID, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[sessionID]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		// A Cancel or re-Schedule may have raced the firing callback. Only
		// proceed if this timer is still the one registered for the session.
		current, ok := s.timers[sessionID]
		if !ok || current != timer {
			s.mu.Unlock()
			s.logger.Debug("stale timeout ignored", "session_id", sessionID)
			return
		}
		delete(s.timers, sessionID)
		s.mu.Unlock()

		fire()
	})
	s.timers[sessionID] = timer

	s.logger.Debug("timeout armed",
		"session_id", sessionID,
		"duration", d)
}

// Cancel disarms the session's timer if one is armed. It returns true when a
// pending timer was stopped and false when no timer existed or it had
// already fired.
func (s *TimeoutScheduler) Cancel(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[sessionID]
	if !ok {
		return false
	}
	delete(s.timers, sessionID)

	stopped := timer.Stop()
	s.logger.Debug("timeout cancelled",
		"session_id", sessionID,
		"was_pending", stopped)
	return stopped
}

// Stop disarms every timer. Used during shutdown so no timeout callbacks run
// against a lifecycle manager that is going away.
func (s *TimeoutScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.logger.Debug("all timeouts disarmed")
}
