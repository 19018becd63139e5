package fsrs

import (
	"errors"
	"time"

	"github.com/membo-ai/study-engine/internal/domain"
)

// Common errors
var (
	ErrNilCard       = errors.New("card cannot be nil")
	ErrInvalidRating = errors.New("rating must be between 0 and 5")
)

// Context carries the session-level inputs that influence scheduling:
// whether the session is voice-enabled, its running average answer
// confidence, and the learner's current study streak.
type Context struct {
	VoiceEnabled      bool
	AverageConfidence float64
	Streak            int
}

// Schedule is the output of one scheduling computation.
type Schedule struct {
	Stability      float64
	Difficulty     float64
	Interval       time.Duration
	NextReviewAt   time.Time
	RetentionScore float64
}

// Service defines the interface for scheduling operations.
type Service interface {
	// ComputeSchedule computes the updated scheduling state for a card
	// given a review rating, the user's subscription tier, and session
	// context. The computation is pure and all outputs are clamped.
	ComputeSchedule(
		card *domain.Card,
		rating int,
		tier domain.SubscriptionTier,
		sctx Context,
		now time.Time,
	) (Schedule, error)

	// ApplyReview returns a copy of the card with the computed schedule
	// applied: scheduling fields, review counters, success streak, and
	// last-rating bookkeeping. The input card is not modified.
	ApplyReview(
		card *domain.Card,
		rating int,
		tier domain.SubscriptionTier,
		sctx Context,
		now time.Time,
	) (*domain.Card, error)
}

// SuccessRating is the lowest rating counted as a successful recall.
const SuccessRating = 3

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new scheduling service with default parameters.
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new scheduling service with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{
		params: params,
	}
}

// ComputeSchedule implements the Service interface.
func (s *defaultService) ComputeSchedule(
	card *domain.Card,
	rating int,
	tier domain.SubscriptionTier,
	sctx Context,
	now time.Time,
) (Schedule, error) {
	if card == nil {
		return Schedule{}, ErrNilCard
	}

	if rating < 0 || rating > 5 {
		return Schedule{}, ErrInvalidRating
	}

	return computeSchedule(card, rating, tier, sctx, now, s.params), nil
}

// ApplyReview implements the Service interface. It follows the immutable
// update pattern: a new card value is returned, the input left untouched.
func (s *defaultService) ApplyReview(
	card *domain.Card,
	rating int,
	tier domain.SubscriptionTier,
	sctx Context,
	now time.Time,
) (*domain.Card, error) {
	schedule, err := s.ComputeSchedule(card, rating, tier, sctx, now)
	if err != nil {
		return nil, err
	}

	updated := *card
	updated.Stability = schedule.Stability
	updated.Difficulty = schedule.Difficulty
	updated.RetentionScore = schedule.RetentionScore
	updated.NextReview = schedule.NextReviewAt
	updated.ReviewCount = card.ReviewCount + 1
	updated.LastRating = rating
	reviewed := now
	updated.LastReview = &reviewed

	if rating >= SuccessRating {
		updated.StreakCount = card.StreakCount + 1
	} else {
		updated.StreakCount = 0
	}

	updated.UpdatedAt = now

	return &updated, nil
}
