package fsrs

import (
	"math"
	"time"

	"github.com/membo-ai/study-engine/internal/domain"
)

// calculateNewStability computes the card's updated stability after a review.
//
// The base update multiplies current stability by (1 + rating/5)^(1-difficulty),
// so easier cards (low difficulty) gain stability faster from good ratings.
// Two session-level boosts then apply in order: the voice bonus (when the
// session is voice-enabled and average confidence is high) and the streak
// multiplier. The result never falls below the stability floor.
func calculateNewStability(
	stability float64,
	difficulty float64,
	rating int,
	sctx Context,
	params *Params,
) float64 {
	stabilityFactor := math.Pow(1+float64(rating)/5, 1-difficulty)
	newStability := stability * stabilityFactor

	// Voice bonus first, then streak multiplier. The order matters because
	// both compound multiplicatively.
	newStability *= voiceBonus(sctx, params)
	newStability *= streakMultiplier(sctx.Streak, params)

	return math.Max(newStability, params.StabilityFloor)
}

// voiceBonus returns the stability multiplier earned by confident voice
// answers: 1.2 above the exact-recall threshold, 1.1 above the high
// threshold, otherwise 1.0. Non-voice sessions never earn a bonus.
func voiceBonus(sctx Context, params *Params) float64 {
	if !sctx.VoiceEnabled || sctx.AverageConfidence <= params.VoiceConfidenceHigh {
		return 1.0
	}
	if sctx.AverageConfidence > params.VoiceConfidenceExact {
		return params.VoiceBonusExact
	}
	return params.VoiceBonusHigh
}

// streakMultiplier returns the multiplier for the largest streak threshold
// met, or 1.0 when no threshold is met.
func streakMultiplier(streak int, params *Params) float64 {
	multiplier := 1.0
	for _, tier := range params.StreakTiers {
		if streak >= tier.Threshold {
			multiplier = tier.Multiplier
		}
	}
	return multiplier
}

// calculateInterval computes the next review interval from the updated
// stability and the card's current difficulty.
//
// rawInterval = (newStability * (1 - difficulty)) ^ (1 / (1 + rating/5)),
// measured in days, clamped to [MinInterval, MaxInterval] and then bounded
// by the subscription tier's ceiling.
func calculateInterval(
	newStability float64,
	difficulty float64,
	rating int,
	tier domain.SubscriptionTier,
	params *Params,
) time.Duration {
	exponent := 1 / (1 + float64(rating)/5)
	rawDays := math.Pow(newStability*(1-difficulty), exponent)

	interval := time.Duration(rawDays * float64(24*time.Hour))
	if interval < params.MinInterval {
		interval = params.MinInterval
	}
	if interval > params.MaxInterval {
		interval = params.MaxInterval
	}

	if ceiling := tier.MaxInterval(); interval > ceiling {
		interval = ceiling
	}

	return interval
}

// calculateNewDifficulty computes the card's updated difficulty.
//
// High ratings (>= EasyRating) ease the card by the easy factor; low ratings
// (<= HardRating) harden it by the hard factor; middling ratings leave it
// unchanged. The same streak multiplier that boosts stability then divides
// difficulty, so long streaks make cards both more stable and easier.
// The result is clamped to [MinDifficulty, MaxDifficulty].
func calculateNewDifficulty(
	difficulty float64,
	rating int,
	streak int,
	params *Params,
) float64 {
	newDifficulty := difficulty
	switch {
	case rating >= params.EasyRating:
		newDifficulty *= params.EasyDifficultyFactor
	case rating <= params.HardRating:
		newDifficulty *= params.HardDifficultyFactor
	}

	newDifficulty /= streakMultiplier(streak, params)

	if newDifficulty < params.MinDifficulty {
		newDifficulty = params.MinDifficulty
	}
	if newDifficulty > params.MaxDifficulty {
		newDifficulty = params.MaxDifficulty
	}

	return newDifficulty
}

// calculateRetentionScore estimates the probability the learner still recalls
// the card: a rating term, a review-history term capped at ReviewCountCap,
// and a confidence term. The result is always within [0, 1].
func calculateRetentionScore(
	rating int,
	reviewCount int,
	averageConfidence float64,
	params *Params,
) float64 {
	ratingTerm := float64(rating) / 5 * params.RatingWeight
	historyTerm := math.Min(params.ReviewCountCap, float64(reviewCount)*params.ReviewCountWeight)
	confidenceTerm := averageConfidence * params.ConfidenceWeight

	score := ratingTerm + historyTerm + confidenceTerm
	if score < 0 {
		score = 0
	}
	return math.Min(1.0, score)
}

// computeSchedule produces the full schedule update for one review. Pure:
// no I/O, no shared mutable state, all numeric results clamped.
func computeSchedule(
	card *domain.Card,
	rating int,
	tier domain.SubscriptionTier,
	sctx Context,
	now time.Time,
	params *Params,
) Schedule {
	newStability := calculateNewStability(card.Stability, card.Difficulty, rating, sctx, params)
	interval := calculateInterval(newStability, card.Difficulty, rating, tier, params)

	return Schedule{
		Stability:      newStability,
		Difficulty:     calculateNewDifficulty(card.Difficulty, rating, sctx.Streak, params),
		Interval:       interval,
		NextReviewAt:   now.Add(interval),
		RetentionScore: calculateRetentionScore(rating, card.ReviewCount, sctx.AverageConfidence, params),
	}
}
