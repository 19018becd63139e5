package fsrs

import (
	"time"

	"github.com/membo-ai/study-engine/internal/domain"
)

// StreakTier maps a consecutive-streak threshold to a stability multiplier.
// The largest threshold met wins.
type StreakTier struct {
	Threshold  int
	Multiplier float64
}

// Params defines all configurable parameters for the scheduling algorithm.
type Params struct {
	// Core limits
	StabilityFloor float64
	MinDifficulty  float64
	MaxDifficulty  float64
	MinInterval    time.Duration
	MaxInterval    time.Duration

	// Voice bonus: stability is boosted when a voice session's average
	// confidence clears these thresholds.
	VoiceConfidenceHigh  float64
	VoiceConfidenceExact float64
	VoiceBonusHigh       float64
	VoiceBonusExact      float64

	// Streak multipliers, ordered by ascending threshold.
	StreakTiers []StreakTier

	// Difficulty adjustment: ratings at or above EasyRating ease the card,
	// ratings at or below HardRating harden it.
	EasyRating           int
	HardRating           int
	EasyDifficultyFactor float64
	HardDifficultyFactor float64

	// Retention score weights
	RatingWeight      float64
	ReviewCountWeight float64
	ReviewCountCap    float64
	ConfidenceWeight  float64
}

// ParamsConfig allows overriding the default parameters when creating a new
// Params instance.
type ParamsConfig struct {
	StabilityFloor float64
	MinDifficulty  float64
	MaxDifficulty  float64
	MinInterval    time.Duration
	MaxInterval    time.Duration

	VoiceBonusHigh  float64
	VoiceBonusExact float64

	StreakTiers []StreakTier
}

// NewDefaultParams creates a new Params instance with default values.
func NewDefaultParams() *Params {
	return &Params{
		StabilityFloor: domain.DefaultStability,
		MinDifficulty:  domain.MinDifficulty,
		MaxDifficulty:  domain.MaxDifficulty,
		MinInterval:    4 * time.Hour,
		MaxInterval:    365 * 24 * time.Hour,

		VoiceConfidenceHigh:  0.85,
		VoiceConfidenceExact: 0.95,
		VoiceBonusHigh:       1.1,
		VoiceBonusExact:      1.2,

		// Largest threshold met wins; no threshold met means 1.0.
		StreakTiers: []StreakTier{
			{Threshold: 7, Multiplier: 1.1},
			{Threshold: 14, Multiplier: 1.2},
			{Threshold: 30, Multiplier: 1.3},
			{Threshold: 60, Multiplier: 1.4},
		},

		EasyRating:           4,
		HardRating:           2,
		EasyDifficultyFactor: 0.9,
		HardDifficultyFactor: 1.1,

		RatingWeight:      0.7,
		ReviewCountWeight: 0.01,
		ReviewCountCap:    0.2,
		ConfidenceWeight:  0.1,
	}
}

// NewParams creates a new Params instance with custom configuration.
// Zero-valued fields keep their defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.StabilityFloor > 0 {
		params.StabilityFloor = config.StabilityFloor
	}
	if config.MinDifficulty > 0 {
		params.MinDifficulty = config.MinDifficulty
	}
	if config.MaxDifficulty > 0 {
		params.MaxDifficulty = config.MaxDifficulty
	}
	if config.MinInterval > 0 {
		params.MinInterval = config.MinInterval
	}
	if config.MaxInterval > 0 {
		params.MaxInterval = config.MaxInterval
	}
	if config.VoiceBonusHigh > 0 {
		params.VoiceBonusHigh = config.VoiceBonusHigh
	}
	if config.VoiceBonusExact > 0 {
		params.VoiceBonusExact = config.VoiceBonusExact
	}
	if len(config.StreakTiers) > 0 {
		params.StreakTiers = config.StreakTiers
	}

	return params
}
