package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Scheduling state defaults and bounds. Stability never falls below its
// default floor; difficulty is always clamped to [MinDifficulty, MaxDifficulty].
const (
	DefaultStability  = 0.5
	DefaultDifficulty = 0.3
	MinDifficulty     = 0.1
	MaxDifficulty     = 0.9
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a card ID is empty or nil.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardUserIDEmpty is returned when a card's user ID is empty or nil.
	ErrCardUserIDEmpty = errors.New("card user ID cannot be empty")

	// ErrCardContentEmpty is returned when a card's content is empty.
	ErrCardContentEmpty = errors.New("card content cannot be empty")

	// ErrCardContentInvalid is returned when a card's content is not valid JSON.
	ErrCardContentInvalid = errors.New("card content must be valid JSON")

	// ErrCardStabilityRange is returned when stability is below the default floor.
	ErrCardStabilityRange = errors.New("card stability cannot be below the default floor")

	// ErrCardDifficultyRange is returned when difficulty is outside its clamp range.
	ErrCardDifficultyRange = errors.New("card difficulty must be within [0.1, 0.9]")

	// ErrCardRatingRange is returned when the last rating is outside [0, 5].
	ErrCardRatingRange = errors.New("card rating must be between 0 and 5")

	// ErrCardRetentionRange is returned when the retention score is outside [0, 1].
	ErrCardRetentionRange = errors.New("card retention score must be within [0, 1]")
)

// Card represents a flashcard together with its spaced-repetition scheduling
// state. The content is stored as a JSONB structure, allowing for flexible
// card formats; the scheduling fields are mutated only through the output of
// the fsrs scheduling function.
type Card struct {
	ID      uuid.UUID       `json:"id"`
	UserID  uuid.UUID       `json:"user_id"`
	DeckID  uuid.UUID       `json:"deck_id"`
	Content json.RawMessage `json:"content"`

	Stability      float64    `json:"stability"`       // Resistance to forgetting, >= 0.5
	Difficulty     float64    `json:"difficulty"`      // Intrinsic hardness, clamped to [0.1, 0.9]
	ReviewCount    int        `json:"review_count"`    // Total completed reviews
	LastReview     *time.Time `json:"last_review"`     // Nil until the first review
	LastRating     int        `json:"last_rating"`     // 0-5, 0 = unrated
	RetentionScore float64    `json:"retention_score"` // Estimated recall probability, [0, 1]
	StreakCount    int        `json:"streak_count"`    // Consecutive successful reviews
	NextReview     time.Time  `json:"next_review"`     // When the card becomes due

	// Version supports optimistic concurrency on the schedule write-back:
	// two concurrent reviews of the same card must not silently lose an update.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CardContent represents the structure of the content field in a Card.
// This is provided as a sample structure but cards can have flexible content
// as it's stored as a JSONB field.
type CardContent struct {
	Front    string   `json:"front"`
	Back     string   `json:"back"`
	Hint     string   `json:"hint,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// NewCard creates a new Card with the given user ID, deck ID, and content.
// Scheduling state starts at the defaults, due immediately.
// Returns an error if validation fails.
func NewCard(userID, deckID uuid.UUID, content json.RawMessage) (*Card, error) {
	now := time.Now().UTC()
	card := &Card{
		ID:             uuid.New(),
		UserID:         userID,
		DeckID:         deckID,
		Content:        content,
		Stability:      DefaultStability,
		Difficulty:     DefaultDifficulty,
		RetentionScore: 0,
		NextReview:     now, // Available for review immediately
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Card has valid data.
// Returns an error if any field fails validation.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}

	if c.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}

	if len(c.Content) == 0 {
		return ErrCardContentEmpty
	}

	var js json.RawMessage
	if err := json.Unmarshal(c.Content, &js); err != nil {
		return ErrCardContentInvalid
	}

	if c.Stability < DefaultStability {
		return ErrCardStabilityRange
	}

	if c.Difficulty < MinDifficulty || c.Difficulty > MaxDifficulty {
		return ErrCardDifficultyRange
	}

	if c.LastRating < 0 || c.LastRating > 5 {
		return ErrCardRatingRange
	}

	if c.RetentionScore < 0 || c.RetentionScore > 1 {
		return ErrCardRetentionRange
	}

	return nil
}

// IsDue reports whether the card is due for review at the given time.
func (c *Card) IsDue(now time.Time) bool {
	return !c.NextReview.After(now)
}
