package fsrs

import (
	"errors"
	"testing"
	"time"

	"github.com/membo-ai/study-engine/internal/domain"
)

func TestComputeScheduleValidation(t *testing.T) {
	t.Parallel()
	service := NewDefaultService()
	now := time.Now().UTC()

	t.Run("nil card", func(t *testing.T) {
		_, err := service.ComputeSchedule(nil, 3, domain.TierFree, Context{}, now)
		if !errors.Is(err, ErrNilCard) {
			t.Errorf("Expected ErrNilCard, got %v", err)
		}
	})

	t.Run("rating out of range", func(t *testing.T) {
		card := testCard(t, 0.5, 0.3, 0)
		for _, rating := range []int{-1, 6, 100} {
			_, err := service.ComputeSchedule(card, rating, domain.TierFree, Context{}, now)
			if !errors.Is(err, ErrInvalidRating) {
				t.Errorf("rating %d: expected ErrInvalidRating, got %v", rating, err)
			}
		}
	})

	t.Run("full rating range accepted", func(t *testing.T) {
		card := testCard(t, 0.5, 0.3, 0)
		for rating := 0; rating <= 5; rating++ {
			if _, err := service.ComputeSchedule(card, rating, domain.TierFree, Context{}, now); err != nil {
				t.Errorf("rating %d: unexpected error %v", rating, err)
			}
		}
	})
}

func TestApplyReview(t *testing.T) {
	t.Parallel()
	service := NewDefaultService()
	now := time.Now().UTC()

	t.Run("successful review advances counters", func(t *testing.T) {
		card := testCard(t, 0.5, 0.3, 3)
		card.StreakCount = 2

		updated, err := service.ApplyReview(card, 4, domain.TierPro, Context{}, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if updated.ReviewCount != 4 {
			t.Errorf("Expected review count 4, got %d", updated.ReviewCount)
		}
		if updated.StreakCount != 3 {
			t.Errorf("Expected streak 3, got %d", updated.StreakCount)
		}
		if updated.LastRating != 4 {
			t.Errorf("Expected last rating 4, got %d", updated.LastRating)
		}
		if updated.LastReview == nil || !updated.LastReview.Equal(now) {
			t.Errorf("Expected last review %v, got %v", now, updated.LastReview)
		}
		if !updated.NextReview.After(now) {
			t.Errorf("Expected next review in the future, got %v", updated.NextReview)
		}
	})

	t.Run("failed review resets the streak", func(t *testing.T) {
		card := testCard(t, 0.8, 0.3, 10)
		card.StreakCount = 9

		updated, err := service.ApplyReview(card, 2, domain.TierFree, Context{}, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if updated.StreakCount != 0 {
			t.Errorf("Expected streak reset to 0, got %d", updated.StreakCount)
		}
	})

	t.Run("input card is not modified", func(t *testing.T) {
		card := testCard(t, 0.5, 0.3, 0)
		before := *card

		if _, err := service.ApplyReview(card, 5, domain.TierPro, Context{}, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if card.Stability != before.Stability ||
			card.ReviewCount != before.ReviewCount ||
			card.LastReview != before.LastReview {
			t.Error("Expected input card to be unchanged")
		}
	})

	t.Run("updated card passes domain validation", func(t *testing.T) {
		card := testCard(t, 0.5, 0.3, 0)
		for rating := 0; rating <= 5; rating++ {
			updated, err := service.ApplyReview(card, rating, domain.TierFree, Context{}, now)
			if err != nil {
				t.Fatalf("rating %d: unexpected error %v", rating, err)
			}
			if err := updated.Validate(); err != nil {
				t.Errorf("rating %d: updated card fails validation: %v", rating, err)
			}
		}
	})
}
