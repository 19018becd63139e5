package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/store"
)

// Verify interface compliance at compile time
var _ SchedulerService = (*schedulerServiceImpl)(nil)

// schedulerServiceImpl implements the SchedulerService interface.
type schedulerServiceImpl struct {
	cardStore       store.CardStore
	targetRetention float64
	logger          *slog.Logger
}

// NewSchedulerService creates a new SchedulerService implementation.
// A targetRetention <= 0 falls back to DefaultTargetRetention.
func NewSchedulerService(
	cardStore store.CardStore,
	targetRetention float64,
	logger *slog.Logger,
) SchedulerService {
	if cardStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardStore cannot be nil")
	}
	if targetRetention <= 0 {
		targetRetention = DefaultTargetRetention
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &schedulerServiceImpl{
		cardStore:       cardStore,
		targetRetention: targetRetention,
		logger:          logger.With(slog.String("component", "scheduler_service")),
	}
}

// SelectDue implements SchedulerService.SelectDue.
// The full due set is fetched unbounded because the retention filter and
// at-risk ordering must run before any truncation.
func (s *schedulerServiceImpl) SelectDue(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
	limit int,
) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	due, err := s.cardStore.FindDueCards(ctx, userID, mode, 0)
	if err != nil {
		log.Error("failed to find due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to find due cards: %w", err)
	}

	selected := make([]*domain.Card, 0, len(due))
	for _, card := range due {
		if card.RetentionScore >= s.targetRetention {
			continue
		}
		selected = append(selected, card)
	}

	// Stable sort keeps re-runs with no intervening reviews deterministic.
	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.RetentionScore != b.RetentionScore {
			return a.RetentionScore < b.RetentionScore
		}
		if a.Stability != b.Stability {
			return a.Stability < b.Stability
		}
		return a.ReviewCount > b.ReviewCount
	})

	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}

	log.Debug("selected due cards",
		slog.String("user_id", userID.String()),
		slog.String("mode", string(mode)),
		slog.Int("candidates", len(due)),
		slog.Int("selected", len(selected)))
	return selected, nil
}

// NextCard implements SchedulerService.NextCard.
func (s *schedulerServiceImpl) NextCard(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
) (*domain.Card, error) {
	cards, err := s.SelectDue(ctx, userID, mode, 1)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrNoCardsDue
	}
	return cards[0], nil
}

// OptimalBatchSize implements SchedulerService.OptimalBatchSize.
func (s *schedulerServiceImpl) OptimalBatchSize(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cards, err := s.cardStore.FindByUser(ctx, userID)
	if err != nil {
		log.Error("failed to load user cards for batch sizing",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, fmt.Errorf("failed to load user cards: %w", err)
	}

	batch := DefaultBatchSize
	if len(cards) > 0 {
		var sum float64
		for _, card := range cards {
			sum += card.RetentionScore
		}
		mean := sum / float64(len(cards))

		switch {
		case mean > highRetentionMean:
			batch = RaisedBatchSize
		case mean < lowRetentionMean:
			batch = LoweredBatchSize
		}
	}

	if mode == domain.StudyModeVoice {
		batch = int(math.Floor(float64(batch) * voiceBatchFactor))
	}

	log.Debug("computed batch size",
		slog.String("user_id", userID.String()),
		slog.String("mode", string(mode)),
		slog.Int("card_count", len(cards)),
		slog.Int("batch_size", batch))
	return batch, nil
}
