package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/api/shared"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/service/scheduler"
)

// BatchSizeResponse represents the advisory batch size for a new session.
type BatchSizeResponse struct {
	BatchSize int `json:"batch_size"`
}

// CardsHandler handles due-card selection HTTP requests
type CardsHandler struct {
	scheduler scheduler.SchedulerService
	logger    *slog.Logger
}

// NewCardsHandler creates a new CardsHandler
func NewCardsHandler(schedulerService scheduler.SchedulerService, logger *slog.Logger) *CardsHandler {
	if schedulerService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("schedulerService cannot be nil for CardsHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CardsHandler")
	}

	return &CardsHandler{
		scheduler: schedulerService,
		logger:    logger.With(slog.String("component", "cards_handler")),
	}
}

// GetDueCards handles GET /users/{userID}/cards/due requests.
// Query parameters: mode (default standard), limit (default 0, no limit).
func (h *CardsHandler) GetDueCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, mode, ok := userAndMode(w, r, log)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	cards, err := h.scheduler.SelectDue(r.Context(), userID, mode, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to select due cards")
		return
	}

	log.Debug("due cards selected",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(cards)))
	shared.RespondWithJSON(w, r, http.StatusOK, cards)
}

// GetBatchSize handles GET /users/{userID}/batch-size requests.
func (h *CardsHandler) GetBatchSize(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, mode, ok := userAndMode(w, r, log)
	if !ok {
		return
	}

	batch, err := h.scheduler.OptimalBatchSize(r.Context(), userID, mode)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute batch size")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, BatchSizeResponse{BatchSize: batch})
}

// userAndMode extracts the userID path parameter and the mode query
// parameter, writing an error response on failure.
func userAndMode(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (uuid.UUID, domain.StudyMode, bool) {
	raw := chi.URLParam(r, "userID")
	userID, err := uuid.Parse(raw)
	if err != nil {
		log.Debug("invalid user ID in path", slog.String("value", raw))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID")
		return uuid.Nil, "", false
	}

	mode := domain.StudyModeStandard
	if rawMode := r.URL.Query().Get("mode"); rawMode != "" {
		mode = domain.StudyMode(rawMode)
		if !mode.IsValid() {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid study mode")
			return uuid.Nil, "", false
		}
	}

	return userID, mode, true
}
