package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/api/shared"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/service/insights"
)

// defaultReportRange is used when the report query omits its time range.
const defaultReportRange = 30 * 24 * time.Hour

// InsightsHandler handles performance analysis HTTP requests
type InsightsHandler struct {
	insights insights.InsightsService
	logger   *slog.Logger
}

// NewInsightsHandler creates a new InsightsHandler
func NewInsightsHandler(insightsService insights.InsightsService, logger *slog.Logger) *InsightsHandler {
	if insightsService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("insightsService cannot be nil for InsightsHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for InsightsHandler")
	}

	return &InsightsHandler{
		insights: insightsService,
		logger:   logger.With(slog.String("component", "insights_handler")),
	}
}

// GetStreak handles GET /users/{userID}/streak requests.
func (h *InsightsHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := pathUserID(w, r, log)
	if !ok {
		return
	}

	analysis, err := h.insights.AnalyzeStudyStreak(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to analyze study streak")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, analysis)
}

// GetReport handles GET /users/{userID}/report requests.
// Query parameters start and end are RFC 3339 timestamps; omitted, the range
// defaults to the last 30 days.
func (h *InsightsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := pathUserID(w, r, log)
	if !ok {
		return
	}

	end := time.Now().UTC()
	start := end.Add(-defaultReportRange)

	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid end timestamp")
			return
		}
		end = parsed
	}
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid start timestamp")
			return
		}
		start = parsed
	}

	report, err := h.insights.GeneratePerformanceReport(r.Context(), userID, start, end)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("performance report generated",
		slog.String("user_id", userID.String()),
		slog.Int("session_count", report.SessionCount))
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// pathUserID extracts and parses the userID path parameter, writing an error
// response on failure.
func pathUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "userID")
	userID, err := uuid.Parse(raw)
	if err != nil {
		log.Debug("invalid user ID in path", slog.String("value", raw))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}
