// Package api provides HTTP handlers for the API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/api/shared"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/platform/logger"
	"github.com/membo-ai/study-engine/internal/service/study"
)

// StudyHandler handles session lifecycle HTTP requests
type StudyHandler struct {
	studyService study.StudyService
	logger       *slog.Logger
}

// NewStudyHandler creates a new StudyHandler
func NewStudyHandler(studyService study.StudyService, logger *slog.Logger) *StudyHandler {
	if studyService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("studyService cannot be nil for StudyHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StudyHandler")
	}

	return &StudyHandler{
		studyService: studyService,
		logger:       logger.With(slog.String("component", "study_handler")),
	}
}

// SessionSettingsRequest carries optional session settings overrides.
type SessionSettingsRequest struct {
	SessionDurationSeconds   int     `json:"session_duration_seconds"   validate:"omitempty,min=60"`
	MinCards                 int     `json:"min_cards"                  validate:"omitempty,min=1"`
	MaxCards                 int     `json:"max_cards"                  validate:"omitempty,min=1"`
	VoiceConfidenceThreshold float64 `json:"voice_confidence_threshold" validate:"omitempty,gte=0,lte=1"`
	TargetRetention          float64 `json:"target_retention"           validate:"omitempty,gte=0,lte=1"`
}

// CreateSessionRequest represents the request body for creating a session
type CreateSessionRequest struct {
	UserID   string                  `json:"user_id"  validate:"required,uuid"`
	Mode     string                  `json:"mode"     validate:"required,oneof=standard voice quiz"`
	Tier     string                  `json:"tier"     validate:"omitempty"`
	Settings *SessionSettingsRequest `json:"settings" validate:"omitempty"`
}

// SubmitReviewRequest represents the request body for reviewing a card
type SubmitReviewRequest struct {
	CardID     string  `json:"card_id"    validate:"required,uuid"`
	Rating     int     `json:"rating"     validate:"gte=0,lte=5"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// CreateSession handles POST /study/sessions requests.
func (h *StudyHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateSessionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("failed to decode create session request", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		log.Debug("create session request failed validation", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	settings := domain.SessionSettings{}
	if req.Settings != nil {
		settings = domain.DefaultSettingsForMode(domain.StudyMode(req.Mode))
		if req.Settings.SessionDurationSeconds > 0 {
			settings.SessionDuration = time.Duration(req.Settings.SessionDurationSeconds) * time.Second
		}
		if req.Settings.MinCards > 0 {
			settings.MinCards = req.Settings.MinCards
		}
		if req.Settings.MaxCards > 0 {
			settings.MaxCards = req.Settings.MaxCards
		}
		if req.Settings.VoiceConfidenceThreshold > 0 {
			settings.VoiceConfidenceThreshold = req.Settings.VoiceConfidenceThreshold
		}
		if req.Settings.TargetRetention > 0 {
			settings.TargetRetention = req.Settings.TargetRetention
		}
	}

	start, err := h.studyService.CreateSession(
		r.Context(),
		userID,
		domain.StudyMode(req.Mode),
		domain.SubscriptionTier(req.Tier),
		settings,
	)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("session created",
		slog.String("session_id", start.Session.ID.String()),
		slog.String("user_id", userID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, start)
}

// SubmitReview handles POST /study/sessions/{sessionID}/reviews requests.
func (h *StudyHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.pathSessionID(w, r, log)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("failed to decode review request", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		log.Debug("review request failed validation", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid card ID")
		return
	}

	result, err := h.studyService.ProcessCardReview(r.Context(), sessionID, cardID, req.Rating, req.Confidence)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// PauseSession handles POST /study/sessions/{sessionID}/pause requests.
func (h *StudyHandler) PauseSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.pathSessionID(w, r, log)
	if !ok {
		return
	}

	session, err := h.studyService.PauseSession(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, session)
}

// ResumeSession handles POST /study/sessions/{sessionID}/resume requests.
func (h *StudyHandler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.pathSessionID(w, r, log)
	if !ok {
		return
	}

	session, err := h.studyService.ResumeSession(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, session)
}

// CompleteSession handles POST /study/sessions/{sessionID}/complete requests.
func (h *StudyHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.pathSessionID(w, r, log)
	if !ok {
		return
	}

	summary, err := h.studyService.CompleteSession(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("session completed via API", slog.String("session_id", sessionID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// GetSessionState handles GET /study/sessions/{sessionID} requests.
func (h *StudyHandler) GetSessionState(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.pathSessionID(w, r, log)
	if !ok {
		return
	}

	session, err := h.studyService.GetSessionState(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, session)
}

// pathSessionID extracts and parses the sessionID path parameter, writing an
// error response on failure.
func (h *StudyHandler) pathSessionID(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "sessionID")
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		log.Debug("invalid session ID in path", slog.String("value", raw))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid session ID")
		return uuid.Nil, false
	}
	return sessionID, true
}
