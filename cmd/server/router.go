package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/membo-ai/study-engine/internal/api"
	apiMiddleware "github.com/membo-ai/study-engine/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. It accepts the application dependencies to create handlers
// and register routes. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	studyHandler := api.NewStudyHandler(app.studyService, app.logger)
	cardsHandler := api.NewCardsHandler(app.schedulerService, app.logger)
	insightsHandler := api.NewInsightsHandler(app.insightsService, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Session lifecycle endpoints
		r.Post("/study/sessions", studyHandler.CreateSession)
		r.Get("/study/sessions/{sessionID}", studyHandler.GetSessionState)
		r.Post("/study/sessions/{sessionID}/reviews", studyHandler.SubmitReview)
		r.Post("/study/sessions/{sessionID}/pause", studyHandler.PauseSession)
		r.Post("/study/sessions/{sessionID}/resume", studyHandler.ResumeSession)
		r.Post("/study/sessions/{sessionID}/complete", studyHandler.CompleteSession)

		// Scheduling endpoints
		r.Get("/users/{userID}/cards/due", cardsHandler.GetDueCards)
		r.Get("/users/{userID}/batch-size", cardsHandler.GetBatchSize)

		// Analytics endpoints
		r.Get("/users/{userID}/streak", insightsHandler.GetStreak)
		r.Get("/users/{userID}/report", insightsHandler.GetReport)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
