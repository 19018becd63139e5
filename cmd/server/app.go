package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/membo-ai/study-engine/internal/config"
	"github.com/membo-ai/study-engine/internal/domain/fsrs"
	"github.com/membo-ai/study-engine/internal/events"
	"github.com/membo-ai/study-engine/internal/platform/postgres"
	"github.com/membo-ai/study-engine/internal/service/insights"
	"github.com/membo-ai/study-engine/internal/service/scheduler"
	"github.com/membo-ai/study-engine/internal/service/study"
	"github.com/membo-ai/study-engine/internal/store"
	"github.com/membo-ai/study-engine/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	cardStore      store.CardStore
	sessionArchive store.SessionArchive

	// Service interfaces
	fsrsService      fsrs.Service
	schedulerService scheduler.SchedulerService
	insightsService  insights.InsightsService
	studyService     study.StudyService

	// Event system and background archiving
	eventEmitter *events.InMemoryEventEmitter
	archiveQueue *task.TaskQueue
	workerPool   *task.WorkerPool
	timeouts     *task.TimeoutScheduler
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.cardStore = postgres.NewPostgresCardStore(db, logger)
	app.sessionArchive = postgres.NewPostgresSessionArchive(db, logger)

	// Initialize the scheduling core
	app.fsrsService = fsrs.NewDefaultService()
	app.schedulerService = scheduler.NewSchedulerService(
		app.cardStore,
		scheduler.DefaultTargetRetention,
		logger,
	)
	app.insightsService = insights.NewInsightsService(
		app.cardStore,
		app.sessionArchive,
		logger,
	)

	// Initialize the background archive pipeline: completed sessions are
	// emitted as events, turned into archive tasks, and drained by the
	// worker pool.
	app.archiveQueue = task.NewTaskQueue(cfg.Study.ArchiverQueueSize, logger)
	app.workerPool = task.NewWorkerPool(app.archiveQueue, task.WorkerPoolConfig{
		WorkerCount: cfg.Study.ArchiverWorkers,
	}, logger)
	app.workerPool.Start()

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(
		task.NewArchiveEventHandler(app.sessionArchive, app.archiveQueue, logger),
	)

	// Initialize the session lifecycle manager
	app.timeouts = task.NewTimeoutScheduler(logger)
	app.studyService = study.NewStudyService(
		app.cardStore,
		app.schedulerService,
		app.fsrsService,
		app.insightsService,
		app.timeouts,
		app.eventEmitter,
		study.Config{InactivityTimeout: cfg.Study.InactivityTimeout},
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()
	return app.startHTTPServer(ctx, router)
}

// cleanup handles graceful shutdown of application resources. Active
// session timers are disarmed first so no auto-completion races the queue
// close, then the worker pool is stopped before the database connection is
// released.
func (app *application) cleanup() {
	if app.studyService != nil {
		app.studyService.Shutdown()
	}

	if app.archiveQueue != nil {
		app.archiveQueue.Close()
	}
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
