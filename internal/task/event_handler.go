package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/events"
	"github.com/membo-ai/study-engine/internal/store"
)

// ArchiveEventHandler implements the events.EventHandler interface. It turns
// session-completed events into archive tasks and enqueues them for the
// worker pool, keeping the lifecycle manager decoupled from persistence.
type ArchiveEventHandler struct {
	archive store.SessionArchive
	queue   TaskQueueWriter
	logger  *slog.Logger
}

// NewArchiveEventHandler creates an event handler that enqueues archive tasks
// for completed sessions.
func NewArchiveEventHandler(
	archive store.SessionArchive,
	queue TaskQueueWriter,
	logger *slog.Logger,
) *ArchiveEventHandler {
	if archive == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("archive cannot be nil")
	}
	if queue == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ArchiveEventHandler{
		archive: archive,
		queue:   queue,
		logger:  logger.With("component", "archive_event_handler"),
	}
}

// HandleEvent processes session-completed events by creating an archive task
// and submitting it to the queue. Events of other types are ignored.
func (h *ArchiveEventHandler) HandleEvent(ctx context.Context, event *events.SessionEvent) error {
	if event.Type != events.EventTypeSessionCompleted {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var session domain.StudySession
	if err := event.UnmarshalPayload(&session); err != nil {
		h.logger.Error("failed to unmarshal session payload",
			"error", err,
			"event_id", event.ID)
		return fmt.Errorf("failed to unmarshal session payload: %w", err)
	}

	archiveTask, err := NewArchiveSessionTask(&session, h.archive, h.logger)
	if err != nil {
		h.logger.Error("failed to create archive task",
			"error", err,
			"session_id", session.ID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create archive task: %w", err)
	}

	if err := h.queue.Enqueue(archiveTask); err != nil {
		h.logger.Error("failed to enqueue archive task",
			"error", err,
			"task_id", archiveTask.ID(),
			"session_id", session.ID,
			"event_id", event.ID)
		return fmt.Errorf("failed to enqueue archive task: %w", err)
	}

	h.logger.Debug("archive task enqueued",
		"task_id", archiveTask.ID(),
		"session_id", session.ID,
		"event_id", event.ID)
	return nil
}

// Ensure ArchiveEventHandler implements events.EventHandler
var _ events.EventHandler = (*ArchiveEventHandler)(nil)
