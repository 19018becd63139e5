package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/store"
)

// Errors returned by ArchiveSessionTask
var (
	ErrNilSession = errors.New("session cannot be nil")
	ErrNilArchive = errors.New("session archive cannot be nil")
)

// ArchiveSessionTask persists a completed session snapshot to the archive.
// The snapshot is captured at construction time, so the task stays valid
// after the lifecycle manager drops the live session from its table.
type ArchiveSessionTask struct {
	id      uuid.UUID
	session *domain.StudySession
	archive store.SessionArchive
	logger  *slog.Logger
	payload []byte

	mu     sync.Mutex
	status TaskStatus
}

// NewArchiveSessionTask creates a task that archives the given session
// snapshot. The session must already be completed.
func NewArchiveSessionTask(
	session *domain.StudySession,
	archive store.SessionArchive,
	logger *slog.Logger,
) (*ArchiveSessionTask, error) {
	if session == nil {
		return nil, ErrNilSession
	}
	if archive == nil {
		return nil, ErrNilArchive
	}
	if logger == nil {
		logger = slog.Default()
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session snapshot: %w", err)
	}

	return &ArchiveSessionTask{
		id:      uuid.New(),
		session: session,
		archive: archive,
		logger:  logger.With("component", "archive_session_task"),
		payload: payload,
		status:  TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *ArchiveSessionTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *ArchiveSessionTask) Type() string {
	return TaskTypeSessionArchive
}

// Payload returns the serialized session snapshot
func (t *ArchiveSessionTask) Payload() []byte {
	return t.payload
}

// Status returns the current task status
func (t *ArchiveSessionTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *ArchiveSessionTask) setStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

// Execute persists the snapshot. A duplicate archive entry is treated as
// success so a retried task does not fail permanently.
func (t *ArchiveSessionTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)

	log := t.logger.With(
		"session_id", t.session.ID,
		"user_id", t.session.UserID,
	)

	if err := t.archive.SaveSnapshot(ctx, t.session); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Debug("session snapshot already archived")
			t.setStatus(TaskStatusCompleted)
			return nil
		}
		t.setStatus(TaskStatusFailed)
		return fmt.Errorf("failed to archive session %s: %w", t.session.ID, err)
	}

	log.Debug("session snapshot archived")
	t.setStatus(TaskStatusCompleted)
	return nil
}

// Ensure ArchiveSessionTask implements the Task interface
var _ Task = (*ArchiveSessionTask)(nil)
