package task

import (
	"context"
	"testing"

	"github.com/membo-ai/study-engine/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectingQueue records enqueued tasks without a channel.
type collectingQueue struct {
	tasks []Task
	err   error
}

func (q *collectingQueue) Enqueue(task Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *collectingQueue) Close() {}

func TestArchiveEventHandlerEnqueuesTask(t *testing.T) {
	t.Parallel()

	queue := &collectingQueue{}
	handler := NewArchiveEventHandler(&fakeArchive{}, queue, nil)

	session := completedSession(t)
	event, err := events.NewSessionEvent(events.EventTypeSessionCompleted, session)
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), event))
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, TaskTypeSessionArchive, queue.tasks[0].Type())
}

func TestArchiveEventHandlerIgnoresOtherEventTypes(t *testing.T) {
	t.Parallel()

	queue := &collectingQueue{}
	handler := NewArchiveEventHandler(&fakeArchive{}, queue, nil)

	event, err := events.NewSessionEvent("session.started", nil)
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), event))
	assert.Empty(t, queue.tasks)
}

func TestArchiveEventHandlerBadPayload(t *testing.T) {
	t.Parallel()

	queue := &collectingQueue{}
	handler := NewArchiveEventHandler(&fakeArchive{}, queue, nil)

	event := &events.SessionEvent{
		Type:    events.EventTypeSessionCompleted,
		Payload: []byte("{broken"),
	}

	assert.Error(t, handler.HandleEvent(context.Background(), event))
	assert.Empty(t, queue.tasks)
}

func TestArchiveEventHandlerQueueFull(t *testing.T) {
	t.Parallel()

	queue := &collectingQueue{err: ErrQueueFull}
	handler := NewArchiveEventHandler(&fakeArchive{}, queue, nil)

	event, err := events.NewSessionEvent(events.EventTypeSessionCompleted, completedSession(t))
	require.NoError(t, err)

	assert.ErrorIs(t, handler.HandleEvent(context.Background(), event), ErrQueueFull)
}
