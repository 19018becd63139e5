package task

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTask is a configurable Task implementation for tests.
type mockTask struct {
	id       uuid.UUID
	taskType string
	execErr  error

	mu       sync.Mutex
	executed int
	done     chan struct{}
}

func newMockTask() *mockTask {
	return &mockTask{
		id:       uuid.New(),
		taskType: "mock",
		done:     make(chan struct{}),
	}
}

func (t *mockTask) ID() uuid.UUID      { return t.id }
func (t *mockTask) Type() string       { return t.taskType }
func (t *mockTask) Payload() []byte    { return nil }
func (t *mockTask) Status() TaskStatus { return TaskStatusPending }

func (t *mockTask) Execute(_ context.Context) error {
	t.mu.Lock()
	t.executed++
	if t.executed == 1 {
		close(t.done)
	}
	t.mu.Unlock()
	return t.execErr
}

func (t *mockTask) executions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executed
}

func TestTaskQueueEnqueueAndConsume(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(2, slog.Default())
	first := newMockTask()
	second := newMockTask()

	require.NoError(t, queue.Enqueue(first))
	require.NoError(t, queue.Enqueue(second))

	assert.Equal(t, first.ID(), (<-queue.GetChannel()).ID())
	assert.Equal(t, second.ID(), (<-queue.GetChannel()).ID())
}

func TestTaskQueueFull(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, slog.Default())
	require.NoError(t, queue.Enqueue(newMockTask()))

	err := queue.Enqueue(newMockTask())
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestTaskQueueClosed(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, slog.Default())
	queue.Close()

	assert.ErrorIs(t, queue.Enqueue(newMockTask()), ErrQueueClosed)

	// Close is idempotent.
	queue.Close()
}
