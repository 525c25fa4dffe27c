package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueueWithRetry(t *testing.T) {
	task := Task{Type: TaskTypeShield, Payload: []byte(`{}`)}

	t.Run("succeeds after transient failure", func(t *testing.T) {
		q := new(MockQueue)
		q.On("Enqueue", mock.Anything, task).Return(errors.New("broker down")).Once()
		q.On("Enqueue", mock.Anything, task).Return(nil).Once()

		require.NoError(t, EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond))
		q.AssertExpectations(t)
	})

	t.Run("returns last error", func(t *testing.T) {
		q := new(MockQueue)
		q.On("Enqueue", mock.Anything, task).Return(errors.New("broker down")).Times(2)

		err := EnqueueWithRetry(context.Background(), q, task, 2, time.Millisecond)
		assert.EqualError(t, err, "broker down")
		q.AssertExpectations(t)
	})
}

func TestNextAttempt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	next, ok := nextAttempt(Task{}, now)
	assert.True(t, ok)
	assert.Equal(t, 1, next.Attempts)
	assert.Equal(t, defaultMaxAttempts, next.MaxAttempts)
	assert.Equal(t, now.Add(2*time.Second), next.NotBefore)

	_, ok = nextAttempt(Task{Attempts: 2, MaxAttempts: 3}, now)
	assert.False(t, ok)
}

func TestLocalQueueDeliversTasks(t *testing.T) {
	q := NewLocal(discard(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Task, 1)
	done := make(chan error, 1)
	go func() {
		done <- q.Worker(ctx, TaskTypeShield, func(_ context.Context, task Task) error {
			got <- task
			return nil
		})
	}()

	require.NoError(t, q.Enqueue(ctx, Task{Type: TaskTypeShield, Payload: []byte("p")}))

	select {
	case task := <-got:
		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, []byte("p"), task.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not delivered")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestLocalQueueDropsAfterMaxAttempts(t *testing.T) {
	q := NewLocal(discard(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 4)
	go func() {
		_ = q.Worker(ctx, TaskTypeShield, func(context.Context, Task) error {
			calls <- struct{}{}
			return errors.New("model unavailable")
		})
	}()

	require.NoError(t, q.Enqueue(ctx, Task{Type: TaskTypeShield, MaxAttempts: 1}))

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
	select {
	case <-calls:
		t.Fatal("task was retried past its max attempts")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalQueueFull(t *testing.T) {
	q := NewLocal(discard(), 1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{Type: TaskTypeShield}))
	assert.ErrorIs(t, q.Enqueue(ctx, Task{Type: TaskTypeShield}), ErrQueueFull)
	assert.Error(t, q.Enqueue(ctx, Task{}))
}
