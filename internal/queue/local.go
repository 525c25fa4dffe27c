package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by the local queue when its buffer is exhausted.
var ErrQueueFull = errors.New("local queue is full")

// NewLocal returns an in-process queue backed by buffered channels. Tasks
// are lost on restart.
func NewLocal(log *slog.Logger, size int) Queue {
	if size <= 0 {
		size = 64
	}
	return &localQueue{log: log, size: size, chans: map[TaskType]chan Task{}}
}

type localQueue struct {
	log  *slog.Logger
	size int

	mu    sync.Mutex
	chans map[TaskType]chan Task
}

func (q *localQueue) channel(t TaskType) chan Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.chans[t]
	if !ok {
		ch = make(chan Task, q.size)
		q.chans[t] = ch
	}
	return ch
}

func (q *localQueue) Enqueue(_ context.Context, task Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Type == "" {
		return errors.New("task type required")
	}
	select {
	case q.channel(task.Type) <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *localQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	ch := q.channel(taskType)
	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-ch:
			if err := waitUntil(ctx, task.NotBefore); err != nil {
				return nil
			}
			if err := handler(ctx, task); err != nil {
				next, ok := nextAttempt(task, time.Now())
				if !ok {
					q.log.Error("task permanently failed", "id", task.ID, "type", task.Type, "original_err", err)
					continue
				}
				if err := q.Enqueue(ctx, next); err != nil {
					q.log.Error("failed to re-enqueue task after failure", "id", task.ID, "type", task.Type, "enqueue_err", err)
				}
			}
		}
	}
}
