package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// NewAMQP constructs a RabbitMQ-backed queue with one durable queue per task type.
func NewAMQP(log *slog.Logger, conn *amqp.Connection) (Queue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	return &amqpQueue{log: log, conn: conn, pub: ch, declared: map[TaskType]bool{}}, nil
}

type amqpQueue struct {
	log  *slog.Logger
	conn *amqp.Connection

	mu       sync.Mutex
	pub      *amqp.Channel
	declared map[TaskType]bool
}

func queueName(t TaskType) string { return "tasks." + string(t) }

func (q *amqpQueue) declare(ch *amqp.Channel, t TaskType) error {
	_, err := ch.QueueDeclare(
		queueName(t),
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

func (q *amqpQueue) Enqueue(_ context.Context, task Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Type == "" {
		return errors.New("task type required")
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.declared[task.Type] {
		if err := q.declare(q.pub, task.Type); err != nil {
			return fmt.Errorf("declare queue: %w", err)
		}
		q.declared[task.Type] = true
	}
	return q.pub.Publish(
		"",
		queueName(task.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    task.ID.String(),
			Body:         body,
		},
	)
}

func (q *amqpQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	if err := q.declare(ch, taskType); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	msgs, err := ch.Consume(
		queueName(taskType),
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			q.handleDelivery(ctx, msg, handler)
		}
	}
}

func (q *amqpQueue) handleDelivery(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var task Task
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		q.log.Error("failed to decode task", "err", err)
		_ = msg.Reject(false)
		return
	}
	if err := waitUntil(ctx, task.NotBefore); err != nil {
		_ = msg.Nack(false, true)
		return
	}

	if err := handler(ctx, task); err != nil {
		if next, retry := nextAttempt(task, time.Now()); retry {
			if err := q.Enqueue(ctx, next); err != nil {
				q.log.Error("failed to re-enqueue task after failure", "id", task.ID, "type", task.Type, "enqueue_err", err)
			}
		} else {
			q.log.Error("task permanently failed", "id", task.ID, "type", task.Type, "original_err", err)
		}
	}
	_ = msg.Ack(false)
}
