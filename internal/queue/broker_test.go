package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedelivery checks that a task whose handler fails once comes back.
func testRedelivery(t *testing.T, q Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	taskType := TaskType("test-" + uuid.NewString())
	attempts := make(chan int, 4)
	done := make(chan error, 1)
	go func() {
		done <- q.Worker(ctx, taskType, func(_ context.Context, task Task) error {
			attempts <- task.Attempts
			if task.Attempts == 0 {
				return errors.New("first attempt fails")
			}
			return nil
		})
	}()

	// Core NATS drops messages published before the subscription exists.
	time.Sleep(200 * time.Millisecond)
	task := Task{ID: uuid.New(), Type: taskType, Payload: []byte(`{"n":1}`), MaxAttempts: 3}
	require.NoError(t, q.Enqueue(ctx, task))

	for want := 0; want < 2; want++ {
		select {
		case got := <-attempts:
			assert.Equal(t, want, got)
		case <-ctx.Done():
			t.Fatalf("attempt %d not delivered", want)
		}
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestAMQPQueue(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set")
	}
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()

	q, err := NewAMQP(discard(), conn)
	require.NoError(t, err)
	testRedelivery(t, q)
}

func TestNATSQueue(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	testRedelivery(t, NewNATS(discard(), nc))
}

func TestLocalQueueRedelivers(t *testing.T) {
	testRedelivery(t, NewLocal(discard(), 4))
}
