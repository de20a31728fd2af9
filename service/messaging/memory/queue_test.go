package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alert struct {
	Title    string
	Severity string
}

func TestQueue_PublishConsume(t *testing.T) {
	ctx := context.Background()
	queue := NewQueue[alert](DefaultConfig())

	require.NoError(t, queue.Publish(ctx, &alert{Title: "approval needed", Severity: "warning"}))
	assert.Equal(t, 1, queue.Size())

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "approval needed", msg.T().Title)
	assert.Equal(t, 1, msg.Attempts())
	assert.NoError(t, msg.Ack())
	assert.Error(t, msg.Ack())
	assert.Error(t, msg.Nack(nil))
	assert.Error(t, queue.Publish(ctx, nil))
}

func TestQueue_RetryThenDeadLetter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[alert](config)
	require.NoError(t, queue.Publish(ctx, &alert{Title: "webhook down"}))

	for attempt := 1; attempt <= 3; attempt++ {
		msg, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, attempt, msg.Attempts())
		require.NoError(t, msg.Nack(errors.New("503")))
	}

	assert.Eventually(t, func() bool { return len(queue.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "webhook down", queue.DeadLetters()[0].Title)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_FullAndClosed(t *testing.T) {
	ctx := context.Background()
	config := DefaultConfig()
	config.QueueBuffer = 1
	queue := NewQueue[alert](config)

	require.NoError(t, queue.Publish(ctx, &alert{Title: "first"}))
	assert.ErrorIs(t, queue.Publish(ctx, &alert{Title: "second"}), ErrQueueFull)

	queue.Close()
	queue.Close()
	assert.ErrorIs(t, queue.Publish(ctx, &alert{Title: "third"}), ErrClosed)

	drained, err := queue.Consume(ctx)
	if err == nil {
		assert.Equal(t, "first", drained.T().Title)
	} else {
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestQueue_ConsumeHonoursContext(t *testing.T) {
	queue := NewQueue[alert](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
