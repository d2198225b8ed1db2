package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}
	q := NewQueue[int]("ints", func(_ context.Context, job Job[int]) error {
		mu.Lock()
		seen[job.Payload] = true
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 3, BufferSize: 2})
	q.Start(context.Background())

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job[int]{Payload: i}))
	}
	q.Stop(context.Background())

	assert.Len(t, seen, 20)
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job[int]{Payload: 99}), ErrQueueClosed)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	q := NewQueue[string]("flaky", func(_ context.Context, job Job[string]) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job[string]{ID: "a"}))
	q.Stop(context.Background())

	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	q := NewQueue[string]("broken", func(context.Context, Job[string]) error {
		calls.Add(1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job[string]{ID: "b"}))
	q.Stop(context.Background())

	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue[int]("idle", func(context.Context, Job[int]) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(context.Background(), Job[int]{}))
}

func TestQueueStopTimeoutDropsRetries(t *testing.T) {
	q := NewQueue[int]("slow", func(context.Context, Job[int]) error {
		return errors.New("down")
	}, QueueConfig{MaxRetries: 10, RetryDelay: time.Hour})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), Job[int]{Payload: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	q.Stop(ctx)
	assert.Less(t, time.Since(start), time.Second)
}
