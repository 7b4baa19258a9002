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

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("ranks", func(context.Context, Job) error { return nil }, QueueConfig{})

	accepted, err := q.Enqueue(Job{ID: "1"})
	require.Error(t, err)
	assert.False(t, accepted)
}

func TestQueueCoalescesWaitingKeys(t *testing.T) {
	release := make(chan struct{})
	var runs int32
	var wg sync.WaitGroup
	wg.Add(2)

	q := NewQueue("ranks", func(_ context.Context, j Job) error {
		if j.ID == "blocker" {
			<-release
		}
		atomic.AddInt32(&runs, 1)
		wg.Done()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{ID: "blocker"})
	require.NoError(t, err)
	// give the worker time to pick the blocker up so the next jobs wait in the buffer
	time.Sleep(20 * time.Millisecond)

	first, err := q.Enqueue(Job{ID: "a", Key: "batch-1:term-1"})
	require.NoError(t, err)
	second, err := q.Enqueue(Job{ID: "b", Key: "batch-1:term-1"})
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})

	q := NewQueue("ranks", func(context.Context, Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{ID: "r", Key: "k"})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}
