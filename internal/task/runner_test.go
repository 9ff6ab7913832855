package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, discardLogger())

	require.NoError(t, q.Enqueue(newMockTask("a", nil)))
	err := q.Enqueue(newMockTask("b", nil))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Enqueue(newMockTask("c", nil)), ErrQueueClosed)

	got, ok := <-q.C()
	require.True(t, ok)
	assert.Equal(t, "a", got.ID())
}

func TestRunnerExecutesTasks(t *testing.T) {
	t.Parallel()

	r := NewRunner(RunnerConfig{WorkerCount: 3, QueueSize: 10}, discardLogger())
	r.Start()
	r.Start()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, r.Submit(newMockTask(fmt.Sprint(i), func(context.Context) error {
			defer wg.Done()
			count.Add(1)
			return nil
		})))
	}

	wg.Wait()
	assert.Equal(t, int32(10), count.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))

	assert.ErrorIs(t, r.Submit(newMockTask("late", nil)), ErrQueueClosed)
}

func TestRunnerBackpressure(t *testing.T) {
	t.Parallel()

	r := NewRunner(RunnerConfig{WorkerCount: 1, QueueSize: 1}, discardLogger())
	r.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, r.Submit(newMockTask("busy", func(context.Context) error {
		close(started)
		<-release
		return nil
	})))
	<-started

	require.NoError(t, r.Submit(newMockTask("queued", nil)))

	err := r.Submit(newMockTask("rejected", nil))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}

func TestRunnerErrorHandling(t *testing.T) {
	t.Parallel()

	r := NewRunner(RunnerConfig{WorkerCount: 1, QueueSize: 4}, discardLogger())

	var mu sync.Mutex
	var failures []error
	done := make(chan struct{}, 2)
	r.SetErrorHandler(func(task Task, err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
		done <- struct{}{}
	})
	r.Start()

	boom := errors.New("boom")
	require.NoError(t, r.Submit(newMockTask("err", func(context.Context) error { return boom })))
	require.NoError(t, r.Submit(newMockTask("panic", func(context.Context) error { panic("kaboom") })))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("error handler not called")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], boom)
	assert.Contains(t, failures[1].Error(), "kaboom")

	require.NoError(t, r.Stop(context.Background()))
}

func TestRunnerStopAbandonsQueuedTasks(t *testing.T) {
	t.Parallel()

	r := NewRunner(RunnerConfig{WorkerCount: 1, QueueSize: 2}, discardLogger())

	queued := newMockTask("never-started", nil)
	require.NoError(t, r.Submit(queued))

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, "server shutting down", queued.abandonReason())
}

func TestRunnerStopTimeout(t *testing.T) {
	t.Parallel()

	r := NewRunner(RunnerConfig{WorkerCount: 1, QueueSize: 1}, discardLogger())
	r.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.Submit(newMockTask("slow", func(context.Context) error {
		close(started)
		<-release
		return nil
	})))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Stop(ctx), context.DeadlineExceeded)
}

func TestNewRunnerDefaults(t *testing.T) {
	t.Parallel()

	r := NewRunner(RunnerConfig{}, discardLogger())
	assert.Equal(t, 1, r.config.WorkerCount)
	assert.Equal(t, 1, r.config.QueueSize)

	def := DefaultRunnerConfig()
	assert.Equal(t, 4, def.WorkerCount)
	assert.Equal(t, 100, def.QueueSize)
}
