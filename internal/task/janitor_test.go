package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweeperFunc func(ctx context.Context, cutoff time.Time) (int, error)

func (f sweeperFunc) RemoveFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return f(ctx, cutoff)
}

func TestJanitorSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := NewMemoryRegistry(discardLogger())

	finished := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return finished }
	require.NoError(t, registry.Register(ctx, "old", OperationEmbed, StatusProcessing))
	require.NoError(t, registry.Update(ctx, "old", StatusCompleted, "", nil))
	require.NoError(t, registry.Register(ctx, "running", OperationEmbed, StatusProcessing))

	j := NewJanitor(registry, time.Hour, time.Minute, discardLogger())

	j.now = func() time.Time { return finished.Add(30 * time.Minute) }
	removed, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	j.now = func() time.Time { return finished.Add(2 * time.Hour) }
	removed, err = j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = registry.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = registry.Get(ctx, "running")
	assert.NoError(t, err)
}

func TestJanitorSweepError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	j := NewJanitor(sweeperFunc(func(context.Context, time.Time) (int, error) {
		return 0, boom
	}), time.Hour, time.Minute, discardLogger())

	_, err := j.Sweep(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestJanitorRun(t *testing.T) {
	t.Parallel()

	calls := make(chan time.Time, 10)
	j := NewJanitor(sweeperFunc(func(_ context.Context, cutoff time.Time) (int, error) {
		calls <- cutoff
		return 0, nil
	}), time.Hour, 5*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	select {
	case cutoff := <-calls:
		assert.WithinDuration(t, time.Now().Add(-time.Hour), cutoff, time.Minute)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never swept")
	}

	cancel()
	<-done
}
