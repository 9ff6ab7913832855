package redis

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/phrazzld/docflow/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(client, "docflow:task:", time.Hour, logger), mr
}

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, mr := newTestRegistry(t)

	require.NoError(t, r.Register(ctx, "t1", task.OperationNormalize, task.StatusProcessing))
	assert.True(t, mr.Exists("docflow:task:t1"))

	rec, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusProcessing, rec.Status)
	assert.Equal(t, task.OperationNormalize, rec.Operation)
	assert.Empty(t, rec.Results)
	assert.False(t, rec.CreatedAt.IsZero())

	require.NoError(t, r.Update(ctx, "t1", task.StatusProcessing, "", map[string]string{"1": "not_found"}))
	rec, err = r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "not_found"}, rec.Results)
	assert.Equal(t, time.Duration(0), mr.TTL("docflow:task:t1"))

	final := map[string]string{"1": "not_found", "2": "processed_new_id=7"}
	require.NoError(t, r.Update(ctx, "t1", task.StatusCompleted, "", final))
	assert.Equal(t, time.Hour, mr.TTL("docflow:task:t1"))

	done, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)
	assert.Equal(t, final, done.Results)

	err = r.Update(ctx, "t1", task.StatusFailed, "late", nil)
	assert.ErrorIs(t, err, task.ErrTaskFinalized)

	again, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, done, again)

	require.NoError(t, r.Remove(ctx, "t1"))
	require.NoError(t, r.Remove(ctx, "t1"))
	_, err = r.Get(ctx, "t1")
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestRegistryUnknownTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, mr := newTestRegistry(t)

	require.NoError(t, r.Update(ctx, "missing", task.StatusCompleted, "", nil))
	assert.False(t, mr.Exists("docflow:task:missing"))

	_, err := r.Get(ctx, "missing")
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Register(ctx, "t1", task.OperationNormalize, task.StatusProcessing))
	require.NoError(t, r.Update(ctx, "t1", task.StatusFailed, "x", map[string]string{"1": "error: x"}))
	require.NoError(t, r.Register(ctx, "t1", task.OperationEmbed, task.StatusProcessing))

	rec, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusProcessing, rec.Status)
	assert.Equal(t, task.OperationEmbed, rec.Operation)
	assert.Empty(t, rec.Results)
	assert.Empty(t, rec.Message)
}

func TestRegistryTerminalExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, mr := newTestRegistry(t)

	require.NoError(t, r.Register(ctx, "t1", task.OperationEmbed, task.StatusProcessing))
	require.NoError(t, r.Update(ctx, "t1", task.StatusFailed, "boom", nil))

	mr.FastForward(2 * time.Hour)

	_, err := r.Get(ctx, "t1")
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestRegistryInvalidStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(t)

	assert.ErrorIs(t, r.Register(ctx, "t1", "x", task.Status("NEW")), task.ErrInvalidStatus)
	assert.ErrorIs(t, r.Update(ctx, "t1", task.Status("NEW"), "", nil), task.ErrInvalidStatus)
}

func TestRegistryConcurrentUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(ctx, "t1", task.OperationNormalize, task.StatusProcessing))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				n := (w + i) % 10
				results := make(map[string]string, n)
				for k := 0; k < n; k++ {
					results[strconv.Itoa(k)] = "embedded"
				}
				assert.NoError(t, r.Update(ctx, "t1", task.StatusProcessing, strconv.Itoa(n), results))

				rec, err := r.Get(ctx, "t1")
				if assert.NoError(t, err) && rec.Message != "" {
					assert.Equal(t, rec.Message, strconv.Itoa(len(rec.Results)))
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestDecodeRecordCorrupt(t *testing.T) {
	t.Parallel()

	_, err := decodeRecord("t1", map[string]string{fieldResults: "{not json"})
	assert.Error(t, err)

	_, err = decodeRecord("t1", map[string]string{fieldResults: "{}", fieldCreatedAt: "yesterday"})
	assert.Error(t, err)
}
