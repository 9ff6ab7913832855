// Package redis provides a task.Registry backed by Redis, so that several
// server instances can share task state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/phrazzld/docflow/internal/task"
)

// Hash fields of a task record.
const (
	fieldOperation = "operation"
	fieldStatus    = "status"
	fieldMessage   = "message"
	fieldResults   = "results"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// updateScript applies an update only to an existing, non-terminal record
// and arms the expiry when the new status is terminal.
// Returns 1 on update, 0 for an unknown key and -1 for a finalized record.
var updateScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return 0
end
if status == 'COMPLETED' or status == 'FAILED' then
  return -1
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'message', ARGV[2], 'results', ARGV[3], 'updated_at', ARGV[4])
if ARGV[5] ~= '0' then
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

// Registry stores each task as a Redis hash under KeyPrefix+taskID.
type Registry struct {
	client    *goredis.Client
	keyPrefix string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

var _ task.Registry = (*Registry)(nil)

// NewRegistry creates a Registry. Terminal records expire after retention.
func NewRegistry(client *goredis.Client, keyPrefix string, retention time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		client:    client,
		keyPrefix: keyPrefix,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "redis_task_registry"),
	}
}

func (r *Registry) key(id string) string {
	return r.keyPrefix + id
}

// Register implements task.Registry.
func (r *Registry) Register(ctx context.Context, id, operation string, status task.Status) error {
	if !status.Valid() {
		return task.ErrInvalidStatus
	}

	now := r.now().Format(time.RFC3339Nano)
	key := r.key(id)

	var exists *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		exists = pipe.Exists(ctx, key)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldOperation: operation,
			fieldStatus:    string(status),
			fieldMessage:   "",
			fieldResults:   "{}",
			fieldCreatedAt: now,
			fieldUpdatedAt: now,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register task: %w", err)
	}

	if exists.Val() > 0 {
		r.logger.Warn("task registered twice, previous record overwritten", "task_id", id)
	}

	return nil
}

// Update implements task.Registry.
func (r *Registry) Update(ctx context.Context, id string, status task.Status, message string, results map[string]string) error {
	if !status.Valid() {
		return task.ErrInvalidStatus
	}
	if results == nil {
		results = map[string]string{}
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	ttl := "0"
	if status.IsTerminal() {
		ttl = strconv.FormatInt(r.retention.Milliseconds(), 10)
	}

	res, err := updateScript.Run(ctx, r.client, []string{r.key(id)},
		string(status), message, string(encoded), r.now().Format(time.RFC3339Nano), ttl).Int()
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	switch res {
	case 0:
		r.logger.Warn("update for unknown task ignored", "task_id", id, "status", status)
		return nil
	case -1:
		r.logger.Warn("update for finalized task ignored", "task_id", id, "attempted_status", status)
		return task.ErrTaskFinalized
	}

	return nil
}

// Get implements task.Registry.
func (r *Registry) Get(ctx context.Context, id string) (task.Record, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return task.Record{}, fmt.Errorf("failed to read task: %w", err)
	}
	if len(fields) == 0 {
		return task.Record{}, task.ErrTaskNotFound
	}

	return decodeRecord(id, fields)
}

// Remove implements task.Registry.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to remove task: %w", err)
	}
	return nil
}

func decodeRecord(id string, fields map[string]string) (task.Record, error) {
	rec := task.Record{
		ID:        id,
		Operation: fields[fieldOperation],
		Status:    task.Status(fields[fieldStatus]),
		Message:   fields[fieldMessage],
		Results:   map[string]string{},
	}

	if raw := fields[fieldResults]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Results); err != nil {
			return task.Record{}, fmt.Errorf("corrupt results for task %s: %w", id, err)
		}
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt]); err != nil {
		return task.Record{}, fmt.Errorf("corrupt created_at for task %s: %w", id, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err != nil {
		return task.Record{}, fmt.Errorf("corrupt updated_at for task %s: %w", id, err)
	}

	return rec, nil
}
