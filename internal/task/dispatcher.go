package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/phrazzld/docflow/internal/metrics"
)

var (
	// ErrEmptyBatch is returned when a submission has no item IDs.
	ErrEmptyBatch = errors.New("item IDs cannot be empty")

	// ErrInvalidItemID is returned for non-positive item IDs.
	ErrInvalidItemID = errors.New("item IDs must be positive")

	// ErrUnknownOperation is returned for an operation the dispatcher does not serve.
	ErrUnknownOperation = errors.New("unknown operation")
)

// Submitter accepts tasks for background execution without blocking.
type Submitter interface {
	Submit(task Task) error
}

// Dispatcher validates batch submissions, registers them and hands them to
// a Submitter.
type Dispatcher struct {
	registry   Registry
	submitter  Submitter
	processor  *BatchProcessor
	operations map[string]Operation
	newID      func() string
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher serving the given operations by name.
func NewDispatcher(
	registry Registry,
	submitter Submitter,
	processor *BatchProcessor,
	logger *slog.Logger,
	operations ...Operation,
) *Dispatcher {
	ops := make(map[string]Operation, len(operations))
	for _, op := range operations {
		ops[op.Name()] = op
	}

	return &Dispatcher{
		registry:   registry,
		submitter:  submitter,
		processor:  processor,
		operations: ops,
		newID:      uuid.NewString,
		logger:     logger.With("component", "dispatcher"),
	}
}

// Dispatch starts operation over itemIDs and returns the new task ID
// without waiting for any item. Duplicate IDs are processed once. On any
// error no task is left registered.
func (d *Dispatcher) Dispatch(ctx context.Context, operation string, itemIDs []int64) (string, error) {
	op, ok := d.operations[operation]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}

	items, err := normalizeItems(itemIDs)
	if err != nil {
		metrics.TaskRejectedTotal.WithLabelValues(operation, "invalid").Inc()
		return "", err
	}

	taskID := d.newID()
	logger := d.logger.With("task_id", taskID, "operation", operation)

	if err := d.registry.Register(ctx, taskID, operation, StatusProcessing); err != nil {
		return "", fmt.Errorf("failed to register task: %w", err)
	}

	t := &batchTask{
		id:        taskID,
		op:        op,
		items:     items,
		processor: d.processor,
		registry:  d.registry,
	}

	if err := d.submitter.Submit(t); err != nil {
		if rmErr := d.registry.Remove(ctx, taskID); rmErr != nil {
			logger.Error("failed to roll back task registration", "error", rmErr)
		}
		reason := "queue_full"
		if !errors.Is(err, ErrQueueFull) {
			reason = "submit_failed"
		}
		metrics.TaskRejectedTotal.WithLabelValues(operation, reason).Inc()
		logger.Warn("task submission rejected", "error", err)
		return "", fmt.Errorf("failed to submit task: %w", err)
	}

	metrics.TaskSubmittedTotal.WithLabelValues(operation).Inc()
	logger.Info("task dispatched", "item_count", len(items))

	return taskID, nil
}

// normalizeItems validates ids and drops duplicates keeping first occurrence.
func normalizeItems(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}

	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidItemID, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return slices.Clip(out), nil
}

// batchTask adapts one dispatched batch to the Task interface.
type batchTask struct {
	id        string
	op        Operation
	items     []int64
	processor *BatchProcessor
	registry  Registry
}

var (
	_ Task      = (*batchTask)(nil)
	_ Abandoner = (*batchTask)(nil)
)

func (t *batchTask) ID() string   { return t.id }
func (t *batchTask) Type() string { return t.op.Name() }

func (t *batchTask) Execute(ctx context.Context) error {
	return t.processor.Run(ctx, t.id, t.op, t.items)
}

// Abandon finalizes a task that never started. Every item records the
// abandonment as its outcome.
func (t *batchTask) Abandon(ctx context.Context, reason string) {
	message := "task abandoned: " + reason
	results := make(map[string]string, len(t.items))
	for _, id := range t.items {
		results[strconv.FormatInt(id, 10)] = outcomeErrorPrefix + message
	}
	_ = t.registry.Update(ctx, t.id, StatusFailed, message, results)
}
