package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/metrics"
	"github.com/phrazzld/docflow/internal/store"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// Outcome strings recorded per item. Success outcomes are produced by the
// Operation.
const (
	OutcomeNotFound       = "not_found"
	OutcomeUnreadable     = "error: cannot read original file"
	outcomeErrorPrefix    = "error: "
	unexpectedErrorPrefix = "unexpected error: "
)

// ErrSourceUnreadable marks a failure to load an item's stored content.
var ErrSourceUnreadable = errors.New("cannot read original file")

// Operation is one kind of batch work applied to each document.
type Operation interface {
	// Name identifies the operation in task records, logs and metrics.
	Name() string

	// Eligible returns a skip outcome and false when doc must not be processed.
	Eligible(doc *domain.Document) (skip string, ok bool)

	// Apply processes doc and returns its success outcome. Errors are hard
	// failures for the item; wrap ErrSourceUnreadable when content cannot be loaded.
	Apply(ctx context.Context, doc *domain.Document) (string, error)
}

// itemKind classifies an item outcome for status resolution and metrics.
type itemKind string

const (
	kindSucceeded itemKind = "succeeded"
	kindNotFound  itemKind = "not_found"
	kindSkipped   itemKind = "skipped"
	kindFailed    itemKind = "failed"
)

// BatchProcessor applies an Operation to every item of a batch and reports
// progress and the terminal status through a Registry.
type BatchProcessor struct {
	registry Registry
	docs     store.DocumentStore
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(registry Registry, docs store.DocumentStore, logger *slog.Logger) *BatchProcessor {
	return &BatchProcessor{
		registry: registry,
		docs:     docs,
		tracer:   otel.Tracer("github.com/phrazzld/docflow/internal/task"),
		logger:   logger.With("component", "batch_processor"),
	}
}

// Run processes itemIDs strictly in order. Per-item failures are recorded
// and never stop the batch. The returned error is non-nil only when the
// terminal status could not be written.
func (p *BatchProcessor) Run(ctx context.Context, taskID string, op Operation, itemIDs []int64) error {
	ctx, span := p.tracer.Start(ctx, "task."+op.Name(), trace.WithAttributes(
		attribute.String("task.id", taskID),
		attribute.Int("task.items", len(itemIDs)),
	))
	defer span.End()

	logger := p.logger.With("task_id", taskID, "operation", op.Name())
	logger.Info("batch started", "item_count", len(itemIDs))
	start := time.Now()

	results := make(map[string]string, len(itemIDs))
	var itemErrs, fatalErr error

	recovered := panics.Try(func() {
		for _, id := range itemIDs {
			outcome, kind, err := p.processItem(ctx, op, id, logger)
			results[strconv.FormatInt(id, 10)] = outcome
			metrics.TaskItemsTotal.WithLabelValues(op.Name(), string(kind)).Inc()
			span.AddEvent("item", trace.WithAttributes(
				attribute.Int64("item.id", id),
				attribute.String("item.kind", string(kind)),
			))

			if err != nil {
				itemErrs = multierr.Append(itemErrs, fmt.Errorf("item %d: %w", id, err))
			}

			if err := p.registry.Update(ctx, taskID, StatusProcessing, "", results); err != nil {
				fatalErr = fmt.Errorf("failed to publish progress: %w", err)
				return
			}
		}
	})
	if recovered != nil {
		fatalErr = recovered.AsError()
	}

	status, message := StatusCompleted, ""
	switch {
	case fatalErr != nil:
		status, message = StatusFailed, unexpectedErrorPrefix+fatalErr.Error()
		logger.Error("batch aborted", "error", fatalErr, "items_done", len(results))
	case itemErrs != nil:
		status, message = StatusFailed, itemErrs.Error()
	}

	if status == StatusFailed {
		span.SetStatus(codes.Error, message)
	}

	elapsed := time.Since(start)
	metrics.TaskFinishedTotal.WithLabelValues(op.Name(), string(status)).Inc()
	metrics.TaskDurationSeconds.WithLabelValues(op.Name(), string(status)).Observe(elapsed.Seconds())

	if err := p.registry.Update(ctx, taskID, status, message, results); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to record terminal status %s: %w", status, err)
	}

	logger.Info("batch finished",
		"status", status,
		"item_count", len(itemIDs),
		"failed_items", len(multierr.Errors(itemErrs)),
		"duration_ms", elapsed.Milliseconds())

	return nil
}

// processItem runs one item and converts every failure, including a panic,
// into an outcome. A non-nil error marks a hard failure.
func (p *BatchProcessor) processItem(ctx context.Context, op Operation, id int64, logger *slog.Logger) (string, itemKind, error) {
	var (
		outcome string
		kind    itemKind
		err     error
	)

	recovered := panics.Try(func() {
		outcome, kind, err = p.applyItem(ctx, op, id)
	})
	if recovered != nil {
		err = recovered.AsError()
		outcome, kind = outcomeErrorPrefix+err.Error(), kindFailed
	}

	switch kind {
	case kindFailed:
		logger.Warn("item failed", "item_id", id, "outcome", outcome, "error", err)
	case kindNotFound, kindSkipped:
		logger.Info("item skipped", "item_id", id, "outcome", outcome)
	default:
		logger.Debug("item processed", "item_id", id, "outcome", outcome)
	}

	return outcome, kind, err
}

func (p *BatchProcessor) applyItem(ctx context.Context, op Operation, id int64) (string, itemKind, error) {
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return OutcomeNotFound, kindNotFound, nil
		}
		return outcomeErrorPrefix + err.Error(), kindFailed, err
	}

	if skip, ok := op.Eligible(doc); !ok {
		return skip, kindSkipped, nil
	}

	outcome, err := op.Apply(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrSourceUnreadable) {
			return OutcomeUnreadable, kindFailed, err
		}
		return outcomeErrorPrefix + err.Error(), kindFailed, err
	}

	return outcome, kindSucceeded, nil
}
