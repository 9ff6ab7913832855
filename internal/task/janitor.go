package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/docflow/internal/metrics"
)

// Sweeper removes terminal records older than a cutoff.
type Sweeper interface {
	RemoveFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Janitor periodically expires terminal tasks so the registry stays bounded.
type Janitor struct {
	sweeper   Sweeper
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewJanitor creates a Janitor removing terminal tasks older than retention
// every interval.
func NewJanitor(sweeper Sweeper, retention, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		sweeper:   sweeper,
		retention: retention,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "task_janitor"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error("task sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes expired tasks once.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	removed, err := j.sweeper.RemoveFinishedBefore(ctx, j.now().Add(-j.retention))
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		metrics.TaskSweptTotal.Add(float64(removed))
		j.logger.Info("expired tasks removed", "count", removed)
	}

	return removed, nil
}
