package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/docflow/internal/metrics"
	"github.com/sourcegraph/conc/panics"
)

// RunnerConfig holds configuration for the Runner.
type RunnerConfig struct {
	// WorkerCount determines how many tasks execute concurrently.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// QueueSize bounds the number of tasks waiting for a worker.
	// If zero or negative, defaults to 1.
	QueueSize int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// Runner executes submitted tasks on a fixed pool of workers.
type Runner struct {
	queue      *Queue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewRunner creates a Runner. Workers start on Start.
func NewRunner(config RunnerConfig, logger *slog.Logger) *Runner {
	logger = logger.With("component", "task_runner")

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		logger.Warn("invalid queue size specified, using default",
			"specified_size", config.QueueSize,
			"default_size", 1)
		config.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:      NewQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler replaces the handler called when Execute returns an error
// or panics.
func (r *Runner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit queues task without blocking. It returns an error wrapping
// ErrQueueFull when all workers are busy and the queue is at capacity.
func (r *Runner) Submit(task Task) error {
	return r.queue.Enqueue(task)
}

// Start launches the workers. Calling it more than once has no effect.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		for i := 0; i < r.config.WorkerCount; i++ {
			r.wg.Add(1)
			go r.worker(i)
		}
		r.logger.Info("task runner started",
			"worker_count", r.config.WorkerCount,
			"queue_size", r.config.QueueSize)
	})
}

// Stop stops accepting work, waits for running tasks until ctx is done, and
// abandons tasks that never started.
func (r *Runner) Stop(ctx context.Context) error {
	r.cancelFunc()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}

	r.queue.Close()
	for task := range r.queue.C() {
		r.logger.Warn("abandoning queued task on shutdown",
			"task_id", task.ID(),
			"task_type", task.Type())
		if a, ok := task.(Abandoner); ok {
			a.Abandon(context.Background(), "server shutting down")
		}
	}
	metrics.TaskQueueDepth.Set(0)

	return waitErr
}

// worker processes tasks from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.C():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			metrics.TaskQueueDepth.Set(float64(r.queue.Len()))

			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task. A running task is not
// cancelled by Stop.
func (r *Runner) processTask(task Task, workerID int) {
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	logger.Info("processing task")

	var err error
	recovered := panics.Try(func() {
		err = task.Execute(context.WithoutCancel(r.ctx))
	})
	if recovered != nil {
		err = fmt.Errorf("task panicked: %w", recovered.AsError())
	}

	if err != nil {
		r.errHandler(task, err)
		return
	}

	logger.Info("task finished")
}
