package task

import (
	"context"
	"errors"
	"maps"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

// Possible task status values. PROCESSING is the only non-terminal state.
const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether no further mutation may happen in status s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusProcessing || s.IsTerminal()
}

var (
	// ErrTaskNotFound is returned by Get for unknown, removed or expired tasks.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskFinalized is returned by Update when the task is already terminal.
	ErrTaskFinalized = errors.New("task already finalized")

	// ErrInvalidStatus is returned when an unknown status is written.
	ErrInvalidStatus = errors.New("invalid task status")
)

// Record is a snapshot of one task. Values returned by a Registry are
// copies and may be modified freely.
type Record struct {
	ID        string            `json:"taskId"`
	Operation string            `json:"operation,omitempty"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Results   map[string]string `json:"results"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.Results = make(map[string]string, len(r.Results))
	maps.Copy(out.Results, r.Results)
	return out
}

// Registry stores task records keyed by task ID. All methods are safe for
// concurrent use and Update is atomic with respect to Get.
type Registry interface {
	// Register inserts a record with status and empty results. An existing
	// record with the same ID is overwritten and a warning is logged.
	Register(ctx context.Context, id, operation string, status Status) error

	// Update replaces status, message and results of an existing record.
	// Unknown IDs are a logged no-op. Terminal records are left untouched
	// and ErrTaskFinalized is returned.
	Update(ctx context.Context, id string, status Status, message string, results map[string]string) error

	// Get returns a consistent snapshot or ErrTaskNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Remove deletes a record. Removing an unknown ID is not an error.
	Remove(ctx context.Context, id string) error
}

// Task is a unit of work executed by a Runner worker.
type Task interface {
	ID() string
	Type() string
	Execute(ctx context.Context) error
}

// Abandoner is implemented by tasks that must be finalized when the runner
// shuts down before they start.
type Abandoner interface {
	Abandon(ctx context.Context, reason string)
}
