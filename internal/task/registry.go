package task

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// entry owns one task. Writers serialize on mu and publish a new immutable
// snapshot; readers load the snapshot without locking.
type entry struct {
	mu   sync.Mutex
	snap atomic.Pointer[Record]
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
	logger  *slog.Logger
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]*entry),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("component", "task_registry"),
	}
}

// Register implements Registry.
func (r *MemoryRegistry) Register(_ context.Context, id, operation string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	now := r.now()
	e := &entry{}
	e.snap.Store(&Record{
		ID:        id,
		Operation: operation,
		Status:    status,
		Results:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	})

	r.mu.Lock()
	_, exists := r.entries[id]
	r.entries[id] = e
	r.mu.Unlock()

	if exists {
		r.logger.Warn("task registered twice, previous record overwritten", "task_id", id)
	}

	return nil
}

// Update implements Registry.
func (r *MemoryRegistry) Update(_ context.Context, id string, status Status, message string, results map[string]string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	e := r.lookup(id)
	if e == nil {
		r.logger.Warn("update for unknown task ignored", "task_id", id, "status", status)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if cur.Status.IsTerminal() {
		r.logger.Warn("update for finalized task ignored",
			"task_id", id,
			"status", cur.Status,
			"attempted_status", status)
		return ErrTaskFinalized
	}

	next := &Record{
		ID:        cur.ID,
		Operation: cur.Operation,
		Status:    status,
		Message:   message,
		Results:   make(map[string]string, len(results)),
		CreatedAt: cur.CreatedAt,
		UpdatedAt: r.now(),
	}
	maps.Copy(next.Results, results)
	e.snap.Store(next)

	return nil
}

// Get implements Registry.
func (r *MemoryRegistry) Get(_ context.Context, id string) (Record, error) {
	e := r.lookup(id)
	if e == nil {
		return Record{}, ErrTaskNotFound
	}
	return e.snap.Load().Clone(), nil
}

// Remove implements Registry.
func (r *MemoryRegistry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return nil
}

// RemoveFinishedBefore deletes terminal records last updated before cutoff
// and returns how many were removed.
func (r *MemoryRegistry) RemoveFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		snap := e.snap.Load()
		if snap.Status.IsTerminal() && snap.UpdatedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of records held.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *MemoryRegistry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}
