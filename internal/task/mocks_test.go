package task

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockNormalizer struct {
	NormalizeFn func(ctx context.Context, content []byte, fileName string) ([]byte, error)
}

func (m *mockNormalizer) Normalize(ctx context.Context, content []byte, fileName string) ([]byte, error) {
	return m.NormalizeFn(ctx, content, fileName)
}

type mockEmbedder struct {
	EmbedFn func(ctx context.Context, locator string) (json.RawMessage, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, locator string) (json.RawMessage, error) {
	return m.EmbedFn(ctx, locator)
}

type mockSubmitter struct {
	SubmitFn func(task Task) error
}

func (m *mockSubmitter) Submit(task Task) error {
	return m.SubmitFn(task)
}

// mockTask implements Task and Abandoner for runner tests.
type mockTask struct {
	id        string
	ExecuteFn func(ctx context.Context) error

	mu        sync.Mutex
	abandoned string
}

func newMockTask(id string, fn func(ctx context.Context) error) *mockTask {
	return &mockTask{id: id, ExecuteFn: fn}
}

func (m *mockTask) ID() string   { return m.id }
func (m *mockTask) Type() string { return "mock" }

func (m *mockTask) Execute(ctx context.Context) error {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx)
	}
	return nil
}

func (m *mockTask) Abandon(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = reason
}

func (m *mockTask) abandonReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abandoned
}

// failingRegistry wraps a MemoryRegistry and lets tests intercept Update.
type failingRegistry struct {
	*MemoryRegistry
	UpdateFn func(ctx context.Context, id string, status Status, message string, results map[string]string) error
}

func (f *failingRegistry) Update(ctx context.Context, id string, status Status, message string, results map[string]string) error {
	if f.UpdateFn != nil {
		if err := f.UpdateFn(ctx, id, status, message, results); err != nil {
			return err
		}
	}
	return f.MemoryRegistry.Update(ctx, id, status, message, results)
}
