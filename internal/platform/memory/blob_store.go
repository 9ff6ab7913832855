package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/phrazzld/docflow/internal/blob"
)

// BlobStore keeps blob content in memory.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ blob.Store = (*BlobStore)(nil)

// NewBlobStore creates an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// Open implements blob.Store.
func (s *BlobStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blob.ErrBlobNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put implements blob.Store.
func (s *BlobStore) Put(_ context.Context, name string, r io.Reader, _ string) error {
	if err := blob.ValidateName(name); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read blob content: %w", err)
	}

	s.mu.Lock()
	s.objects[name] = data
	s.mu.Unlock()

	return nil
}

// Delete implements blob.Store.
func (s *BlobStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.objects, name)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
