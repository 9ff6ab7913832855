// Package memory provides in-process implementations of the storage
// contracts, used when no database or object store is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/store"
)

// DocumentStore is a map-backed store.DocumentStore.
type DocumentStore struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[int64]domain.Document
}

var _ store.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates an empty store. IDs start at 1.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[int64]domain.Document)}
}

// Create implements store.DocumentStore.
func (s *DocumentStore) Create(_ context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	doc.ID = s.nextID
	s.docs[doc.ID] = *doc

	return nil
}

// Put stores doc under its existing ID, replacing any previous value.
// Used to seed fixtures with known IDs.
func (s *DocumentStore) Put(doc domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = doc
	if doc.ID > s.nextID {
		s.nextID = doc.ID
	}
}

// GetByID implements store.DocumentStore.
func (s *DocumentStore) GetByID(_ context.Context, id int64) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return &doc, nil
}

// List implements store.DocumentStore.
func (s *DocumentStore) List(_ context.Context, filter store.DocumentFilter) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if filter.CategoryID != 0 && doc.CategoryID != filter.CategoryID {
			continue
		}
		d := doc
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// MarkEmbedded implements store.DocumentStore.
func (s *DocumentStore) MarkEmbedded(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.Embedded = true
	s.docs[id] = doc

	return nil
}

// Delete implements store.DocumentStore.
func (s *DocumentStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return store.ErrDocumentNotFound
	}
	delete(s.docs, id)

	return nil
}
