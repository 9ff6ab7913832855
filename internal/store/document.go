package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/docflow/internal/domain"
)

// DBTX is implemented by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DocumentFilter narrows a List call. Zero values match everything.
type DocumentFilter struct {
	CategoryID int64
}

// DocumentStore defines the interface for document metadata persistence.
type DocumentStore interface {
	// Create saves a new document and assigns its ID.
	// Returns ErrInvalidEntity wrapping the validation error if doc is invalid.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by its ID.
	// Returns ErrDocumentNotFound if the document does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Document, error)

	// List returns documents matching filter ordered by ID.
	List(ctx context.Context, filter DocumentFilter) ([]*domain.Document, error)

	// MarkEmbedded sets the embedded flag of a document.
	// Returns ErrDocumentNotFound if the document does not exist.
	MarkEmbedded(ctx context.Context, id int64) error

	// Delete removes a document.
	// Returns ErrDocumentNotFound if the document does not exist.
	Delete(ctx context.Context, id int64) error
}
