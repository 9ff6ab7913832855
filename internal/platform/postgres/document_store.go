package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/platform/logger"
	"github.com/phrazzld/docflow/internal/store"
)

const documentColumns = `id, file_name, file_type, content_type, size, storage_id,
	COALESCE(category_id, 0), embedded, checksum, uploaded_at`

// DocumentStore implements store.DocumentStore on PostgreSQL.
type DocumentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a DocumentStore. The caller owns db, which may be
// a *sql.DB or a *sql.Tx.
func NewDocumentStore(db store.DBTX, logger *slog.Logger) *DocumentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentStore{
		db:     db,
		logger: logger.With(slog.String("component", "document_store")),
	}
}

// Create implements store.DocumentStore.Create.
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := doc.Validate(); err != nil {
		log.Warn("document validation failed during create",
			slog.String("file_name", doc.FileName),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO documents (file_name, file_type, content_type, size, storage_id,
			category_id, embedded, checksum, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), $7, $8, $9)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		doc.FileName,
		doc.FileType,
		doc.ContentType,
		doc.Size,
		doc.StorageID,
		doc.CategoryID,
		doc.Embedded,
		doc.Checksum,
		doc.UploadedAt,
	).Scan(&doc.ID)
	if err != nil {
		log.Error("failed to create document",
			slog.String("storage_id", doc.StorageID),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("document created", slog.Int64("document_id", doc.ID))
	return nil
}

// GetByID implements store.DocumentStore.GetByID.
func (s *DocumentStore) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get document",
			slog.Int64("document_id", id),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return doc, nil
}

// List implements store.DocumentStore.List.
func (s *DocumentStore) List(ctx context.Context, filter store.DocumentFilter) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if filter.CategoryID != 0 {
		query += ` WHERE category_id = $1`
		args = append(args, filter.CategoryID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, MapError(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return docs, nil
}

// MarkEmbedded implements store.DocumentStore.MarkEmbedded.
func (s *DocumentStore) MarkEmbedded(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET embedded = TRUE WHERE id = $1`, id)
	if err != nil {
		return store.NewStoreError("document", "update", "failed to set embedded flag",
			fmt.Errorf("%w: %w", store.ErrUpdateFailed, MapError(err)))
	}
	return CheckRowsAffected(result)
}

// Delete implements store.DocumentStore.Delete.
func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return store.NewStoreError("document", "delete", "failed to delete row",
			fmt.Errorf("%w: %w", store.ErrDeleteFailed, MapError(err)))
	}
	return CheckRowsAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.FileType,
		&doc.ContentType,
		&doc.Size,
		&doc.StorageID,
		&doc.CategoryID,
		&doc.Embedded,
		&doc.Checksum,
		&doc.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
