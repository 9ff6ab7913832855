package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/phrazzld/docflow/internal/blob"
	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/platform/logger"
	"github.com/phrazzld/docflow/internal/store"
)

// Per-item results reported by DeleteDocuments.
const (
	DeleteResultDeleted  = "deleted"
	DeleteResultNotFound = "not_found"
	DeleteResultError    = "error"
)

const defaultContentType = "application/octet-stream"

// UploadFile is one file of an upload request.
type UploadFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// DocumentService manages stored documents and their content.
type DocumentService struct {
	docs   store.DocumentStore
	blobs  blob.Store
	logger *slog.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(docs store.DocumentStore, blobs blob.Store, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		docs:   docs,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "document_service")),
	}
}

// Upload stores every file and records its metadata under categoryID
// (0 for none). Either all files are stored or none are: a failure rolls
// back the files already written by this call.
func (s *DocumentService) Upload(ctx context.Context, files []UploadFile, categoryID int64) ([]*domain.Document, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	log := logger.FromContextOrDefault(ctx, s.logger)
	created := make([]*domain.Document, 0, len(files))

	for _, f := range files {
		doc, err := s.storeOne(ctx, f, categoryID)
		if err != nil {
			log.Error("upload failed, rolling back",
				slog.String("file_name", f.Name),
				slog.Int("already_stored", len(created)),
				slog.String("error", err.Error()))
			s.rollback(context.WithoutCancel(ctx), created)
			return nil, err
		}
		created = append(created, doc)
	}

	log.Info("documents uploaded", slog.Int("count", len(created)), slog.Int64("category_id", categoryID))
	return created, nil
}

func (s *DocumentService) storeOne(ctx context.Context, f UploadFile, categoryID int64) (*domain.Document, error) {
	name := filepath.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if strings.TrimSpace(f.Name) == "" || name == "." || name == "/" {
		return nil, ErrEmptyFileName
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	objectName := blob.ObjectName(name)
	sum := domain.NewChecksumWriter()
	if err := s.blobs.Put(ctx, objectName, io.TeeReader(f.Content, sum), contentType); err != nil {
		return nil, NewDocumentServiceError("upload", "failed to store content", err)
	}

	doc, err := domain.NewDocument(name, contentType, sum.Size(), objectName, categoryID)
	if err == nil {
		doc.Checksum = sum.Sum()
		err = s.docs.Create(ctx, doc)
	}
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), objectName); delErr != nil {
			s.logger.Warn("failed to discard orphaned content",
				slog.String("storage_id", objectName),
				slog.String("error", delErr.Error()))
		}
		return nil, NewDocumentServiceError("upload", "failed to record document", err)
	}

	return doc, nil
}

func (s *DocumentService) rollback(ctx context.Context, docs []*domain.Document) {
	for _, doc := range docs {
		if err := s.docs.Delete(ctx, doc.ID); err != nil {
			s.logger.Warn("rollback: failed to delete document",
				slog.Int64("document_id", doc.ID),
				slog.String("error", err.Error()))
		}
		if err := s.blobs.Delete(ctx, doc.StorageID); err != nil {
			s.logger.Warn("rollback: failed to delete content",
				slog.String("storage_id", doc.StorageID),
				slog.String("error", err.Error()))
		}
	}
}

// List returns documents, optionally restricted to one category.
func (s *DocumentService) List(ctx context.Context, categoryID int64) ([]*domain.Document, error) {
	docs, err := s.docs.List(ctx, store.DocumentFilter{CategoryID: categoryID})
	if err != nil {
		return nil, NewDocumentServiceError("list", "failed to list documents", err)
	}
	return docs, nil
}

// Get returns one document's metadata.
// Returns store.ErrDocumentNotFound if it does not exist.
func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, NewDocumentServiceError("get", "failed to load document", err)
	}
	return doc, nil
}

// Open returns a document and a reader for its content. The caller closes
// the reader. Missing metadata yields store.ErrDocumentNotFound and missing
// content yields blob.ErrBlobNotFound.
func (s *DocumentService) Open(ctx context.Context, id int64) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, doc.StorageID)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			return nil, nil, err
		}
		return nil, nil, NewDocumentServiceError("open", "failed to read content", err)
	}
	return doc, rc, nil
}

// DeleteDocuments removes each document and its content, reporting a
// per-ID result. The map always has one key per distinct ID.
func (s *DocumentService) DeleteDocuments(ctx context.Context, ids []int64) map[int64]string {
	log := logger.FromContextOrDefault(ctx, s.logger)
	results := make(map[int64]string, len(ids))

	for _, id := range ids {
		if _, done := results[id]; done {
			continue
		}

		doc, err := s.docs.GetByID(ctx, id)
		if err != nil {
			if store.IsNotFoundError(err) {
				results[id] = DeleteResultNotFound
			} else {
				log.Error("failed to load document for deletion",
					slog.Int64("document_id", id),
					slog.String("error", err.Error()))
				results[id] = DeleteResultError
			}
			continue
		}

		if err := s.docs.Delete(ctx, id); err != nil {
			if store.IsNotFoundError(err) {
				results[id] = DeleteResultNotFound
				continue
			}
			log.Error("failed to delete document",
				slog.Int64("document_id", id),
				slog.String("error", err.Error()))
			results[id] = DeleteResultError
			continue
		}

		if err := s.blobs.Delete(ctx, doc.StorageID); err != nil {
			log.Warn("document deleted but content removal failed",
				slog.Int64("document_id", id),
				slog.String("storage_id", doc.StorageID),
				slog.String("error", err.Error()))
		}
		results[id] = DeleteResultDeleted
	}

	return results
}
