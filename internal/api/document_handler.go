package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/docflow/internal/api/shared"
	"github.com/phrazzld/docflow/internal/archive"
	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/platform/logger"
	"github.com/phrazzld/docflow/internal/service"
)

const multipartMemory = 8 << 20

// DocumentService is the document use-case surface the handler needs.
type DocumentService interface {
	Upload(ctx context.Context, files []service.UploadFile, categoryID int64) ([]*domain.Document, error)
	List(ctx context.Context, categoryID int64) ([]*domain.Document, error)
	Open(ctx context.Context, id int64) (*domain.Document, io.ReadCloser, error)
	DeleteDocuments(ctx context.Context, ids []int64) map[int64]string
}

// Searcher runs semantic search.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (json.RawMessage, error)
}

// ArchiveBuilder streams documents into a zip archive.
type ArchiveBuilder interface {
	Build(ctx context.Context, w io.Writer, ids []int64) (archive.Summary, error)
}

// DocumentHandler serves document CRUD, archive download and search.
type DocumentHandler struct {
	docs           DocumentService
	searcher       Searcher
	archives       ArchiveBuilder
	maxUploadBytes int64
	now            func() time.Time
	logger         *slog.Logger
}

// NewDocumentHandler creates a DocumentHandler. maxUploadBytes caps the
// request body of an upload; zero disables the cap.
func NewDocumentHandler(
	docs DocumentService,
	searcher Searcher,
	archives ArchiveBuilder,
	maxUploadBytes int64,
	logger *slog.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		docs:           docs,
		searcher:       searcher,
		archives:       archives,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
		logger:         logger.With(slog.String("component", "document_handler")),
	}
}

// RegisterRoutes mounts the document endpoints on r.
func (h *DocumentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Get("/", h.List)
	r.Delete("/", h.Delete)
	r.Get("/{id}/download", h.Download)
	r.Post("/download/batch", h.DownloadBatch)
	r.Post("/search", h.Search)
}

// Upload stores the multipart "files[]" parts under the optional
// "category_id" form value and returns 201 with the created documents.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge, "Upload too large", err)
			return
		}
		HandleAPIError(w, r, fmt.Errorf("%w: malformed multipart body: %w", domain.ErrValidation, err), "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	categoryID, err := parseOptionalID("category_id", r.FormValue("category_id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	headers := r.MultipartForm.File["files[]"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["files"]
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			HandleAPIError(w, r, fmt.Errorf("failed to open uploaded part: %w", err), "")
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)

		files = append(files, service.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}

	docs, err := h.docs.Upload(r.Context(), files, categoryID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, documentsToResponse(docs))
}

// List returns all documents, filtered by the optional category_id query.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseOptionalID("category_id", r.URL.Query().Get("category_id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	docs, err := h.docs.List(r.Context(), categoryID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, documentsToResponse(docs))
}

// Download streams one document's content as an attachment.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	doc, rc, err := h.docs.Open(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachmentDisposition(doc.FileName))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("download interrupted",
			slog.Int64("document_id", id),
			slog.String("error", err.Error()))
	}
}

// Delete removes the documents listed in the body and reports a per-ID result.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req ItemIDsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	results := h.docs.DeleteDocuments(r.Context(), req.ItemIDs)

	resp := DeleteResponse{Results: make(map[string]string, len(results))}
	for id, result := range results {
		resp.Results[strconv.FormatInt(id, 10)] = result
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// DownloadBatch streams the listed documents as one zip archive. Documents
// that cannot be read are left out.
func (h *DocumentHandler) DownloadBatch(w http.ResponseWriter, r *http.Request) {
	var req ItemIDsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	name := archiveName(h.now())
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", attachmentDisposition(name))
	w.WriteHeader(http.StatusOK)

	summary, err := h.archives.Build(r.Context(), w, req.ItemIDs)
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	if err != nil {
		// Headers are already sent; the client sees a truncated archive.
		log.Error("archive stream failed",
			slog.String("archive", name),
			slog.String("error", err.Error()))
		return
	}

	log.Info("archive sent",
		slog.String("archive", name),
		slog.Int("entries", len(summary.Entries)),
		slog.Int("skipped", len(summary.Skipped)))
}

// Search forwards a semantic query and passes the upstream JSON through.
func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.searcher.Search(r.Context(), req.Query, req.MaxResults())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("failed to write search response",
			slog.String("error", err.Error()))
	}
}

// archiveName returns docflow-zip-<yyyyMMdd>-<4 digits>.zip.
func archiveName(now time.Time) string {
	return fmt.Sprintf("docflow-zip-%s-%04d.zip", now.Format("20060102"), rand.IntN(10000))
}
