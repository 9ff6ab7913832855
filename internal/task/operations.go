package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/docflow/internal/blob"
	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/store"
)

// Operation names.
const (
	OperationNormalize = "normalize"
	OperationEmbed     = "embed"
)

// Outcomes produced by the built-in operations.
const (
	OutcomeNotDocx             = "not_docx"
	OutcomeNoStorageIdentifier = "no_storage_identifier"
	OutcomeEmbedded            = "embedded"
	processedNewIDFormat       = "processed_new_id=%d"
)

// Normalizer converts a document through the processing service.
type Normalizer interface {
	Normalize(ctx context.Context, content []byte, fileName string) ([]byte, error)
}

// Embedder asks the processing service to index a stored object.
type Embedder interface {
	Embed(ctx context.Context, locator string) (json.RawMessage, error)
}

// NormalizeOperation sends a word document to the processing service and
// stores the result as a new document in the same category.
type NormalizeOperation struct {
	blobs  blob.Store
	docs   store.DocumentStore
	client Normalizer
	retry  RetryPolicy
	logger *slog.Logger
}

var _ Operation = (*NormalizeOperation)(nil)

// NewNormalizeOperation creates a NormalizeOperation.
func NewNormalizeOperation(
	blobs blob.Store,
	docs store.DocumentStore,
	client Normalizer,
	retry RetryPolicy,
	logger *slog.Logger,
) *NormalizeOperation {
	return &NormalizeOperation{
		blobs:  blobs,
		docs:   docs,
		client: client,
		retry:  retry,
		logger: logger.With("component", "normalize_operation"),
	}
}

// Name implements Operation.
func (o *NormalizeOperation) Name() string { return OperationNormalize }

// Eligible implements Operation. Only word documents are normalized.
func (o *NormalizeOperation) Eligible(doc *domain.Document) (string, bool) {
	if !doc.IsDocx() {
		return OutcomeNotDocx, false
	}
	return "", true
}

// Apply implements Operation.
func (o *NormalizeOperation) Apply(ctx context.Context, doc *domain.Document) (string, error) {
	content, err := o.readSource(ctx, doc)
	if err != nil {
		return "", err
	}

	var normalized []byte
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		normalized, callErr = o.client.Normalize(ctx, content, doc.FileName)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("normalization failed: %w", err)
	}

	checksum, err := domain.Checksum(bytes.NewReader(normalized))
	if err != nil {
		return "", err
	}

	objectName := blob.ObjectName(doc.FileName)
	if err := o.blobs.Put(ctx, objectName, bytes.NewReader(normalized), domain.DocxContentType); err != nil {
		return "", fmt.Errorf("failed to store processed file: %w", err)
	}

	derived, err := domain.NewDocument(
		doc.ProcessedFileName(),
		domain.DocxContentType,
		int64(len(normalized)),
		objectName,
		doc.CategoryID,
	)
	if err != nil {
		o.discard(ctx, objectName)
		return "", fmt.Errorf("invalid processed document: %w", err)
	}
	derived.Checksum = checksum

	if err := o.docs.Create(ctx, derived); err != nil {
		o.discard(ctx, objectName)
		return "", fmt.Errorf("failed to save processed file record: %w", err)
	}

	return fmt.Sprintf(processedNewIDFormat, derived.ID), nil
}

func (o *NormalizeOperation) readSource(ctx context.Context, doc *domain.Document) ([]byte, error) {
	rc, err := o.blobs.Open(ctx, doc.StorageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	return content, nil
}

// discard removes an orphaned blob after a failed record insert.
func (o *NormalizeOperation) discard(ctx context.Context, objectName string) {
	if err := o.blobs.Delete(ctx, objectName); err != nil {
		o.logger.Warn("failed to remove orphaned blob", "object", objectName, "error", err)
	}
}

// EmbedOperation asks the processing service to index a stored document and
// flags it as embedded.
type EmbedOperation struct {
	docs   store.DocumentStore
	client Embedder
	retry  RetryPolicy
}

var _ Operation = (*EmbedOperation)(nil)

// NewEmbedOperation creates an EmbedOperation.
func NewEmbedOperation(docs store.DocumentStore, client Embedder, retry RetryPolicy) *EmbedOperation {
	return &EmbedOperation{docs: docs, client: client, retry: retry}
}

// Name implements Operation.
func (o *EmbedOperation) Name() string { return OperationEmbed }

// Eligible implements Operation.
func (o *EmbedOperation) Eligible(doc *domain.Document) (string, bool) {
	if doc.StorageID == "" {
		return OutcomeNoStorageIdentifier, false
	}
	return "", true
}

// Apply implements Operation.
func (o *EmbedOperation) Apply(ctx context.Context, doc *domain.Document) (string, error) {
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		_, callErr := o.client.Embed(ctx, doc.StorageID)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("embedding failed: %w", err)
	}

	if err := o.docs.MarkEmbedded(ctx, doc.ID); err != nil {
		return "", fmt.Errorf("failed to update embedding status: %w", err)
	}

	return OutcomeEmbedded, nil
}
