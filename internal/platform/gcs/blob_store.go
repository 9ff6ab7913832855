// Package gcs stores blob content in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/phrazzld/docflow/internal/blob"
)

// ErrMissingBucket is returned when no bucket name is configured.
var ErrMissingBucket = errors.New("gcs bucket name is required")

// Config holds the bucket location and credentials.
type Config struct {
	Bucket string
	// CredentialsFile is optional; application default credentials are used
	// when it is empty.
	CredentialsFile string
}

// BlobStore is a blob.Store backed by a GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

var _ blob.Store = (*BlobStore)(nil)

// NewBlobStore connects to GCS and returns a store on cfg.Bucket.
func NewBlobStore(ctx context.Context, cfg Config) (*BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &BlobStore{client: client, bucket: client.Bucket(cfg.Bucket)}, nil
}

// Close releases the underlying client.
func (s *BlobStore) Close() error {
	return s.client.Close()
}

// Open implements blob.Store.
func (s *BlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := blob.ValidateName(name); err != nil {
		return nil, err
	}

	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, mapError(name, "open", err)
	}
	return r, nil
}

// Put implements blob.Store.
func (s *BlobStore) Put(ctx context.Context, name string, r io.Reader, contentType string) error {
	if err := blob.ValidateName(name); err != nil {
		return err
	}

	w := s.bucket.Object(name).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return mapError(name, "write", err)
	}
	// The object only becomes visible once Close succeeds.
	if err := w.Close(); err != nil {
		return mapError(name, "write", err)
	}
	return nil
}

// Delete implements blob.Store.
func (s *BlobStore) Delete(ctx context.Context, name string) error {
	if err := blob.ValidateName(name); err != nil {
		return err
	}

	err := s.bucket.Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return mapError(name, "delete", err)
	}
	return nil
}

func mapError(name, op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", blob.ErrBlobNotFound, name)
	}
	return fmt.Errorf("failed to %s gcs object %s: %w", op, name, err)
}
