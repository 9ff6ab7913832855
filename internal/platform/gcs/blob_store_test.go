package gcs

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/phrazzld/docflow/internal/blob"
	"github.com/stretchr/testify/assert"
)

func TestNewBlobStoreRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrMissingBucket)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	err := mapError("a.docx", "open", storage.ErrObjectNotExist)
	assert.ErrorIs(t, err, blob.ErrBlobNotFound)
	assert.NotErrorIs(t, err, storage.ErrObjectNotExist)

	cause := errors.New("permission denied")
	err = mapError("a.docx", "write", cause)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, blob.ErrBlobNotFound)
	assert.Contains(t, err.Error(), "write gcs object a.docx")
}
