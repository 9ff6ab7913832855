// Package blob defines the contract for opaque file content storage.
// Content is addressed by an object name that is independent of the
// document's logical file name.
package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrBlobNotFound is returned when no object exists under the given name.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidName is returned for object names that are empty or escape the store.
	ErrInvalidName = errors.New("invalid blob name")
)

// Store reads and writes blob content.
type Store interface {
	// Open returns a reader for the named object. The caller closes it.
	// Returns ErrBlobNotFound if the object does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Put writes r under name, replacing any existing object.
	Put(ctx context.Context, name string, r io.Reader, contentType string) error

	// Delete removes the named object. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error
}

// ObjectName returns a fresh object name that keeps the lower-case
// extension of fileName.
func ObjectName(fileName string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(fileName))
}

// ValidateName rejects names that are empty or contain path traversal.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return ErrInvalidName
	}
	return nil
}
