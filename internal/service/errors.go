package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFiles is returned when an upload carries no files.
	ErrNoFiles = errors.New("no files provided")

	// ErrEmptyFileName is returned when an uploaded file has no name.
	ErrEmptyFileName = errors.New("uploaded file has no name")
)

// DocumentServiceError wraps unexpected failures with the operation that hit them.
type DocumentServiceError struct {
	// Operation is the failing operation, e.g. "upload" or "open".
	Operation string
	Message   string
	Err       error
}

func (e *DocumentServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("document service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DocumentServiceError) Unwrap() error {
	return e.Err
}

// NewDocumentServiceError creates a DocumentServiceError.
func NewDocumentServiceError(operation, message string, err error) *DocumentServiceError {
	return &DocumentServiceError{Operation: operation, Message: message, Err: err}
}
