package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("some error"), expected: false},
		{name: "ErrNotFound", err: ErrNotFound, expected: true},
		{name: "wrapped ErrNotFound", err: fmt.Errorf("lookup: %w", ErrNotFound), expected: true},
		{name: "ErrDocumentNotFound", err: ErrDocumentNotFound, expected: true},
		{
			name:     "store error wrapping document not found",
			err:      NewStoreError("document", "get", "query failed", ErrDocumentNotFound),
			expected: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewStoreError("document", "create", "insert failed", cause)

	assert.Equal(t, "create operation on document failed: insert failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("document", "delete", "no rows", nil)
	assert.Equal(t, "delete operation on document failed: no rows", bare.Error())
}

func TestStoreErrorWrapsOperationSentinel(t *testing.T) {
	t.Parallel()

	err := NewStoreError("document", "update", "failed to set embedded flag",
		fmt.Errorf("%w: %w", ErrUpdateFailed, errors.New("timeout")))

	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.NotErrorIs(t, err, ErrDeleteFailed)

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "update", storeErr.Operation)
}
