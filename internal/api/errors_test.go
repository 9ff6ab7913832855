package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/docflow/internal/api/shared"
	"github.com/phrazzld/docflow/internal/blob"
	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/processing"
	"github.com/phrazzld/docflow/internal/store"
	"github.com/phrazzld/docflow/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{task.ErrEmptyBatch, http.StatusBadRequest},
		{fmt.Errorf("%w: -1", task.ErrInvalidItemID), http.StatusBadRequest},
		{processing.ErrEmptyQuery, http.StatusBadRequest},
		{fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest},
		{shared.ErrEmptyBody, http.StatusBadRequest},
		{task.ErrTaskNotFound, http.StatusNotFound},
		{store.ErrDocumentNotFound, http.StatusNotFound},
		{blob.ErrBlobNotFound, http.StatusNotFound},
		{store.ErrDuplicate, http.StatusConflict},
		{fmt.Errorf("failed to submit task: %w", task.ErrQueueFull), http.StatusServiceUnavailable},
		{task.ErrQueueClosed, http.StatusServiceUnavailable},
		{&processing.RemoteProcessingError{Operation: "search", StatusCode: 503}, http.StatusBadGateway},
		{fmt.Errorf("%w: search request failed: %w", processing.ErrUnavailable, errors.New("connection refused")), http.StatusBadGateway},
		{processing.ErrResponseTooLarge, http.StatusBadGateway},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err), tt.err.Error())
	}
}

func TestGetSafeErrorMessageHidesDetail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New("dial tcp 10.0.0.5:5432: connection refused")))
	assert.Equal(t, "Processing service request failed",
		GetSafeErrorMessage(&processing.RemoteProcessingError{Operation: "search", StatusCode: 500, Body: "trace"}))
	assert.Equal(t, "Processing service request failed",
		GetSafeErrorMessage(fmt.Errorf("%w: dial tcp 127.0.0.1:1: connection refused", processing.ErrUnavailable)))
	assert.Equal(t, "Task not found", GetSafeErrorMessage(task.ErrTaskNotFound))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := shared.ValidateRequest(&ItemIDsRequest{})
	assert.Equal(t, "Invalid itemIds: required field", SanitizeValidationError(err))
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("plain")))
}

func TestItemIDsRequestUnmarshal(t *testing.T) {
	t.Parallel()

	var obj, arr ItemIDsRequest
	assert.NoError(t, obj.UnmarshalJSON([]byte(`{"itemIds":[1,2]}`)))
	assert.NoError(t, arr.UnmarshalJSON([]byte(` [3] `)))
	assert.Equal(t, []int64{1, 2}, obj.ItemIDs)
	assert.Equal(t, []int64{3}, arr.ItemIDs)
}
