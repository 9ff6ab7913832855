package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/docflow/internal/api/shared"
	"github.com/phrazzld/docflow/internal/blob"
	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/processing"
	"github.com/phrazzld/docflow/internal/service"
	"github.com/phrazzld/docflow/internal/store"
	"github.com/phrazzld/docflow/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var remote *processing.RemoteProcessingError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, task.ErrEmptyBatch),
		errors.Is(err, task.ErrInvalidItemID),
		errors.Is(err, task.ErrUnknownOperation),
		errors.Is(err, processing.ErrEmptyQuery),
		errors.Is(err, service.ErrNoFiles),
		errors.Is(err, service.ErrEmptyFileName),
		errors.Is(err, shared.ErrEmptyBody),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, blob.ErrBlobNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	case errors.As(err, &remote),
		errors.Is(err, processing.ErrEmptyResponse),
		errors.Is(err, processing.ErrUnavailable),
		errors.Is(err, processing.ErrResponseTooLarge):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err that leaks
// no internal detail.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)
	case errors.Is(err, task.ErrEmptyBatch):
		return "itemIds cannot be empty"
	case errors.Is(err, task.ErrInvalidItemID):
		return "itemIds must be positive integers"
	case errors.Is(err, task.ErrUnknownOperation):
		return "Unknown operation"
	case errors.Is(err, processing.ErrEmptyQuery):
		return "Query cannot be empty"
	case errors.Is(err, service.ErrNoFiles):
		return "No files provided"
	case errors.Is(err, service.ErrEmptyFileName):
		return "Uploaded file has no name"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is empty"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"
	case errors.Is(err, task.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrNotFound):
		return "Document not found"
	case errors.Is(err, blob.ErrBlobNotFound):
		return "File content not found"
	case errors.Is(err, store.ErrDuplicate):
		return "Document already exists"
	case errors.Is(err, task.ErrQueueFull), errors.Is(err, task.ErrQueueClosed):
		return "Task queue is full, try again later"
	}

	var remote *processing.RemoteProcessingError
	if errors.As(err, &remote) ||
		errors.Is(err, processing.ErrEmptyResponse) ||
		errors.Is(err, processing.ErrUnavailable) ||
		errors.Is(err, processing.ErrResponseTooLarge) {
		return "Processing service request failed"
	}

	return "An unexpected error occurred"
}

// SanitizeValidationError turns validator errors into a short message that
// names the first failing field.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "Validation error"
	}

	fe := validationErrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt", "gte":
		return "must be positive"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// underlying error. A non-empty message overrides the safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
