package processing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrEmptyResponse is returned when normalization succeeds with an empty body.
	ErrEmptyResponse = errors.New("no processed data received")

	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("search query cannot be empty")

	// ErrUnavailable wraps transport failures: the service could not be
	// reached or the response could not be read.
	ErrUnavailable = errors.New("processing service unavailable")

	// ErrResponseTooLarge is returned when a response exceeds the read limit.
	ErrResponseTooLarge = errors.New("processing response too large")

	// ErrInvalidConfig is returned by New for a missing base URL or timeout.
	ErrInvalidConfig = errors.New("invalid processing client configuration")
)

// RemoteProcessingError is returned for non-success responses.
type RemoteProcessingError struct {
	Operation  string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *RemoteProcessingError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed with status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying: a 5xx or 429 response,
// or a network error other than context cancellation.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var remote *RemoteProcessingError
	if errors.As(err, &remote) {
		return remote.StatusCode >= http.StatusInternalServerError ||
			remote.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
