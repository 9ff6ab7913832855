package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/docflow/internal/api"
	"github.com/phrazzld/docflow/internal/api/shared"
)

const filesPath = "/api/files"

// apiError is a non-2xx reply from the server.
type apiError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *apiError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("server returned %d: %s (trace %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// client talks to the docflow HTTP API.
type client struct {
	baseURL    string
	httpClient *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// submit starts a batch operation at path and returns the task ID.
func (c *client) submit(ctx context.Context, path string, ids []int64) (string, error) {
	var out api.TaskAcceptedResponse
	if err := c.doJSON(ctx, http.MethodPost, filesPath+path, api.ItemIDsRequest{ItemIDs: ids}, &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("server accepted the batch without a task id")
	}
	return out.TaskID, nil
}

func (c *client) status(ctx context.Context, taskID string) (api.TaskStatusResponse, error) {
	var out api.TaskStatusResponse
	err := c.doJSON(ctx, http.MethodGet, filesPath+"/process/status/"+url.PathEscape(taskID), nil, &out)
	return out, err
}

func (c *client) search(ctx context.Context, query string, maxResults int) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.doJSON(ctx, http.MethodPost, filesPath+"/search", api.SearchRequest{Query: query, NResults: maxResults}, &out)
	return out, err
}

// downloadBatch streams the zip archive of ids into w and returns the file
// name suggested by the server.
func (c *client) downloadBatch(ctx context.Context, ids []int64, w io.Writer) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, filesPath+"/download/batch", api.ItemIDsRequest{ItemIDs: ids})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("failed to read archive: %w", err)
	}

	return attachmentName(resp.Header.Get("Content-Disposition")), nil
}

func (c *client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send performs the request and converts non-2xx replies to *apiError.
func (c *client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &apiError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var errBody shared.ErrorResponse
	if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
		apiErr.Message = errBody.Error
		apiErr.TraceID = errBody.TraceID
	}
	return nil, apiErr
}

// attachmentName extracts the file name from a Content-Disposition header,
// preferring the RFC 5987 form.
func attachmentName(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
