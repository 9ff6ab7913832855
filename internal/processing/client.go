package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	normalizePath = "/preprocess/docx/"
	embedPath     = "/embedding/"
	searchPath    = "/search/"

	// DefaultSearchResults replaces a non-positive maxResults.
	DefaultSearchResults = 5

	maxResponseBytes = 256 << 20
	maxErrorBody     = 4 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the remote processing service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxResponse int64
	tracer      trace.Tracer
	logger      *slog.Logger
}

// New creates a Client. Timeout bounds every call end to end.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxResponse: maxResponseBytes,
		tracer:      otel.Tracer("github.com/phrazzld/docflow/internal/processing"),
		logger:      logger.With("component", "processing_client"),
	}, nil
}

// Normalize uploads content as a multipart "file" field and returns the
// normalized document.
func (c *Client) Normalize(ctx context.Context, content []byte, fileName string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", domain.DocxContentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write multipart content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	out, err := c.do(ctx, "normalize", normalizePath, mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyResponse
	}

	return out, nil
}

// Embed asks the service to index the object at locator. The returned
// acknowledgement is the raw response body.
func (c *Client) Embed(ctx context.Context, locator string) (json.RawMessage, error) {
	payload, err := json.Marshal(struct {
		FilePath string `json:"file_path"`
	}{FilePath: locator})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	out, err := c.do(ctx, "embed", embedPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	return json.RawMessage(out), nil
}

// Search runs a similarity query. A non-positive maxResults becomes
// DefaultSearchResults. The ranked results are returned as raw JSON.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (json.RawMessage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}

	payload, err := json.Marshal(struct {
		Query    string `json:"query"`
		NResults int    `json:"n_results"`
	}{Query: query, NResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	out, err := c.do(ctx, "search", searchPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	return json.RawMessage(out), nil
}

// do posts body to path and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, operation, path, contentType string, body io.Reader) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "processing."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("processing.operation", operation)))
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		metrics.RemoteRequestsTotal.WithLabelValues(operation, metrics.StatusClass(status)).Inc()
		metrics.RemoteRequestDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", contentType)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.logger.Error("processing request failed", "operation", operation, "error", err)
		return nil, fmt.Errorf("%w: %s request failed: %w", ErrUnavailable, operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		remoteErr := &RemoteProcessingError{
			Operation:  operation,
			StatusCode: status,
			Body:       strings.TrimSpace(string(errBody)),
		}
		span.SetStatus(codes.Error, remoteErr.Error())
		c.logger.Warn("processing service returned error",
			"operation", operation,
			"status_code", status)
		return nil, remoteErr
	}

	out, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to read %s response: %w", ErrUnavailable, operation, err)
	}
	if int64(len(out)) > c.maxResponse {
		span.SetStatus(codes.Error, "response too large")
		return nil, fmt.Errorf("%w: %s response exceeds %d bytes", ErrResponseTooLarge, operation, c.maxResponse)
	}

	c.logger.Debug("processing request succeeded",
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_bytes", len(out))

	return out, nil
}
