package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/phrazzld/docflow/internal/processing"
)

// Searcher runs a semantic query against the processing service.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (json.RawMessage, error)
}

// SearchService validates queries before forwarding them.
type SearchService struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(searcher Searcher, logger *slog.Logger) *SearchService {
	return &SearchService{searcher: searcher, logger: logger.With(slog.String("component", "search_service"))}
}

// Search trims query and returns the remote response unchanged.
// Returns processing.ErrEmptyQuery for a blank query.
func (s *SearchService) Search(ctx context.Context, query string, maxResults int) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, processing.ErrEmptyQuery
	}

	s.logger.Debug("forwarding search", slog.Int("max_results", maxResults), slog.Int("query_length", len(query)))
	return s.searcher.Search(ctx, query, maxResults)
}
