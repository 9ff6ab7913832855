package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/docflow/internal/api/shared"
	"github.com/phrazzld/docflow/internal/domain"
)

// getPathInt64 parses a positive int64 path parameter.
func getPathInt64(r *http.Request, paramName string) (int64, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrInvalidID, paramName, raw)
	}
	return id, nil
}

// parseOptionalID parses an optional positive ID, returning 0 when raw is empty.
func parseOptionalID(name, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrInvalidID, name, raw)
	}
	return id, nil
}

// decodeAndValidate decodes the JSON body into v and validates it.
// Malformed bodies are reported as validation errors.
func decodeAndValidate(r *http.Request, v any) error {
	if err := shared.DecodeJSON(r, v); err != nil {
		if errors.Is(err, shared.ErrEmptyBody) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %w", domain.ErrValidation, err)
	}
	return shared.ValidateRequest(v)
}

// attachmentDisposition builds a Content-Disposition header carrying both
// an ASCII fallback name and the RFC 5987 UTF-8 name.
func attachmentDisposition(fileName string) string {
	return `attachment; filename="` + asciiFallback(fileName) + `"; filename*=UTF-8''` + url.PathEscape(fileName)
}

func asciiFallback(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r > 0x7e, r == '"', r == '\\':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "download"
	}
	return b.String()
}
