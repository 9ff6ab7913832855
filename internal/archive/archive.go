// Package archive bundles stored documents into a single zip stream.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/docflow/internal/blob"
	"github.com/phrazzld/docflow/internal/metrics"
	"github.com/phrazzld/docflow/internal/store"
)

// Summary reports what Build wrote.
type Summary struct {
	// Entries holds the entry names in write order.
	Entries []string
	// Skipped holds item IDs that could not be resolved or read.
	Skipped []int64
}

// Builder writes documents into zip archives.
type Builder struct {
	docs   store.DocumentStore
	blobs  blob.Store
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(docs store.DocumentStore, blobs blob.Store, logger *slog.Logger) *Builder {
	return &Builder{
		docs:   docs,
		blobs:  blobs,
		logger: logger.With("component", "archive_builder"),
	}
}

// Build streams one zip entry per readable document in ids to w, in order.
// Unknown or unreadable documents are skipped. Entries are named after the
// document's file name; a repeated name gets the item ID appended before
// its extension. Only a failure writing to w is returned as an error.
func (b *Builder) Build(ctx context.Context, w io.Writer, ids []int64) (Summary, error) {
	zw := zip.NewWriter(w)
	names := newNameSet()
	var summary Summary

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name, written, err := b.addEntry(ctx, zw, names, id)
		if err != nil {
			return summary, err
		}
		if !written {
			summary.Skipped = append(summary.Skipped, id)
			metrics.ArchiveEntriesTotal.WithLabelValues("skipped").Inc()
			continue
		}

		summary.Entries = append(summary.Entries, name)
		metrics.ArchiveEntriesTotal.WithLabelValues("written").Inc()
	}

	if err := zw.Close(); err != nil {
		return summary, fmt.Errorf("failed to finish archive: %w", err)
	}

	b.logger.Info("archive built",
		"requested", len(ids),
		"entries", len(summary.Entries),
		"skipped", len(summary.Skipped))

	return summary, nil
}

// addEntry copies one document into zw. It reports written=false for a
// skipped document and returns an error only when writing to zw fails.
// Content is read in full before the entry is created so that a read
// failure never leaves a truncated entry behind.
func (b *Builder) addEntry(ctx context.Context, zw *zip.Writer, names *nameSet, id int64) (string, bool, error) {
	logger := b.logger.With("item_id", id)

	doc, err := b.docs.GetByID(ctx, id)
	if err != nil {
		logger.Warn("skipping archive entry, document unavailable", "error", err)
		return "", false, nil
	}

	content, err := b.readBlob(ctx, doc.StorageID)
	if err != nil {
		logger.Warn("skipping archive entry, content unreadable", "storage_id", doc.StorageID, "error", err)
		return "", false, nil
	}

	name := names.claim(sanitize(doc.FileName, id), id)

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: doc.UploadedAt,
	}
	if header.Modified.IsZero() {
		header.Modified = time.Now()
	}

	ew, err := zw.CreateHeader(header)
	if err != nil {
		return "", false, fmt.Errorf("failed to create archive entry %q: %w", name, err)
	}

	if _, err := ew.Write(content); err != nil {
		return "", false, fmt.Errorf("failed to write archive entry %q: %w", name, err)
	}

	return name, true, nil
}

func (b *Builder) readBlob(ctx context.Context, storageID string) ([]byte, error) {
	rc, err := b.blobs.Open(ctx, storageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}

// sanitize reduces a file name to a safe base name inside the archive.
func sanitize(fileName string, id int64) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == ".." || strings.TrimSpace(name) == "" {
		return "file-" + strconv.FormatInt(id, 10)
	}
	return name
}

// nameSet hands out unique entry names.
type nameSet struct {
	used map[string]struct{}
}

func newNameSet() *nameSet {
	return &nameSet{used: make(map[string]struct{})}
}

// claim returns name if unused, otherwise "<base>-<id><ext>", and then
// "<base>-<id>-<n><ext>" with increasing n until a free name is found.
func (s *nameSet) claim(name string, id int64) string {
	candidate := name
	if _, taken := s.used[candidate]; taken {
		ext := path.Ext(name)
		base := strings.TrimSuffix(name, ext)
		candidate = fmt.Sprintf("%s-%d%s", base, id, ext)
		for n := 2; ; n++ {
			if _, taken := s.used[candidate]; !taken {
				break
			}
			candidate = fmt.Sprintf("%s-%d-%d%s", base, id, n, ext)
		}
	}

	s.used[candidate] = struct{}{}
	return candidate
}
