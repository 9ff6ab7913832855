package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/platform/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) (*Builder, *memory.DocumentStore, *memory.BlobStore) {
	t.Helper()

	docs := memory.NewDocumentStore()
	blobs := memory.NewBlobStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBuilder(docs, blobs, logger), docs, blobs
}

func seed(t *testing.T, docs *memory.DocumentStore, blobs *memory.BlobStore, id int64, name, content string) {
	t.Helper()

	storageID := "obj-" + strings.ReplaceAll(name, "/", "_") + "-" + string(rune('a'+id))
	require.NoError(t, blobs.Put(context.Background(), storageID, strings.NewReader(content), ""))
	docs.Put(domain.Document{ID: id, FileName: name, StorageID: storageID})
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = string(content)
	}
	return out
}

func TestBuildSkipsUnavailableEntries(t *testing.T) {
	t.Parallel()

	b, docs, blobs := newTestBuilder(t)
	seed(t, docs, blobs, 1, "a.docx", "AAA")
	docs.Put(domain.Document{ID: 2, FileName: "lost.docx", StorageID: "missing-object"})

	var buf bytes.Buffer
	summary, err := b.Build(context.Background(), &buf, []int64{1, 99, 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.docx"}, summary.Entries)
	assert.Equal(t, []int64{99, 2}, summary.Skipped)
	assert.Equal(t, map[string]string{"a.docx": "AAA"}, readZip(t, buf.Bytes()))
}

func TestBuildEmptyArchive(t *testing.T) {
	t.Parallel()

	b, _, _ := newTestBuilder(t)

	var buf bytes.Buffer
	summary, err := b.Build(context.Background(), &buf, []int64{5, 6})
	require.NoError(t, err)
	assert.Empty(t, summary.Entries)
	assert.Empty(t, readZip(t, buf.Bytes()))
}

func TestBuildNameCollisions(t *testing.T) {
	t.Parallel()

	b, docs, blobs := newTestBuilder(t)
	seed(t, docs, blobs, 1, "report.docx", "first")
	seed(t, docs, blobs, 2, "report.docx", "second")
	seed(t, docs, blobs, 3, "report-2.docx", "third")
	seed(t, docs, blobs, 4, "folder/../notes", "fourth")
	seed(t, docs, blobs, 5, "notes", "fifth")

	var buf bytes.Buffer
	summary, err := b.Build(context.Background(), &buf, []int64{1, 2, 3, 4, 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"report.docx", "report-2.docx", "report-2-3.docx", "notes", "notes-5"}, summary.Entries)
	assert.Equal(t, map[string]string{
		"report.docx":     "first",
		"report-2.docx":   "second",
		"report-2-3.docx": "third",
		"notes":           "fourth",
		"notes-5":         "fifth",
	}, readZip(t, buf.Bytes()))
}

func TestNameSetClaim(t *testing.T) {
	t.Parallel()

	s := newNameSet()
	assert.Equal(t, "a.txt", s.claim("a.txt", 1))
	assert.Equal(t, "a-2.txt", s.claim("a.txt", 2))
	s.used["a-3.txt"] = struct{}{}
	assert.Equal(t, "a-3-2.txt", s.claim("a.txt", 3))
	assert.Equal(t, "a-3-3.txt", s.claim("a.txt", 3))
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x.docx", sanitize("../../x.docx", 1))
	assert.Equal(t, "y.pdf", sanitize(`C:\docs\y.pdf`, 1))
	assert.Equal(t, "file-7", sanitize("", 7))
	assert.Equal(t, "file-7", sanitize("/", 7))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client went away") }

func TestBuildWriterFailure(t *testing.T) {
	t.Parallel()

	b, docs, blobs := newTestBuilder(t)
	seed(t, docs, blobs, 1, "a.docx", strings.Repeat("x", 1<<20))

	_, err := b.Build(context.Background(), failingWriter{}, []int64{1})
	assert.Error(t, err)
}

// brokenBlobs serves a reader that fails after a few bytes for one object.
type brokenBlobs struct {
	*memory.BlobStore
	broken string
}

type brokenReader struct{ sent bool }

func (r *brokenReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "abc"), nil
	}
	return 0, errors.New("connection reset")
}

func (b *brokenBlobs) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == b.broken {
		return io.NopCloser(&brokenReader{}), nil
	}
	return b.BlobStore.Open(ctx, name)
}

func TestBuildSkipsEntryWhenReadFailsMidStream(t *testing.T) {
	t.Parallel()

	docs := memory.NewDocumentStore()
	mem := memory.NewBlobStore()
	seed(t, docs, mem, 1, "bad.txt", "irrelevant")
	seed(t, docs, mem, 2, "good.txt", "GOOD")

	bad, err := docs.GetByID(context.Background(), 1)
	require.NoError(t, err)

	blobs := &brokenBlobs{BlobStore: mem, broken: bad.StorageID}
	b := NewBuilder(docs, blobs, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var buf bytes.Buffer
	summary, err := b.Build(context.Background(), &buf, []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"good.txt"}, summary.Entries)
	assert.Equal(t, []int64{1}, summary.Skipped)
	assert.Equal(t, map[string]string{"good.txt": "GOOD"}, readZip(t, buf.Bytes()))
}
