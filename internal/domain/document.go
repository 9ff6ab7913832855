package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// FileTypeDocx is the file type eligible for normalization.
const FileTypeDocx = "docx"

// DocxContentType is the MIME type of Office Open XML word documents.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ProcessedPrefix is prepended to the file name of a normalized document.
const ProcessedPrefix = "processed_"

// Validation errors for Document
var (
	ErrEmptyFileName  = errors.New("document file name cannot be empty")
	ErrEmptyStorageID = errors.New("document storage identifier cannot be empty")
	ErrNegativeSize   = errors.New("document size cannot be negative")
)

// Document is a stored file with its metadata. The content itself lives in
// a blob store under StorageID.
type Document struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"fileName"`
	FileType    string    `json:"fileType"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StorageID   string    `json:"storageId"`
	CategoryID  int64     `json:"categoryId,omitempty"`
	Embedded    bool      `json:"embedded"`
	Checksum    string    `json:"checksum,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// NewDocument builds a Document for content already written to storage.
// The file type is derived from the file name.
func NewDocument(fileName, contentType string, size int64, storageID string, categoryID int64) (*Document, error) {
	doc := &Document{
		FileName:    fileName,
		FileType:    FileTypeOf(fileName),
		ContentType: contentType,
		Size:        size,
		StorageID:   storageID,
		CategoryID:  categoryID,
		UploadedAt:  time.Now().UTC(),
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks if the Document has valid data.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.FileName) == "" {
		return ErrEmptyFileName
	}

	if d.StorageID == "" {
		return ErrEmptyStorageID
	}

	if d.Size < 0 {
		return ErrNegativeSize
	}

	return nil
}

// IsDocx reports whether the document is a word document by type or name.
func (d *Document) IsDocx() bool {
	return strings.EqualFold(d.FileType, FileTypeDocx) ||
		strings.HasSuffix(strings.ToLower(d.FileName), "."+FileTypeDocx)
}

// ProcessedFileName returns the name given to the normalized copy of d.
func (d *Document) ProcessedFileName() string {
	return ProcessedPrefix + d.FileName
}

// FileTypeOf returns the lower-case extension of name without its dot.
func FileTypeOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Checksum returns the hex encoded BLAKE2b-256 digest of r.
func Checksum(r io.Reader) (string, error) {
	w := NewChecksumWriter()
	if _, err := io.Copy(w, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return w.Sum(), nil
}

// ChecksumWriter accumulates the digest reported by Checksum and counts
// the bytes written, so content can be hashed while it is streamed.
type ChecksumWriter struct {
	h hash.Hash
	n int64
}

// NewChecksumWriter returns an empty ChecksumWriter.
func NewChecksumWriter() *ChecksumWriter {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return &ChecksumWriter{h: h}
}

func (w *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := w.h.Write(p)
	w.n += int64(n)
	return n, err
}

// Sum returns the hex digest of everything written so far.
func (w *ChecksumWriter) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// Size returns the number of bytes written.
func (w *ChecksumWriter) Size() int64 {
	return w.n
}
