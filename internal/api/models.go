package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/task"
)

// ItemIDsRequest carries the document IDs of a batch request. The body may
// be either {"itemIds": [...]} or a bare JSON array.
type ItemIDsRequest struct {
	ItemIDs []int64 `json:"itemIds" validate:"required,min=1,dive,gt=0"`
}

// UnmarshalJSON accepts both the object and the bare array form.
func (r *ItemIDsRequest) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.ItemIDs)
	}

	type plain ItemIDsRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ItemIDsRequest(p)
	return nil
}

// SearchRequest is the body of a semantic search.
type SearchRequest struct {
	Query    string `json:"query" validate:"required"`
	NResults int    `json:"nResults"`
	// NResultsAlt accepts the snake_case spelling used by the processing service.
	NResultsAlt int `json:"n_results"`
}

// MaxResults returns the requested result count; non-positive values are
// left for the processing client to default.
func (r SearchRequest) MaxResults() int {
	if r.NResults > 0 {
		return r.NResults
	}
	return r.NResultsAlt
}

// TaskAcceptedResponse is returned when a batch task is accepted.
type TaskAcceptedResponse struct {
	TaskID string `json:"taskId"`
}

// TaskStatusResponse is the polled view of a task.
type TaskStatusResponse struct {
	TaskID    string            `json:"taskId"`
	Operation string            `json:"operation,omitempty"`
	Status    string            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Results   map[string]string `json:"results"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// DocumentResponse is the API view of a stored document.
type DocumentResponse struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"fileName"`
	FileType    string    `json:"fileType"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CategoryID  int64     `json:"categoryId,omitempty"`
	Embedded    bool      `json:"embedded"`
	Checksum    string    `json:"checksum,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// DeleteResponse reports a per-ID deletion result keyed by the ID as a string.
type DeleteResponse struct {
	Results map[string]string `json:"results"`
}

func taskToResponse(rec task.Record) TaskStatusResponse {
	results := rec.Results
	if results == nil {
		results = map[string]string{}
	}
	return TaskStatusResponse{
		TaskID:    rec.ID,
		Operation: rec.Operation,
		Status:    string(rec.Status),
		Message:   rec.Message,
		Results:   results,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func documentToResponse(doc *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:          doc.ID,
		FileName:    doc.FileName,
		FileType:    doc.FileType,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		CategoryID:  doc.CategoryID,
		Embedded:    doc.Embedded,
		Checksum:    doc.Checksum,
		UploadedAt:  doc.UploadedAt,
	}
}

func documentsToResponse(docs []*domain.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentToResponse(doc))
	}
	return out
}
