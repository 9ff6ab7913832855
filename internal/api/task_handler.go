package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/docflow/internal/api/shared"
	"github.com/phrazzld/docflow/internal/platform/logger"
	"github.com/phrazzld/docflow/internal/task"
)

// TaskDispatcher starts batch operations.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, operation string, itemIDs []int64) (string, error)
}

// TaskReader reads task records.
type TaskReader interface {
	Get(ctx context.Context, id string) (task.Record, error)
}

// TaskHandler serves batch submission and task status polling.
type TaskHandler struct {
	dispatcher TaskDispatcher
	tasks      TaskReader
	logger     *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(dispatcher TaskDispatcher, tasks TaskReader, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		dispatcher: dispatcher,
		tasks:      tasks,
		logger:     logger.With(slog.String("component", "task_handler")),
	}
}

// RegisterRoutes mounts the task endpoints on r.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Post("/process/docx", h.ProcessDocx)
	r.Post("/process", h.ProcessDocx)
	r.Get("/process/status/{taskId}", h.GetStatus)
	r.Post("/embed", h.Embed)
}

// ProcessDocx accepts a normalization batch and returns 202 with the task ID.
func (h *TaskHandler) ProcessDocx(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, task.OperationNormalize)
}

// Embed accepts an embedding batch and returns 202 with the task ID.
func (h *TaskHandler) Embed(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, task.OperationEmbed)
}

func (h *TaskHandler) dispatch(w http.ResponseWriter, r *http.Request, operation string) {
	var req ItemIDsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	taskID, err := h.dispatcher.Dispatch(r.Context(), operation, req.ItemIDs)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("batch accepted",
		slog.String("task_id", taskID),
		slog.String("operation", operation),
		slog.Int("item_count", len(req.ItemIDs)))

	w.Header().Set("Location", "/api/files/process/status/"+taskID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskAcceptedResponse{TaskID: taskID})
}

// GetStatus returns the current record of a task, or 404 when it is unknown
// or has expired.
func (h *TaskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if taskID == "" {
		HandleAPIError(w, r, task.ErrTaskNotFound, "")
		return
	}

	rec, err := h.tasks.Get(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(rec))
}
