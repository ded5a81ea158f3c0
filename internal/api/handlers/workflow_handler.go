// internal/api/handlers/workflow_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fawad-mazhar/runweave/internal/scheduler"
	"github.com/fawad-mazhar/runweave/internal/storage/leveldb"
	"github.com/fawad-mazhar/runweave/internal/storage/postgres"
	"github.com/go-chi/chi/v5"
)

// WorkflowHandler serves the workflow trigger and run inspection endpoints.
// The archive is optional; history endpoints return 501 when it is absent.
type WorkflowHandler struct {
	service *scheduler.Service
	store   *leveldb.Client
	archive *postgres.Client
}

func NewWorkflowHandler(service *scheduler.Service, store *leveldb.Client, archive *postgres.Client) *WorkflowHandler {
	return &WorkflowHandler{
		service: service,
		store:   store,
		archive: archive,
	}
}

func (h *WorkflowHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.service.Definitions())
}

func (h *WorkflowHandler) TriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	definitionID := chi.URLParam(r, "id")

	handle, err := h.service.Trigger(r.Context(), definitionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Workflow run started",
		"handle":  handle,
	})
}

func (h *WorkflowHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	if !h.service.Cancel(handle) {
		http.Error(w, "run not found or already finished", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"message": "Cancellation requested",
		"handle":  handle,
	})
}

func (h *WorkflowHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	definitionID := chi.URLParam(r, "id")

	run, err := h.store.GetLatestWorkflowRun(definitionID)
	if err != nil {
		http.Error(w, "failed to read run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "no runs recorded for workflow", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(run)
}

func (h *WorkflowHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListWorkflowRuns()
	if err != nil {
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(runs)
}

func (h *WorkflowHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, err := h.store.GetWorkflowRun(runID)
	if err != nil {
		http.Error(w, "failed to read run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(run)
}

func (h *WorkflowHandler) GetRunHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "run archive not configured", http.StatusNotImplemented)
		return
	}

	definitionID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.archive.ListWorkflowRuns(r.Context(), definitionID, limit)
	if err != nil {
		http.Error(w, "failed to read run history", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(runs)
}

func (h *WorkflowHandler) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "run archive not configured", http.StatusNotImplemented)
		return
	}

	taskID := chi.URLParam(r, "id")
	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	stats, err := h.archive.TaskRunStats(r.Context(), taskID, since)
	if err != nil {
		http.Error(w, "failed to read task stats", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(stats)
}
