// internal/api/handlers/status_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/fawad-mazhar/runweave/internal/scheduler"
	"github.com/fawad-mazhar/runweave/internal/storage/leveldb"
)

type StatusHandler struct {
	service *scheduler.Service
	store   *leveldb.Client
}

func NewStatusHandler(service *scheduler.Service, store *leveldb.Client) *StatusHandler {
	return &StatusHandler{
		service: service,
		store:   store,
	}
}

func (h *StatusHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *StatusHandler) GetSystemState(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListWorkflowRuns()
	if err != nil {
		http.Error(w, "failed to read runs", http.StatusInternalServerError)
		return
	}

	state := models.SystemState{
		ActiveRuns:   h.service.ActiveCount(),
		ExecutedRuns: len(runs),
		UpdatedAt:    time.Now(),
	}

	json.NewEncoder(w).Encode(state)
}
