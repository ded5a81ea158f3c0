// internal/api/routes/routes.go
package routes

import (
	"net/http"
	"time"

	"github.com/fawad-mazhar/runweave/internal/api/handlers"
	"github.com/fawad-mazhar/runweave/internal/scheduler"
	"github.com/fawad-mazhar/runweave/internal/storage/leveldb"
	"github.com/fawad-mazhar/runweave/internal/storage/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(service *scheduler.Service, store *leveldb.Client, archive *postgres.Client) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	})

	// Initialize handlers
	workflowHandler := handlers.NewWorkflowHandler(service, store, archive)
	statusHandler := handlers.NewStatusHandler(service, store)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Workflow endpoints
		r.Get("/workflows", workflowHandler.ListWorkflows)
		r.Post("/workflows/{id}/run", workflowHandler.TriggerWorkflow)
		r.Get("/workflows/{id}/runs/latest", workflowHandler.GetLatestRun)
		r.Get("/workflows/{id}/history", workflowHandler.GetRunHistory)

		// Run endpoints
		r.Get("/runs", workflowHandler.ListRuns)
		r.Get("/runs/{id}", workflowHandler.GetRun)
		r.Post("/runs/{handle}/cancel", workflowHandler.CancelRun)

		// Task endpoints
		r.Get("/tasks/{id}/stats", workflowHandler.GetTaskStats)

		// Status endpoints
		r.Get("/health", statusHandler.GetHealth)
		r.Get("/status", statusHandler.GetSystemState)
	})

	return r
}
