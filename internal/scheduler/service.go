// internal/scheduler/service.go
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fawad-mazhar/runweave/internal/graph"
	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Service owns the set of registered workflow definitions and the lifecycle
// of their runs: triggering, operator cancellation, and graceful shutdown.
type Service struct {
	scheduler   *Scheduler
	logger      hclog.Logger
	mu          sync.RWMutex
	definitions map[string]*models.WorkflowDefinition
	active      map[string]context.CancelFunc // run id -> cancel
	workers     sync.WaitGroup
}

func NewService(sched *Scheduler, logger hclog.Logger) *Service {
	return &Service{
		scheduler:   sched,
		logger:      logger.Named("service"),
		definitions: make(map[string]*models.WorkflowDefinition),
		active:      make(map[string]context.CancelFunc),
	}
}

// Register adds a workflow definition, validating its graph up front so a
// bad definition is rejected before it can ever be triggered.
func (s *Service) Register(def *models.WorkflowDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("workflow definition has no id")
	}
	if _, err := graph.Build(def.Tasks); err != nil {
		return fmt.Errorf("invalid workflow %s: %w", def.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.definitions[def.ID]; exists {
		return fmt.Errorf("workflow %s already registered", def.ID)
	}
	s.definitions[def.ID] = def
	return nil
}

// Definitions returns the registered workflow definitions.
func (s *Service) Definitions() []*models.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.WorkflowDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		out = append(out, def)
	}
	return out
}

// Definition returns one registered definition by id.
func (s *Service) Definition(id string) (*models.WorkflowDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.definitions[id]
	return def, ok
}

// Trigger starts an asynchronous run of a registered workflow and returns a
// handle id that can be used to cancel it. The returned id is not the
// WorkflowRun id, which is assigned when the run record is created.
//
// The run's lifetime is owned by the service, not by the caller's context:
// an HTTP request context ends as soon as the trigger response is written,
// long before the run finishes. Cancellation stays reachable through the
// returned handle and through Shutdown.
func (s *Service) Trigger(_ context.Context, definitionID string) (string, error) {
	def, ok := s.Definition(definitionID)
	if !ok {
		return "", fmt.Errorf("workflow %s not found", definitionID)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	handle := uuid.New().String()

	s.mu.Lock()
	s.active[handle] = cancel
	s.mu.Unlock()

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.active, handle)
			s.mu.Unlock()
		}()

		if _, err := s.scheduler.Run(runCtx, def); err != nil {
			s.logger.Error("workflow run failed to start", "workflow", definitionID, "error", err)
		}
	}()

	return handle, nil
}

// Cancel delivers an operator cancellation to an active run. Returns false
// when the handle is unknown or the run already finished.
func (s *Service) Cancel(handle string) bool {
	s.mu.RLock()
	cancel, ok := s.active[handle]
	s.mu.RUnlock()
	if ok {
		cancel()
	}
	return ok
}

// ActiveCount returns the number of runs currently in flight.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// Shutdown cancels every active run and waits for in-flight executors to
// observe the signal, bounded by timeout.
func (s *Service) Shutdown(timeout time.Duration) error {
	s.mu.RLock()
	for _, cancel := range s.active {
		cancel()
	}
	s.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %v", timeout)
	}
}
