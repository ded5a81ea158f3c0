// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fawad-mazhar/runweave/internal/executor"
	"github.com/fawad-mazhar/runweave/internal/graph"
	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/hashicorp/go-hclog"
)

// RunRecorder persists finished run records. Implementations must not
// influence scheduling; persistence faults are logged and swallowed.
type RunRecorder interface {
	RecordTaskRun(ctx context.Context, run *models.TaskRun) error
	RecordWorkflowRun(ctx context.Context, run *models.WorkflowRun) error
}

// EventSink consumes the ordered scheduler event stream.
type EventSink interface {
	Publish(ctx context.Context, event models.Event) error
}

// Config holds scheduler construction parameters
type Config struct {
	MaxParallel int // default bound on concurrently running tasks
}

const DefaultMaxParallel = 4

// Scheduler drives a workflow graph to completion, bounding concurrent task
// executions and applying conditional/run-always semantics.
type Scheduler struct {
	executor    *executor.Executor
	recorder    RunRecorder
	events      EventSink
	maxParallel int
	logger      hclog.Logger
}

func New(exec *executor.Executor, recorder RunRecorder, events EventSink, cfg Config, logger hclog.Logger) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Scheduler{
		executor:    exec,
		recorder:    recorder,
		events:      events,
		maxParallel: cfg.MaxParallel,
		logger:      logger.Named("scheduler"),
	}
}

// RunTask executes a single task spec as a one-node workflow.
func (s *Scheduler) RunTask(ctx context.Context, spec models.TaskSpec) (*models.WorkflowRun, error) {
	def := &models.WorkflowDefinition{
		ID:    spec.ID,
		Tasks: []models.TaskSpec{spec},
	}
	return s.Run(ctx, def)
}

// Run executes the workflow definition to completion. Graph construction
// errors (cycles, unknown dependencies) are returned before any task starts;
// once execution begins the outcome is always a terminal WorkflowRun.
func (s *Scheduler) Run(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowRun, error) {
	g, err := graph.Build(def.Tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow graph: %w", err)
	}

	run := models.NewWorkflowRun(def.ID)
	run.Status = models.WorkflowStatusRunning
	logger := s.logger.With("workflow", def.ID, "run", run.ID)

	maxParallel := def.MaxParallel
	if maxParallel <= 0 {
		maxParallel = s.maxParallel
	}

	logger.Info("starting workflow", "tasks", g.Len(), "maxParallel", maxParallel)
	s.emit(ctx, models.Event{
		Type:          models.EventWorkflowStarted,
		WorkflowRunID: run.ID,
		Status:        string(run.Status),
		Timestamp:     time.Now(),
	})

	terminal := make(map[string]models.DependencyResult, g.Len())
	dispatched := make(map[string]bool, g.Len())
	completions := make(chan *models.TaskRun)
	running := 0
	cancelled := false

	for len(terminal) < g.Len() && !cancelled {
		// Settle skip cascades before dispatching: marking one node skipped
		// can make its dependents skippable in the same pass.
		var ready []string
		for {
			elig := g.Eligible(terminal)
			if len(elig.Skipped) == 0 {
				ready = elig.Ready
				break
			}
			for _, id := range elig.Skipped {
				s.markSkipped(ctx, run, g, terminal, id)
			}
		}
		if len(terminal) == g.Len() {
			break
		}

		for _, id := range ready {
			if dispatched[id] || running >= maxParallel {
				continue
			}
			spec, _ := g.Spec(id)
			dispatched[id] = true
			running++

			logger.Debug("dispatching task", "task", id, "running", running)
			s.emit(ctx, models.Event{
				Type:          models.EventTaskStarted,
				WorkflowRunID: run.ID,
				TaskID:        id,
				Status:        string(models.TaskStatusRunning),
				Timestamp:     time.Now(),
			})

			go func(spec models.TaskSpec) {
				completions <- s.executor.Execute(ctx, run.ID, spec)
			}(spec)
		}

		if running == 0 {
			// A valid DAG always has a runnable or skippable node here.
			return nil, fmt.Errorf("workflow %s stalled with %d/%d tasks terminal", def.ID, len(terminal), g.Len())
		}

		select {
		case <-ctx.Done():
			cancelled = true
			// Stop admitting work and wait only for in-flight executors,
			// which observe the same cancellation and exit promptly.
			for running > 0 {
				taskRun := <-completions
				running--
				s.recordCompletion(ctx, run, terminal, taskRun)
			}
		case taskRun := <-completions:
			running--
			s.recordCompletion(ctx, run, terminal, taskRun)
		}
	}

	if cancelled {
		s.markRemainingCancelled(ctx, run, g, terminal)
	}

	now := time.Now()
	run.EndTime = &now
	run.Status = workflowStatus(run, cancelled)

	logger.Info("workflow finished",
		"status", run.Status,
		"failed", run.FailedTaskIDs(),
		"skipped", run.SkippedTaskIDs())

	if s.recorder != nil {
		if err := s.recorder.RecordWorkflowRun(ctx, run); err != nil {
			logger.Warn("failed to record workflow run", "error", err)
		}
	}
	s.emit(ctx, models.Event{
		Type:          models.EventWorkflowCompleted,
		WorkflowRunID: run.ID,
		Status:        string(run.Status),
		Timestamp:     time.Now(),
		Metadata: map[string]interface{}{
			"failedTasks":  run.FailedTaskIDs(),
			"skippedTasks": run.SkippedTaskIDs(),
		},
	})

	return run, nil
}

// recordCompletion folds one finished task run into the workflow state and
// hands the record to the persistence collaborator.
func (s *Scheduler) recordCompletion(ctx context.Context, run *models.WorkflowRun, terminal map[string]models.DependencyResult, taskRun *models.TaskRun) {
	id := taskRun.Spec.ID
	run.TaskRuns[id] = taskRun

	exitCode := -1
	if last := taskRun.LastAttempt(); last != nil {
		exitCode = last.ExitCode
	}
	terminal[id] = models.DependencyResult{Status: taskRun.Status, ExitCode: exitCode}

	if s.recorder != nil {
		if err := s.recorder.RecordTaskRun(ctx, taskRun); err != nil {
			s.logger.Warn("failed to record task run", "task", id, "error", err)
		}
	}
	s.emit(ctx, models.Event{
		Type:          models.EventTaskCompleted,
		WorkflowRunID: run.ID,
		TaskID:        id,
		Status:        string(taskRun.Status),
		Timestamp:     time.Now(),
		Metadata:      taskRun.Stats,
	})
}

// markSkipped records a terminal SKIPPED state for a node that never entered
// execution.
func (s *Scheduler) markSkipped(ctx context.Context, run *models.WorkflowRun, g *graph.Graph, terminal map[string]models.DependencyResult, id string) {
	spec, _ := g.Spec(id)
	taskRun := models.NewTaskRun(run.ID, spec)
	taskRun.StartTime = time.Now()
	taskRun.Finalize(models.TaskStatusSkipped, taskRun.StartTime)

	run.TaskRuns[id] = taskRun
	terminal[id] = models.DependencyResult{Status: models.TaskStatusSkipped, ExitCode: -1}

	s.emit(ctx, models.Event{
		Type:          models.EventTaskSkipped,
		WorkflowRunID: run.ID,
		TaskID:        id,
		Status:        string(models.TaskStatusSkipped),
		Timestamp:     time.Now(),
	})
}

// markRemainingCancelled marks every node that has not reached a terminal
// state as CANCELLED after a workflow-level cancellation. These nodes never
// started, so they get a TASK_CANCELLED event rather than a TASK_COMPLETED
// with no matching TASK_STARTED.
func (s *Scheduler) markRemainingCancelled(ctx context.Context, run *models.WorkflowRun, g *graph.Graph, terminal map[string]models.DependencyResult) {
	for _, id := range g.NodeIDs() {
		if _, done := terminal[id]; done {
			continue
		}
		spec, _ := g.Spec(id)
		taskRun := models.NewTaskRun(run.ID, spec)
		taskRun.StartTime = time.Now()
		taskRun.Error = "workflow cancelled"
		taskRun.Finalize(models.TaskStatusCancelled, taskRun.StartTime)

		run.TaskRuns[id] = taskRun
		terminal[id] = models.DependencyResult{Status: models.TaskStatusCancelled, ExitCode: -1}

		s.emit(ctx, models.Event{
			Type:          models.EventTaskCancelled,
			WorkflowRunID: run.ID,
			TaskID:        id,
			Status:        string(models.TaskStatusCancelled),
			Timestamp:     time.Now(),
		})
	}
}

// workflowStatus classifies the overall outcome: SUCCEEDED when nothing
// failed, FAILED when a failure occurred and no node succeeded, otherwise
// PARTIAL_FAILURE with the failed and skipped sets enumerated on the run.
func workflowStatus(run *models.WorkflowRun, cancelled bool) models.WorkflowStatus {
	if cancelled {
		return models.WorkflowStatusCancelled
	}

	anyFailed := false
	anySucceeded := false
	for _, taskRun := range run.TaskRuns {
		switch taskRun.Status {
		case models.TaskStatusFailed, models.TaskStatusTimedOut:
			anyFailed = true
		case models.TaskStatusSucceeded:
			anySucceeded = true
		case models.TaskStatusCancelled:
			anyFailed = true
		}
	}

	switch {
	case !anyFailed:
		return models.WorkflowStatusSucceeded
	case anySucceeded:
		return models.WorkflowStatusPartialFailure
	default:
		return models.WorkflowStatusFailed
	}
}

func (s *Scheduler) emit(ctx context.Context, event models.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "type", event.Type, "error", err)
	}
}
