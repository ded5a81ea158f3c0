// internal/models/run.go
package models

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TaskAttempt records one execution attempt of a task spec, including the
// resource samples collected while its process was alive.
type TaskAttempt struct {
	Number    int              `json:"number"` // 0-indexed
	StartTime time.Time        `json:"startTime"`
	EndTime   time.Time        `json:"endTime"`
	ExitCode  int              `json:"exitCode"` // -1 when the process did not exit normally
	Status    TaskStatus       `json:"status"`
	Error     string           `json:"error,omitempty"` // last error text or stderr tail
	Samples   []ResourceSample `json:"samples,omitempty"`
}

// TaskRun is the full retry history and final outcome for one task spec
// within one workflow run. It is owned exclusively by its executor until the
// final status is recorded, after which it is read-only.
type TaskRun struct {
	ID            string         `json:"id"`
	WorkflowRunID string         `json:"workflowRunId,omitempty"`
	Spec          TaskSpec       `json:"spec"`
	Status        TaskStatus     `json:"status"`
	Error         string         `json:"error,omitempty"` // validation failures carry no attempts
	Attempts      []TaskAttempt  `json:"attempts"`
	Stats         *ResourceStats `json:"stats,omitempty"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
}

// NewTaskRun creates a run record for the given spec in the waiting state.
func NewTaskRun(workflowRunID string, spec TaskSpec) *TaskRun {
	return &TaskRun{
		ID:            uuid.New().String(),
		WorkflowRunID: workflowRunID,
		Spec:          spec,
		Status:        TaskStatusWaiting,
	}
}

// LastAttempt returns the most recent attempt, or nil when none were spent.
func (r *TaskRun) LastAttempt() *TaskAttempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

// Finalize records the terminal status and computes aggregate resource
// statistics over the union of all attempts' samples.
func (r *TaskRun) Finalize(status TaskStatus, end time.Time) {
	var all []ResourceSample
	for _, a := range r.Attempts {
		all = append(all, a.Samples...)
	}
	r.Stats = ComputeResourceStats(all)
	r.Status = status
	r.EndTime = end
}

// ToJSON converts the task run to JSON
func (r *TaskRun) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON populates the task run from JSON
func (r *TaskRun) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

// WorkflowStatus represents the overall state of a workflow run
type WorkflowStatus string

const (
	WorkflowStatusPending        WorkflowStatus = "PENDING"
	WorkflowStatusRunning        WorkflowStatus = "RUNNING"
	WorkflowStatusSucceeded      WorkflowStatus = "SUCCEEDED"
	WorkflowStatusPartialFailure WorkflowStatus = "PARTIAL_FAILURE"
	WorkflowStatusFailed         WorkflowStatus = "FAILED"
	WorkflowStatusCancelled      WorkflowStatus = "CANCELLED"
)

// WorkflowRun is a single execution of a workflow definition. TaskRuns holds
// one entry per expanded graph node; skipped nodes carry a run with zero
// attempts and status SKIPPED.
type WorkflowRun struct {
	ID           string              `json:"id"`
	DefinitionID string              `json:"definitionId"`
	Status       WorkflowStatus      `json:"status"`
	TaskRuns     map[string]*TaskRun `json:"taskRuns"`
	StartTime    time.Time           `json:"startTime"`
	EndTime      *time.Time          `json:"endTime,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// NewWorkflowRun creates a new pending run for a workflow definition.
func NewWorkflowRun(definitionID string) *WorkflowRun {
	now := time.Now()
	return &WorkflowRun{
		ID:           uuid.New().String(),
		DefinitionID: definitionID,
		Status:       WorkflowStatusPending,
		TaskRuns:     make(map[string]*TaskRun),
		StartTime:    now,
		CreatedAt:    now,
	}
}

// FailedTaskIDs returns the ids of tasks that ended Failed or TimedOut.
func (w *WorkflowRun) FailedTaskIDs() []string {
	var ids []string
	for id, run := range w.TaskRuns {
		if run.Status == TaskStatusFailed || run.Status == TaskStatusTimedOut {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SkippedTaskIDs returns the ids of tasks that never entered execution.
func (w *WorkflowRun) SkippedTaskIDs() []string {
	var ids []string
	for id, run := range w.TaskRuns {
		if run.Status == TaskStatusSkipped {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ToJSON converts the workflow run to JSON
func (w *WorkflowRun) ToJSON() ([]byte, error) {
	return json.Marshal(w)
}

// FromJSON populates the workflow run from JSON
func (w *WorkflowRun) FromJSON(data []byte) error {
	return json.Unmarshal(data, w)
}
