// internal/models/status.go
package models

import (
	"time"
)

// EventType identifies a scheduler lifecycle event
type EventType string

const (
	EventWorkflowStarted   EventType = "WORKFLOW_STARTED"
	EventTaskStarted       EventType = "TASK_STARTED"
	EventTaskCompleted     EventType = "TASK_COMPLETED"
	EventTaskSkipped       EventType = "TASK_SKIPPED"
	EventTaskCancelled     EventType = "TASK_CANCELLED"
	EventWorkflowCompleted EventType = "WORKFLOW_COMPLETED"
)

// Event is one entry of the ordered workflow completion event stream emitted
// by the scheduler for reporting and visualization consumers.
type Event struct {
	Type          EventType   `json:"type"`
	WorkflowRunID string      `json:"workflowRunId"`
	TaskID        string      `json:"taskId,omitempty"`
	Status        string      `json:"status,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	Metadata      interface{} `json:"metadata,omitempty"` // additional event-specific information
}

// WorkflowDefinition is a named set of task specs scheduled as one DAG.
// MaxParallel bounds the number of concurrently running tasks; zero means
// the engine-wide default applies.
type WorkflowDefinition struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	MaxParallel int        `json:"maxParallel,omitempty" yaml:"maxParallel,omitempty"`
	Tasks       []TaskSpec `json:"tasks" yaml:"tasks"`
}

// SystemState represents the engine's view of current and past activity
type SystemState struct {
	ActiveRuns   int       `json:"activeRuns"`
	ExecutedRuns int       `json:"executedRuns"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
