// internal/models/task.go
package models

// TaskStatus represents the current state of a task within a workflow run
type TaskStatus string

const (
	TaskStatusWaiting   TaskStatus = "WAITING"
	TaskStatusReady     TaskStatus = "READY"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusTimedOut  TaskStatus = "TIMED_OUT"
	TaskStatusCancelled TaskStatus = "CANCELLED"
	TaskStatusSkipped   TaskStatus = "SKIPPED"
)

// IsTerminal reports whether the status is final and will never change again.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusTimedOut, TaskStatusCancelled, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether the status satisfies downstream dependencies.
func (s TaskStatus) IsSuccess() bool {
	return s == TaskStatusSucceeded
}

// RetryStrategy selects the backoff formula used between attempts
type RetryStrategy string

const (
	RetryLinear            RetryStrategy = "linear"
	RetryExponential       RetryStrategy = "exponential"
	RetryFibonacci         RetryStrategy = "fibonacci"
	RetryExponentialJitter RetryStrategy = "exponential-jitter"
)

// RetryConfig holds the per-task retry policy parameters
type RetryConfig struct {
	Strategy     RetryStrategy `json:"strategy" yaml:"strategy"`
	MaxAttempts  int           `json:"maxAttempts" yaml:"maxAttempts"`
	InitialDelay Duration      `json:"initialDelay" yaml:"initialDelay"`
	MaxDelay     Duration      `json:"maxDelay" yaml:"maxDelay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`
}

// Matrix describes fan-out of a single task spec into count sibling instances.
// Each instance receives its index through the IndexEnv environment variable.
type Matrix struct {
	Count    int    `json:"count" yaml:"count"`
	IndexEnv string `json:"indexEnv,omitempty" yaml:"indexEnv,omitempty"`
}

// DefaultMatrixIndexEnv is used when a matrix omits indexEnv.
const DefaultMatrixIndexEnv = "RUNWEAVE_MATRIX_INDEX"

// TaskSpec is the declarative definition of one runnable script within a
// workflow. Specs are authored by the caller and never mutated by the engine.
type TaskSpec struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Command    string            `json:"command" yaml:"command"`
	Args       []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	WorkingDir string            `json:"workingDir,omitempty" yaml:"workingDir,omitempty"`
	Timeout    Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retry      RetryConfig       `json:"retry,omitempty" yaml:"retry,omitempty"`
	DependsOn  []string          `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	RunAlways  bool              `json:"runAlways,omitempty" yaml:"runAlways,omitempty"`
	Condition  *Condition        `json:"condition,omitempty" yaml:"condition,omitempty"`
	Matrix     *Matrix           `json:"matrix,omitempty" yaml:"matrix,omitempty"`
}

// Clone returns a deep copy of the spec so matrix expansion can derive
// instances without aliasing the author's maps and slices.
func (s TaskSpec) Clone() TaskSpec {
	out := s
	if s.Args != nil {
		out.Args = append([]string(nil), s.Args...)
	}
	if s.DependsOn != nil {
		out.DependsOn = append([]string(nil), s.DependsOn...)
	}
	if s.Env != nil {
		out.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			out.Env[k] = v
		}
	}
	out.Condition = s.Condition.Clone()
	if s.Matrix != nil {
		m := *s.Matrix
		out.Matrix = &m
	}
	return out
}
