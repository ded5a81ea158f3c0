// internal/scheduler/recorder.go
package scheduler

import (
	"context"

	"github.com/fawad-mazhar/runweave/internal/models"
)

// multiRecorder fans run records out to several stores. Each store is given
// the record even if another one fails; the first error is returned.
type multiRecorder struct {
	recorders []RunRecorder
}

// MultiRecorder combines run recorders, skipping nil entries. Returns nil
// when no recorder remains so the scheduler can treat persistence as absent.
func MultiRecorder(recorders ...RunRecorder) RunRecorder {
	var active []RunRecorder
	for _, r := range recorders {
		if r != nil {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}
	if len(active) == 1 {
		return active[0]
	}
	return &multiRecorder{recorders: active}
}

func (m *multiRecorder) RecordTaskRun(ctx context.Context, run *models.TaskRun) error {
	var firstErr error
	for _, r := range m.recorders {
		if err := r.RecordTaskRun(ctx, run); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiRecorder) RecordWorkflowRun(ctx context.Context, run *models.WorkflowRun) error {
	var firstErr error
	for _, r := range m.recorders {
		if err := r.RecordWorkflowRun(ctx, run); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
