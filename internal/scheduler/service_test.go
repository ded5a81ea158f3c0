// internal/scheduler/service_test.go
package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(recorder RunRecorder) *Service {
	return NewService(newTestScheduler(nil, recorder, 2), hclog.NewNullLogger())
}

func TestServiceRegisterAndLookup(t *testing.T) {
	svc := newTestService(nil)
	def := &models.WorkflowDefinition{
		ID:    "demo",
		Tasks: []models.TaskSpec{shellTask("a", "exit 0")},
	}

	require.NoError(t, svc.Register(def))

	got, ok := svc.Definition("demo")
	require.True(t, ok)
	assert.Equal(t, def, got)
	assert.Len(t, svc.Definitions(), 1)
}

func TestServiceRegisterRejectsDuplicate(t *testing.T) {
	svc := newTestService(nil)
	def := &models.WorkflowDefinition{
		ID:    "demo",
		Tasks: []models.TaskSpec{shellTask("a", "exit 0")},
	}

	require.NoError(t, svc.Register(def))
	assert.Error(t, svc.Register(def))
}

func TestServiceRegisterRejectsInvalidGraph(t *testing.T) {
	svc := newTestService(nil)
	def := &models.WorkflowDefinition{
		ID: "cyclic",
		Tasks: []models.TaskSpec{
			shellTask("a", "exit 0", "b"),
			shellTask("b", "exit 0", "a"),
		},
	}

	assert.Error(t, svc.Register(def))

	_, ok := svc.Definition("cyclic")
	assert.False(t, ok)
}

func TestServiceRegisterRejectsMissingID(t *testing.T) {
	svc := newTestService(nil)
	assert.Error(t, svc.Register(&models.WorkflowDefinition{}))
}

func TestServiceTriggerRunsToCompletion(t *testing.T) {
	recorder := &memoryRecorder{}
	svc := newTestService(recorder)
	require.NoError(t, svc.Register(&models.WorkflowDefinition{
		ID:    "quick",
		Tasks: []models.TaskSpec{shellTask("a", "exit 0")},
	}))

	handle, err := svc.Trigger(context.Background(), "quick")
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	require.Eventually(t, func() bool {
		return svc.ActiveCount() == 0
	}, 5*time.Second, 20*time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.wfRuns, 1)
	assert.Equal(t, models.WorkflowStatusSucceeded, recorder.wfRuns[0].Status)
}

func TestServiceTriggerOutlivesCallerContext(t *testing.T) {
	recorder := &memoryRecorder{}
	svc := newTestService(recorder)
	require.NoError(t, svc.Register(&models.WorkflowDefinition{
		ID:    "detached",
		Tasks: []models.TaskSpec{shellTask("a", "sleep 0.3")},
	}))

	// An HTTP trigger's request context ends as soon as the response is
	// written; the run must not end with it.
	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Trigger(ctx, "detached")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		return svc.ActiveCount() == 0
	}, 5*time.Second, 20*time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.wfRuns, 1)
	assert.Equal(t, models.WorkflowStatusSucceeded, recorder.wfRuns[0].Status)
}

func TestServiceTriggerUnknownWorkflow(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.Trigger(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestServiceCancelActiveRun(t *testing.T) {
	recorder := &memoryRecorder{}
	svc := newTestService(recorder)
	require.NoError(t, svc.Register(&models.WorkflowDefinition{
		ID:    "long",
		Tasks: []models.TaskSpec{shellTask("a", "sleep 30")},
	}))

	handle, err := svc.Trigger(context.Background(), "long")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.ActiveCount() == 1
	}, time.Second, 10*time.Millisecond)

	assert.True(t, svc.Cancel(handle))

	require.Eventually(t, func() bool {
		return svc.ActiveCount() == 0
	}, 5*time.Second, 20*time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.wfRuns, 1)
	assert.Equal(t, models.WorkflowStatusCancelled, recorder.wfRuns[0].Status)
}

func TestServiceCancelUnknownHandle(t *testing.T) {
	svc := newTestService(nil)
	assert.False(t, svc.Cancel("no-such-handle"))
}

func TestServiceShutdownCancelsActiveRuns(t *testing.T) {
	svc := newTestService(nil)
	require.NoError(t, svc.Register(&models.WorkflowDefinition{
		ID:    "long",
		Tasks: []models.TaskSpec{shellTask("a", "sleep 30")},
	}))

	_, err := svc.Trigger(context.Background(), "long")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.ActiveCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Shutdown(5*time.Second))
	assert.Zero(t, svc.ActiveCount())
}
