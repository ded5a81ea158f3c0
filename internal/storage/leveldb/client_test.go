// internal/storage/leveldb/client_test.go
package leveldb

import (
	"context"
	"testing"
	"time"

	"github.com/fawad-mazhar/runweave/internal/config"
	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, retention time.Duration) *Client {
	t.Helper()
	client, err := NewClient(config.LevelDBConfig{Path: t.TempDir()}, retention)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func finishedTaskRun(workflowRunID, taskID string) *models.TaskRun {
	run := models.NewTaskRun(workflowRunID, models.TaskSpec{ID: taskID, Command: "/bin/true"})
	run.StartTime = time.Now()
	run.Attempts = append(run.Attempts, models.TaskAttempt{
		Number:    0,
		StartTime: run.StartTime,
		EndTime:   time.Now(),
		ExitCode:  0,
		Status:    models.TaskStatusSucceeded,
	})
	run.Finalize(models.TaskStatusSucceeded, time.Now())
	return run
}

func finishedWorkflowRun(definitionID string) *models.WorkflowRun {
	run := models.NewWorkflowRun(definitionID)
	run.Status = models.WorkflowStatusSucceeded
	now := time.Now()
	run.EndTime = &now
	return run
}

func TestRecordAndGetTaskRun(t *testing.T) {
	client := newTestClient(t, time.Hour)

	run := finishedTaskRun("wf-run-1", "extract")
	require.NoError(t, client.RecordTaskRun(context.Background(), run))

	got, err := client.GetTaskRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "extract", got.Spec.ID)
	assert.Equal(t, models.TaskStatusSucceeded, got.Status)
	require.Len(t, got.Attempts, 1)
}

func TestGetTaskRunNotFound(t *testing.T) {
	client := newTestClient(t, time.Hour)

	got, err := client.GetTaskRun("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordAndGetWorkflowRun(t *testing.T) {
	client := newTestClient(t, time.Hour)

	run := finishedWorkflowRun("nightly")
	require.NoError(t, client.RecordWorkflowRun(context.Background(), run))

	got, err := client.GetWorkflowRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "nightly", got.DefinitionID)
	assert.Equal(t, models.WorkflowStatusSucceeded, got.Status)
}

func TestGetLatestWorkflowRun(t *testing.T) {
	client := newTestClient(t, time.Hour)

	first := finishedWorkflowRun("nightly")
	second := finishedWorkflowRun("nightly")
	require.NoError(t, client.RecordWorkflowRun(context.Background(), first))
	require.NoError(t, client.RecordWorkflowRun(context.Background(), second))

	got, err := client.GetLatestWorkflowRun("nightly")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	got, err = client.GetLatestWorkflowRun("never-ran")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListWorkflowRuns(t *testing.T) {
	client := newTestClient(t, time.Hour)

	require.NoError(t, client.RecordWorkflowRun(context.Background(), finishedWorkflowRun("a")))
	require.NoError(t, client.RecordWorkflowRun(context.Background(), finishedWorkflowRun("b")))

	runs, err := client.ListWorkflowRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestExpiredEntriesAreInvisible(t *testing.T) {
	client := newTestClient(t, -time.Second)

	run := finishedWorkflowRun("stale")
	require.NoError(t, client.RecordWorkflowRun(context.Background(), run))

	got, err := client.GetWorkflowRun(run.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	runs, err := client.ListWorkflowRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCleanupRemovesExpiredKeys(t *testing.T) {
	client := newTestClient(t, -time.Second)

	run := finishedWorkflowRun("stale")
	require.NoError(t, client.RecordWorkflowRun(context.Background(), run))

	client.cleanup()

	data, err := client.get(workflowRunPrefix + run.ID)
	require.NoError(t, err)
	assert.Nil(t, data)
}
