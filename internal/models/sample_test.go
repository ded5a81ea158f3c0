// internal/models/sample_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeResourceStatsEmpty(t *testing.T) {
	stats := ComputeResourceStats(nil)
	assert.Equal(t, 0, stats.SampleCount)
	assert.Zero(t, stats.CPUPercent.Max)
}

func TestComputeResourceStats(t *testing.T) {
	now := time.Now()
	samples := []ResourceSample{
		{Timestamp: now, CPUPercent: 10, MemoryBytes: 100, OpenFDs: 4, IOReadBytes: 0},
		{Timestamp: now.Add(time.Second), CPUPercent: 30, MemoryBytes: 200, OpenFDs: 6, IOReadBytes: 512},
		{Timestamp: now.Add(2 * time.Second), CPUPercent: 20, MemoryBytes: 300, OpenFDs: 5, IOReadBytes: 1024},
	}

	stats := ComputeResourceStats(samples)

	assert.Equal(t, 3, stats.SampleCount)
	assert.Equal(t, 10.0, stats.CPUPercent.Min)
	assert.Equal(t, 30.0, stats.CPUPercent.Max)
	assert.InDelta(t, 20.0, stats.CPUPercent.Avg, 0.001)
	assert.Equal(t, 100.0, stats.MemoryBytes.Min)
	assert.Equal(t, 300.0, stats.MemoryBytes.Max)
	assert.InDelta(t, 200.0, stats.MemoryBytes.Avg, 0.001)
	assert.Equal(t, 1024.0, stats.IOReadBytes.Max)
}

func TestResourceStatsFlat(t *testing.T) {
	stats := ComputeResourceStats([]ResourceSample{
		{CPUPercent: 50, MemoryBytes: 1024, OpenFDs: 3},
	})

	flat := stats.Flat()

	assert.Equal(t, 1.0, flat["sample_count"])
	assert.Equal(t, 50.0, flat["cpu_percent_max"])
	assert.Equal(t, 50.0, flat["cpu_percent_min"])
	assert.Equal(t, 50.0, flat["cpu_percent_avg"])
	assert.Equal(t, 1024.0, flat["memory_bytes_max"])
	assert.Equal(t, 3.0, flat["open_fds_max"])
	assert.Contains(t, flat, "io_read_bytes_avg")
	assert.Contains(t, flat, "voluntary_ctx_switches_min")
}

func TestTaskRunFinalizeAggregatesAcrossAttempts(t *testing.T) {
	run := NewTaskRun("wf", TaskSpec{ID: "t"})
	run.Attempts = []TaskAttempt{
		{Number: 0, Samples: []ResourceSample{{CPUPercent: 10}}},
		{Number: 1, Samples: []ResourceSample{{CPUPercent: 30}}},
	}

	run.Finalize(TaskStatusSucceeded, time.Now())

	assert.Equal(t, TaskStatusSucceeded, run.Status)
	assert.Equal(t, 2, run.Stats.SampleCount)
	assert.Equal(t, 30.0, run.Stats.CPUPercent.Max)
}
