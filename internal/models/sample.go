// internal/models/sample.go
package models

import (
	"fmt"
	"time"
)

// ResourceSample is a single point-in-time reading of a running task process.
// Cumulative counters (context switches, I/O bytes) are non-decreasing across
// the samples of one attempt.
type ResourceSample struct {
	Timestamp            time.Time `json:"timestamp"`
	CPUPercent           float64   `json:"cpuPercent"`
	MemoryBytes          uint64    `json:"memoryBytes"`
	VoluntaryCtxSwitch   uint64    `json:"voluntaryCtxSwitch"`
	InvoluntaryCtxSwitch uint64    `json:"involuntaryCtxSwitch"`
	OpenFDs              int       `json:"openFds"`
	IOReadBytes          uint64    `json:"ioReadBytes"`
	IOWriteBytes         uint64    `json:"ioWriteBytes"`
}

// MetricStats holds the aggregate of one numeric metric across samples
type MetricStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// ResourceStats aggregates every sampled metric across a set of samples.
// SampleCount of zero means the process exited before the first poll fired.
type ResourceStats struct {
	SampleCount          int         `json:"sampleCount"`
	CPUPercent           MetricStats `json:"cpuPercent"`
	MemoryBytes          MetricStats `json:"memoryBytes"`
	VoluntaryCtxSwitch   MetricStats `json:"voluntaryCtxSwitch"`
	InvoluntaryCtxSwitch MetricStats `json:"involuntaryCtxSwitch"`
	OpenFDs              MetricStats `json:"openFds"`
	IOReadBytes          MetricStats `json:"ioReadBytes"`
	IOWriteBytes         MetricStats `json:"ioWriteBytes"`
}

// ComputeResourceStats aggregates min/max/avg for each metric over samples.
// Returns stats with SampleCount 0 when no samples were collected.
func ComputeResourceStats(samples []ResourceSample) *ResourceStats {
	stats := &ResourceStats{SampleCount: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	acc := func(ms *MetricStats, v float64, first bool) {
		if first {
			ms.Min, ms.Max = v, v
		} else {
			if v < ms.Min {
				ms.Min = v
			}
			if v > ms.Max {
				ms.Max = v
			}
		}
		ms.Avg += v
	}

	for i, s := range samples {
		first := i == 0
		acc(&stats.CPUPercent, s.CPUPercent, first)
		acc(&stats.MemoryBytes, float64(s.MemoryBytes), first)
		acc(&stats.VoluntaryCtxSwitch, float64(s.VoluntaryCtxSwitch), first)
		acc(&stats.InvoluntaryCtxSwitch, float64(s.InvoluntaryCtxSwitch), first)
		acc(&stats.OpenFDs, float64(s.OpenFDs), first)
		acc(&stats.IOReadBytes, float64(s.IOReadBytes), first)
		acc(&stats.IOWriteBytes, float64(s.IOWriteBytes), first)
	}

	n := float64(len(samples))
	for _, ms := range []*MetricStats{
		&stats.CPUPercent, &stats.MemoryBytes, &stats.VoluntaryCtxSwitch,
		&stats.InvoluntaryCtxSwitch, &stats.OpenFDs, &stats.IOReadBytes, &stats.IOWriteBytes,
	} {
		ms.Avg /= n
	}

	return stats
}

// Flat returns the aggregates as a flat metric-name to value mapping, the
// form returned by the task stats API.
func (s *ResourceStats) Flat() map[string]float64 {
	out := map[string]float64{
		"sample_count": float64(s.SampleCount),
	}
	add := func(name string, ms MetricStats) {
		out[fmt.Sprintf("%s_min", name)] = ms.Min
		out[fmt.Sprintf("%s_max", name)] = ms.Max
		out[fmt.Sprintf("%s_avg", name)] = ms.Avg
	}
	add("cpu_percent", s.CPUPercent)
	add("memory_bytes", s.MemoryBytes)
	add("voluntary_ctx_switches", s.VoluntaryCtxSwitch)
	add("involuntary_ctx_switches", s.InvoluntaryCtxSwitch)
	add("open_fds", s.OpenFDs)
	add("io_read_bytes", s.IOReadBytes)
	add("io_write_bytes", s.IOWriteBytes)
	return out
}
