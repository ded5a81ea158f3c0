// internal/sampler/sampler.go
package sampler

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/hashicorp/go-hclog"
)

// Config holds sampler construction parameters. ProcRoot and ClockTicks are
// overridable so tests can point the sampler at a synthetic proc tree.
type Config struct {
	Interval   time.Duration
	ProcRoot   string  // defaults to /proc
	ClockTicks float64 // USER_HZ, defaults to 100
	PageSize   int     // defaults to os.Getpagesize()
}

const DefaultInterval = 500 * time.Millisecond

// Sampler polls a single process for resource usage on a fixed interval and
// appends each reading to an in-memory ordered buffer. It stops on its own
// when the process is no longer observable.
type Sampler struct {
	interval   time.Duration
	procRoot   string
	clockTicks float64
	pageSize   int
	logger     hclog.Logger

	mu      sync.Mutex
	samples []models.ResourceSample

	stopChan chan struct{}
	doneChan chan struct{}

	// CPU utilization needs a previous reading to compute a delta
	lastCPUTicks uint64
	lastCPUTime  time.Time
	hasBaseline  bool
}

// New creates a sampler. Zero config fields fall back to defaults.
func New(cfg Config, logger hclog.Logger) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ProcRoot == "" {
		cfg.ProcRoot = "/proc"
	}
	if cfg.ClockTicks <= 0 {
		cfg.ClockTicks = 100
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = os.Getpagesize()
	}
	return &Sampler{
		interval:   cfg.Interval,
		procRoot:   cfg.ProcRoot,
		clockTicks: cfg.ClockTicks,
		pageSize:   cfg.PageSize,
		logger:     logger.Named("sampler"),
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins sampling the given pid on an independent schedule. It must be
// called at most once.
func (s *Sampler) Start(pid int) {
	go s.run(pid)
}

// Stop requests termination and blocks until the sampling loop has flushed
// its last reading and exited.
func (s *Sampler) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	<-s.doneChan
}

// Samples returns a copy of the collected readings in timestamp order.
func (s *Sampler) Samples() []models.ResourceSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ResourceSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Summary aggregates min/max/avg per metric over all collected samples.
// SampleCount is zero when the process outlived fewer than one interval.
func (s *Sampler) Summary() *models.ResourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ComputeResourceStats(s.samples)
}

func (s *Sampler) run(pid int) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	consecutiveFaults := 0
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			sample, err := s.read(pid)
			if err != nil {
				if vanished(err) {
					// The process exited between polls. Normal termination.
					return
				}
				consecutiveFaults++
				if consecutiveFaults <= 3 {
					s.logger.Warn("sampling fault", "pid", pid, "error", err)
				}
				continue
			}
			consecutiveFaults = 0
			s.mu.Lock()
			s.samples = append(s.samples, sample)
			s.mu.Unlock()
		}
	}
}

// vanished reports whether a read error means the target process is gone.
func vanished(err error) bool {
	return os.IsNotExist(err)
}

// read collects one sample for pid from the proc tree. The stat read is
// mandatory; status, io, and fd readings are best effort because access to
// them can be restricted.
func (s *Sampler) read(pid int) (models.ResourceSample, error) {
	now := time.Now()
	sample := models.ResourceSample{Timestamp: now}

	cpuTicks, rssPages, err := s.readStat(pid)
	if err != nil {
		return sample, err
	}
	sample.MemoryBytes = rssPages * uint64(s.pageSize)

	if s.hasBaseline {
		wall := now.Sub(s.lastCPUTime).Seconds()
		if wall > 0 && cpuTicks >= s.lastCPUTicks {
			cpuSeconds := float64(cpuTicks-s.lastCPUTicks) / s.clockTicks
			sample.CPUPercent = cpuSeconds / wall * 100.0
		}
	}
	s.lastCPUTicks = cpuTicks
	s.lastCPUTime = now
	s.hasBaseline = true

	if vol, invol, err := s.readStatus(pid); err == nil {
		sample.VoluntaryCtxSwitch = vol
		sample.InvoluntaryCtxSwitch = invol
	}
	if rd, wr, err := s.readIO(pid); err == nil {
		sample.IOReadBytes = rd
		sample.IOWriteBytes = wr
	}
	if fds, err := s.countFDs(pid); err == nil {
		sample.OpenFDs = fds
	}

	return sample, nil
}

// readStat parses /proc/<pid>/stat for cumulative cpu ticks and rss pages.
// The comm field can contain spaces, so fields are taken after the closing
// parenthesis.
func (s *Sampler) readStat(pid int) (cpuTicks uint64, rssPages uint64, err error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/stat", s.procRoot, pid))
	if err != nil {
		return 0, 0, err
	}

	statStr := string(data)
	nameEnd := strings.LastIndex(statStr, ")")
	if nameEnd == -1 {
		return 0, 0, fmt.Errorf("invalid stat format for pid %d", pid)
	}

	fields := strings.Fields(statStr[nameEnd+1:])
	if len(fields) < 22 {
		return 0, 0, fmt.Errorf("insufficient stat fields for pid %d", pid)
	}

	utime, _ := strconv.ParseUint(fields[11], 10, 64)
	stime, _ := strconv.ParseUint(fields[12], 10, 64)
	rss, _ := strconv.ParseUint(fields[21], 10, 64)
	return utime + stime, rss, nil
}

// readStatus parses the context switch counters from /proc/<pid>/status.
func (s *Sampler) readStatus(pid int) (voluntary, involuntary uint64, err error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/status", s.procRoot, pid))
	if err != nil {
		return 0, 0, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "voluntary_ctxt_switches:"):
			voluntary = parseStatusValue(line)
		case strings.HasPrefix(line, "nonvoluntary_ctxt_switches:"):
			involuntary = parseStatusValue(line)
		}
	}
	return voluntary, involuntary, nil
}

// readIO parses cumulative storage I/O from /proc/<pid>/io.
func (s *Sampler) readIO(pid int) (readBytes, writeBytes uint64, err error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/io", s.procRoot, pid))
	if err != nil {
		return 0, 0, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "read_bytes:"):
			readBytes = parseStatusValue(line)
		case strings.HasPrefix(line, "write_bytes:"):
			writeBytes = parseStatusValue(line)
		}
	}
	return readBytes, writeBytes, nil
}

func (s *Sampler) countFDs(pid int) (int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("%s/%d/fd", s.procRoot, pid))
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func parseStatusValue(line string) uint64 {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return 0
	}
	v, _ := strconv.ParseUint(parts[1], 10, 64)
	return v
}
