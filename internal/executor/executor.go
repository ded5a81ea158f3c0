// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/fawad-mazhar/runweave/internal/retry"
	"github.com/fawad-mazhar/runweave/internal/sampler"
	"github.com/hashicorp/go-hclog"
)

// Config holds executor construction parameters shared by every task
type Config struct {
	SamplingInterval time.Duration
	TerminationGrace time.Duration // SIGTERM to SIGKILL escalation window
	DefaultRetry     models.RetryConfig
	ProcRoot         string // sampler proc tree override, empty for /proc
}

const DefaultTerminationGrace = 5 * time.Second

// Executor runs a single task spec to a terminal TaskRun, owning the child
// process lifecycle, the resource sampler, and the retry loop for each
// attempt. An Executor is stateless and safe for concurrent use.
type Executor struct {
	cfg    Config
	logger hclog.Logger
}

func New(cfg Config, logger hclog.Logger) *Executor {
	if cfg.TerminationGrace <= 0 {
		cfg.TerminationGrace = DefaultTerminationGrace
	}
	return &Executor{
		cfg:    cfg,
		logger: logger.Named("executor"),
	}
}

// Execute runs the spec to completion and returns its finished TaskRun. The
// returned run is always terminal; execution problems are expressed through
// its status, never through a Go error.
func (e *Executor) Execute(ctx context.Context, workflowRunID string, spec models.TaskSpec) *models.TaskRun {
	run := models.NewTaskRun(workflowRunID, spec)
	run.StartTime = time.Now()
	logger := e.logger.With("task", spec.ID)

	if err := ctx.Err(); err != nil {
		run.Error = "cancelled before start"
		run.Finalize(models.TaskStatusCancelled, time.Now())
		return run
	}

	// Unrunnable specs fail permanently with zero attempts spent.
	resolved, err := e.validate(spec)
	if err != nil {
		logger.Error("spec validation failed", "error", err)
		run.Error = err.Error()
		run.Finalize(models.TaskStatusFailed, time.Now())
		return run
	}

	retryCfg := e.retryConfig(spec)
	for attemptNum := 0; ; attemptNum++ {
		attempt := e.runAttempt(ctx, logger, resolved, spec, attemptNum)
		run.Attempts = append(run.Attempts, attempt)

		if attempt.Status == models.TaskStatusSucceeded || attempt.Status == models.TaskStatusCancelled {
			run.Finalize(attempt.Status, time.Now())
			return run
		}

		if !retry.ShouldRetry(retryCfg, len(run.Attempts), attempt.Status) {
			run.Finalize(attempt.Status, time.Now())
			return run
		}

		delay := retry.Delay(retryCfg, attemptNum)
		logger.Info("attempt failed, retrying",
			"attempt", attemptNum+1, "maxAttempts", retryCfg.MaxAttempts,
			"status", attempt.Status, "delay", delay)

		select {
		case <-ctx.Done():
			run.Finalize(models.TaskStatusCancelled, time.Now())
			return run
		case <-time.After(delay):
		}
	}
}

// validate resolves the command and checks the working directory. A failure
// here is permanent and non-retryable.
func (e *Executor) validate(spec models.TaskSpec) (string, error) {
	if spec.Command == "" {
		return "", fmt.Errorf("task %s has no command", spec.ID)
	}

	resolved, err := exec.LookPath(spec.Command)
	if err != nil {
		return "", fmt.Errorf("command %q is not runnable: %w", spec.Command, err)
	}

	if spec.WorkingDir != "" {
		info, err := os.Stat(spec.WorkingDir)
		if err != nil {
			return "", fmt.Errorf("working directory %q is not accessible: %w", spec.WorkingDir, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("working directory %q is not a directory", spec.WorkingDir)
		}
	}

	return resolved, nil
}

// runAttempt spawns the child process, samples it while it runs, and
// classifies the terminal outcome of this single attempt.
func (e *Executor) runAttempt(ctx context.Context, logger hclog.Logger, resolved string, spec models.TaskSpec, number int) models.TaskAttempt {
	attempt := models.TaskAttempt{
		Number:    number,
		StartTime: time.Now(),
		ExitCode:  -1,
	}

	cmd := exec.Command(resolved, spec.Args...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = mergedEnv(spec)

	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		// Start failure after validation counts as a failed attempt,
		// still subject to the retry policy.
		attempt.Status = models.TaskStatusFailed
		attempt.Error = fmt.Sprintf("start failed: %v", err)
		attempt.EndTime = time.Now()
		return attempt
	}

	smp := sampler.New(sampler.Config{
		Interval: e.cfg.SamplingInterval,
		ProcRoot: e.cfg.ProcRoot,
	}, logger)
	smp.Start(cmd.Process.Pid)

	waitChan := make(chan error, 1)
	go func() { waitChan <- cmd.Wait() }()

	var timeoutChan <-chan time.Time
	if t := spec.Timeout.Std(); t > 0 {
		timer := time.NewTimer(t)
		defer timer.Stop()
		timeoutChan = timer.C
	}

	var waitErr error
	timedOut := false
	cancelled := false

	select {
	case waitErr = <-waitChan:
	case <-timeoutChan:
		timedOut = true
		logger.Warn("attempt exceeded timeout, terminating", "attempt", number, "timeout", spec.Timeout)
		waitErr = e.terminate(cmd, waitChan)
	case <-ctx.Done():
		cancelled = true
		waitErr = e.terminate(cmd, waitChan)
	}

	smp.Stop()
	attempt.Samples = smp.Samples()
	attempt.EndTime = time.Now()

	if code := exitCode(waitErr); code >= 0 {
		attempt.ExitCode = code
	} else if waitErr == nil {
		attempt.ExitCode = 0
	}

	switch {
	case cancelled:
		attempt.Status = models.TaskStatusCancelled
		attempt.Error = "cancelled"
	case timedOut:
		attempt.Status = models.TaskStatusTimedOut
		attempt.Error = fmt.Sprintf("timed out after %s", spec.Timeout)
	case waitErr == nil:
		attempt.Status = models.TaskStatusSucceeded
	default:
		attempt.Status = models.TaskStatusFailed
		attempt.Error = errorText(waitErr, stderr)
	}

	return attempt
}

// terminate sends SIGTERM and escalates to SIGKILL after the grace period
// if the process has not exited.
func (e *Executor) terminate(cmd *exec.Cmd, waitChan chan error) error {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case err := <-waitChan:
		return err
	case <-time.After(e.cfg.TerminationGrace):
		_ = cmd.Process.Kill()
		return <-waitChan
	}
}

// retryConfig overlays engine defaults onto unset spec retry fields.
func (e *Executor) retryConfig(spec models.TaskSpec) models.RetryConfig {
	cfg := spec.Retry
	defaults := e.cfg.DefaultRetry
	if cfg.Strategy == "" {
		cfg.Strategy = defaults.Strategy
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return cfg
}

// mergedEnv layers the spec's extra variables over the inherited environment.
func mergedEnv(spec models.TaskSpec) []string {
	env := os.Environ()
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// exitCode extracts the process exit code from a Wait error, or -1 when the
// process did not exit normally.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func errorText(waitErr error, stderr *tailBuffer) string {
	tail := strings.TrimSpace(stderr.String())
	if tail != "" {
		return fmt.Sprintf("%v: %s", waitErr, tail)
	}
	return waitErr.Error()
}

// tailBuffer keeps the last cap bytes written to it. Used to retain the end
// of a process's stderr for failure reporting without unbounded growth.
type tailBuffer struct {
	cap  int
	data []byte
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{cap: capacity}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if len(b.data) > b.cap {
		b.data = b.data[len(b.data)-b.cap:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
