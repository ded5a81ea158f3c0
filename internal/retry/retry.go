// internal/retry/retry.go
package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/fawad-mazhar/runweave/internal/models"
)

// Delay computes the wait before the next attempt, given the 0-indexed
// number of the attempt that just finished. The result is capped at the
// configured MaxDelay and is never negative.
func Delay(cfg models.RetryConfig, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	initial := cfg.InitialDelay.Std()
	if initial < 0 {
		initial = 0
	}

	var d time.Duration
	switch cfg.Strategy {
	case models.RetryExponential:
		d = scale(initial, math.Pow(multiplier(cfg), float64(attempt)))
	case models.RetryExponentialJitter:
		base := scale(initial, math.Pow(multiplier(cfg), float64(attempt)))
		// Uniform factor in [0.5, 1.0) keeps jittered delays under the
		// undithered exponential value.
		d = scale(base, 0.5+rand.Float64()*0.5)
	case models.RetryFibonacci:
		d = scale(initial, float64(fib(attempt+2)))
	case models.RetryLinear:
		d = initial * time.Duration(attempt+1)
	default:
		d = initial * time.Duration(attempt+1)
	}

	if max := cfg.MaxDelay.Std(); max > 0 && d > max {
		d = max
	}
	if d < 0 {
		d = 0
	}
	return d
}

// ShouldRetry decides whether another attempt is allowed after attemptsUsed
// attempts have finished with the given terminal outcome. Cancelled outcomes
// are never retried.
func ShouldRetry(cfg models.RetryConfig, attemptsUsed int, outcome models.TaskStatus) bool {
	if attemptsUsed >= cfg.MaxAttempts {
		return false
	}
	switch outcome {
	case models.TaskStatusFailed, models.TaskStatusTimedOut:
		return true
	default:
		return false
	}
}

func multiplier(cfg models.RetryConfig) float64 {
	if cfg.Multiplier > 1 {
		return cfg.Multiplier
	}
	return 2.0
}

func scale(d time.Duration, factor float64) time.Duration {
	scaled := float64(d) * factor
	if scaled > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled)
}

// fib returns the nth Fibonacci number with fib(1) = fib(2) = 1.
func fib(n int) uint64 {
	if n <= 2 {
		return 1
	}
	a, b := uint64(1), uint64(1)
	for i := 3; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}
