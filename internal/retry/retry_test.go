// internal/retry/retry_test.go
package retry

import (
	"testing"
	"time"

	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/stretchr/testify/assert"
)

func cfg(strategy models.RetryStrategy) models.RetryConfig {
	return models.RetryConfig{
		Strategy:     strategy,
		MaxAttempts:  5,
		InitialDelay: models.Duration(time.Second),
		MaxDelay:     models.Duration(time.Minute),
		Multiplier:   2.0,
	}
}

func TestDelayLinear(t *testing.T) {
	c := cfg(models.RetryLinear)

	assert.Equal(t, 1*time.Second, Delay(c, 0))
	assert.Equal(t, 2*time.Second, Delay(c, 1))
	assert.Equal(t, 3*time.Second, Delay(c, 2))
}

func TestDelayExponential(t *testing.T) {
	c := cfg(models.RetryExponential)

	assert.Equal(t, 1*time.Second, Delay(c, 0))
	assert.Equal(t, 2*time.Second, Delay(c, 1))
	assert.Equal(t, 4*time.Second, Delay(c, 2))
	assert.Equal(t, 8*time.Second, Delay(c, 3))
}

func TestDelayFibonacci(t *testing.T) {
	c := cfg(models.RetryFibonacci)

	// fib(attempt+2) with fib(1)=fib(2)=1: 1, 2, 3, 5, 8
	assert.Equal(t, 1*time.Second, Delay(c, 0))
	assert.Equal(t, 2*time.Second, Delay(c, 1))
	assert.Equal(t, 3*time.Second, Delay(c, 2))
	assert.Equal(t, 5*time.Second, Delay(c, 3))
	assert.Equal(t, 8*time.Second, Delay(c, 4))
}

func TestDelayJitterStaysWithinBounds(t *testing.T) {
	c := cfg(models.RetryExponentialJitter)

	for attempt := 0; attempt < 6; attempt++ {
		exponential := Delay(cfg(models.RetryExponential), attempt)
		for i := 0; i < 50; i++ {
			d := Delay(c, attempt)
			assert.GreaterOrEqual(t, d, exponential/2)
			assert.LessOrEqual(t, d, exponential)
		}
	}
}

func TestDelayCappedAtMax(t *testing.T) {
	for _, strategy := range []models.RetryStrategy{
		models.RetryLinear, models.RetryExponential, models.RetryFibonacci, models.RetryExponentialJitter,
	} {
		c := cfg(strategy)
		c.MaxDelay = models.Duration(3 * time.Second)
		for attempt := 0; attempt < 20; attempt++ {
			assert.LessOrEqual(t, Delay(c, attempt), 3*time.Second, "strategy %s attempt %d", strategy, attempt)
		}
	}
}

func TestDelayNonDecreasingUntilCap(t *testing.T) {
	for _, strategy := range []models.RetryStrategy{
		models.RetryLinear, models.RetryExponential, models.RetryFibonacci,
	} {
		c := cfg(strategy)
		prev := time.Duration(-1)
		for attempt := 0; attempt < 15; attempt++ {
			d := Delay(c, attempt)
			assert.GreaterOrEqual(t, d, prev, "strategy %s attempt %d", strategy, attempt)
			prev = d
		}
	}
}

func TestDelayNeverNegative(t *testing.T) {
	c := cfg(models.RetryExponential)
	assert.GreaterOrEqual(t, Delay(c, -3), time.Duration(0))
	assert.GreaterOrEqual(t, Delay(c, 0), time.Duration(0))
}

func TestShouldRetry(t *testing.T) {
	c := cfg(models.RetryLinear)
	c.MaxAttempts = 3

	assert.True(t, ShouldRetry(c, 1, models.TaskStatusFailed))
	assert.True(t, ShouldRetry(c, 2, models.TaskStatusTimedOut))
	assert.False(t, ShouldRetry(c, 3, models.TaskStatusFailed), "exhausted attempts")
	assert.False(t, ShouldRetry(c, 4, models.TaskStatusFailed), "past exhaustion")
	assert.False(t, ShouldRetry(c, 1, models.TaskStatusCancelled), "cancellation is never retried")
	assert.False(t, ShouldRetry(c, 1, models.TaskStatusSucceeded))
}
