package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRetryConfig_BackoffMonotonicity reproduces spec.md §8 scenario 6 exactly.
func TestRetryConfig_BackoffMonotonicity(t *testing.T) {
	rc, err := NewRetryConfig(10, Exponential, 100*time.Millisecond, 30*time.Second)
	require.NoError(t, err)

	expectedMs := []int64{100, 200, 400, 800, 1600, 3200, 6400, 12800, 25600, 30000}
	for i, want := range expectedMs {
		attempt := i + 1
		got := rc.Delay(attempt)
		assert.Equal(t, time.Duration(want)*time.Millisecond, got, "attempt %d", attempt)
	}
}

func TestRetryConfig_AttemptZeroIsZero(t *testing.T) {
	rc, _ := NewRetryConfig(5, Exponential, 50*time.Millisecond, time.Second)
	assert.Equal(t, time.Duration(0), rc.Delay(0))
}

func TestRetryConfig_LinearAndFixed(t *testing.T) {
	lin, _ := NewRetryConfig(5, Linear, 100*time.Millisecond, time.Second)
	assert.Equal(t, 100*time.Millisecond, lin.Delay(1))
	assert.Equal(t, 300*time.Millisecond, lin.Delay(3))
	assert.Equal(t, time.Second, lin.Delay(20)) // clamped

	fixed, _ := NewRetryConfig(5, Fixed, 250*time.Millisecond, time.Second)
	assert.Equal(t, 250*time.Millisecond, fixed.Delay(1))
	assert.Equal(t, 250*time.Millisecond, fixed.Delay(9))
}

func TestRetryConfig_RejectsInvalidBounds(t *testing.T) {
	_, err := NewRetryConfig(0, Exponential, time.Second, time.Minute)
	require.Error(t, err)

	_, err = NewRetryConfig(3, Exponential, time.Minute, time.Second)
	require.Error(t, err)
}

func TestParseDuration_DefaultsToMilliseconds(t *testing.T) {
	d, err := ParseDuration("500")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	d, err = ParseDuration("5s")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = ParseDuration("2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
}

func TestParseDuration_RoundTrip(t *testing.T) {
	for _, d := range []time.Duration{
		500 * time.Millisecond,
		5 * time.Second,
		2 * time.Minute,
	} {
		s := FormatDuration(d)
		got, err := ParseDuration(s)
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}

func TestRetryFromProperties(t *testing.T) {
	props := map[string]string{
		"error.retry.max-attempts":  "5",
		"error.retry.backoff":       "linear",
		"error.retry.initial-delay": "200ms",
		"error.retry.max-delay":     "2s",
	}
	rc, err := RetryFromProperties(props)
	require.NoError(t, err)
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, Linear, rc.Strategy)
	assert.Equal(t, 200*time.Millisecond, rc.InitialDelay)
	assert.Equal(t, 2*time.Second, rc.MaxDelay)
}
