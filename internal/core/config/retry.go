package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eventflux-io/engine/internal/core/errs"
)

// BackoffStrategy selects the delay formula RetryConfig.Delay uses.
type BackoffStrategy int

const (
	Exponential BackoffStrategy = iota
	Linear
	Fixed
)

// RetryConfig is the per-source retry policy bound from "error.retry.*"
// properties (spec.md §4.I, §6).
type RetryConfig struct {
	MaxAttempts  int
	Strategy     BackoffStrategy
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// NewRetryConfig validates and constructs a RetryConfig. maxAttempts must be
// >= 1 and maxDelay must be >= initialDelay (spec.md §4.C).
func NewRetryConfig(maxAttempts int, strategy BackoffStrategy, initialDelay, maxDelay time.Duration) (*RetryConfig, error) {
	if maxAttempts < 1 {
		return nil, errs.NewValidation("NewRetryConfig", "maxAttempts", strconv.Itoa(maxAttempts),
			fmt.Errorf("maxAttempts must be >= 1"))
	}
	if maxDelay < initialDelay {
		return nil, errs.NewValidation("NewRetryConfig", "maxDelay", maxDelay.String(),
			fmt.Errorf("maxDelay must be >= initialDelay"))
	}
	return &RetryConfig{
		MaxAttempts:  maxAttempts,
		Strategy:     strategy,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
	}, nil
}

// Delay computes the backoff delay for the given attempt number. Attempt 0
// always yields 0 (spec.md §8 invariant 3). Saturating arithmetic: the
// exponential shift is capped before it can overflow, relying on the min()
// clamp against MaxDelay to keep the result sane.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	var d time.Duration
	switch r.Strategy {
	case Exponential:
		shift := attempt - 1
		if shift > 62 { // guards against overflowing int64 in the shift below
			return r.MaxDelay
		}
		d = r.InitialDelay * (1 << uint(shift))
		if d <= 0 { // overflow wrapped negative or zero; saturate to max
			return r.MaxDelay
		}
	case Linear:
		d = r.InitialDelay * time.Duration(attempt)
		if d <= 0 {
			return r.MaxDelay
		}
	case Fixed:
		d = r.InitialDelay
	default:
		d = r.InitialDelay
	}
	if d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// ParseDuration accepts "<digits>[ms|s|m]"; a bare integer defaults to
// milliseconds (spec.md §6).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	unit := time.Millisecond
	numPart := s
	switch {
	case strings.HasSuffix(s, "ms"):
		numPart = strings.TrimSuffix(s, "ms")
		unit = time.Millisecond
	case strings.HasSuffix(s, "s"):
		numPart = strings.TrimSuffix(s, "s")
		unit = time.Second
	case strings.HasSuffix(s, "m"):
		numPart = strings.TrimSuffix(s, "m")
		unit = time.Minute
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * unit, nil
}

// FormatDuration renders d back into the canonical "<digits><unit>" form
// ParseDuration accepts, choosing the coarsest unit that divides evenly so
// that parse(format(d)) == d for representable units (spec.md §8 round-trip
// law).
func FormatDuration(d time.Duration) string {
	switch {
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}

// RetryFromProperties binds a RetryConfig from the "error.retry.*" property
// namespace (spec.md §6, §13): max-attempts, backoff, initial-delay, max-delay.
func RetryFromProperties(props map[string]string) (*RetryConfig, error) {
	maxAttempts := 3
	if v, ok := props["error.retry.max-attempts"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errs.NewValidation("RetryFromProperties", "error.retry.max-attempts", v, err)
		}
		maxAttempts = n
	}

	strategy := Exponential
	if v, ok := props["error.retry.backoff"]; ok {
		switch strings.ToLower(v) {
		case "exponential":
			strategy = Exponential
		case "linear":
			strategy = Linear
		case "fixed":
			strategy = Fixed
		default:
			return nil, errs.NewValidation("RetryFromProperties", "error.retry.backoff", v,
				fmt.Errorf("unknown backoff strategy %q", v))
		}
	}

	initial := 100 * time.Millisecond
	if v, ok := props["error.retry.initial-delay"]; ok {
		d, err := ParseDuration(v)
		if err != nil {
			return nil, errs.NewValidation("RetryFromProperties", "error.retry.initial-delay", v, err)
		}
		initial = d
	}

	maxDelay := 30 * time.Second
	if v, ok := props["error.retry.max-delay"]; ok {
		d, err := ParseDuration(v)
		if err != nil {
			return nil, errs.NewValidation("RetryFromProperties", "error.retry.max-delay", v, err)
		}
		maxDelay = d
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	return NewRetryConfig(maxAttempts, strategy, initial, maxDelay)
}
