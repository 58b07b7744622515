package connector

import (
	"github.com/eventflux-io/engine/internal/core/config"
)

// ErrorAction is the decision a SourceErrorContext renders for one callback
// failure (spec.md §4.I).
type ErrorAction int

const (
	// ActionRetry asks the caller to retry after Delay.
	ActionRetry ErrorAction = iota
	// ActionDrop acknowledges the message without retrying.
	ActionDrop
	// ActionSendToDlq acknowledges the message after publishing it to the
	// configured dead-letter junction.
	ActionSendToDlq
	// ActionFail stops the source entirely.
	ActionFail
)

// SourceErrorContext binds a source's "error.*" WITH-clause properties into
// a retry policy plus an optional dead-letter stream name, and decides the
// ErrorAction for a given failed attempt (spec.md §4.I, §13).
type SourceErrorContext struct {
	Retry      *config.RetryConfig
	DlqStream  string // empty if none configured
	streamName string
}

// NewSourceErrorContext binds a SourceErrorContext from a stream's raw
// property map, reading "error.retry.*" per config.RetryFromProperties and
// "error.dlq-stream" for the dead-letter target.
func NewSourceErrorContext(streamName string, props map[string]string) (*SourceErrorContext, error) {
	retry, err := config.RetryFromProperties(props)
	if err != nil {
		return nil, err
	}
	return &SourceErrorContext{
		Retry:      retry,
		DlqStream:  props["error.dlq-stream"],
		streamName: streamName,
	}, nil
}

// Decide returns the action for the given 1-based attempt number and the
// delay to honor when the action is ActionRetry.
func (c *SourceErrorContext) Decide(attempt int) (ErrorAction, int64) {
	if attempt < c.Retry.MaxAttempts {
		return ActionRetry, int64(c.Retry.Delay(attempt))
	}
	if c.DlqStream != "" {
		return ActionSendToDlq, 0
	}
	return ActionFail, 0
}

// StreamName reports the stream this error context was bound for.
func (c *SourceErrorContext) StreamName() string { return c.streamName }
