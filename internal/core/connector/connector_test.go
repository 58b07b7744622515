package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflux-io/engine/internal/core/config"
)

func TestSourceErrorContext_RetriesThenFails(t *testing.T) {
	errCtx, err := NewSourceErrorContext("Orders", map[string]string{
		"error.retry.max-attempts":  "2",
		"error.retry.initial-delay": "1ms",
		"error.retry.max-delay":     "2ms",
	})
	require.NoError(t, err)

	action, _ := errCtx.Decide(1)
	assert.Equal(t, ActionRetry, action)

	action, _ = errCtx.Decide(2)
	assert.Equal(t, ActionFail, action)
}

func TestSourceErrorContext_SendsToDlqWhenConfigured(t *testing.T) {
	errCtx, err := NewSourceErrorContext("Orders", map[string]string{
		"error.retry.max-attempts": "1",
		"error.dlq-stream":         "OrdersDlq",
	})
	require.NoError(t, err)

	action, _ := errCtx.Decide(1)
	assert.Equal(t, ActionSendToDlq, action)
}

func TestRetryingCallback_RetriesUntilSuccess(t *testing.T) {
	errCtx, err := NewSourceErrorContext("Orders", map[string]string{
		"error.retry.max-attempts":  "5",
		"error.retry.initial-delay": "1ms",
		"error.retry.max-delay":     "2ms",
	})
	require.NoError(t, err)

	attempts := 0
	inner := func(ctx context.Context, raw []byte) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}
	rc := NewRetryingCallback(inner, errCtx, nil)
	require.NoError(t, rc.Call(context.Background(), []byte("x")))
	assert.Equal(t, 3, attempts)
}

func TestRetryingCallback_FailsWhenAttemptsExhaustedAndNoDlq(t *testing.T) {
	retry, err := config.NewRetryConfig(1, config.Fixed, time.Millisecond, time.Millisecond)
	require.NoError(t, err)
	errCtx := &SourceErrorContext{Retry: retry}

	calls := 0
	inner := func(ctx context.Context, raw []byte) error {
		calls++
		return errors.New("boom")
	}
	rc := NewRetryingCallback(inner, errCtx, nil)
	err = rc.Call(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRegistry_CreateSourceUnknownExtensionErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateSource("nope", "Orders", nil)
	require.Error(t, err)
}

func TestRegistry_RegisterIsIdempotentOverwrite(t *testing.T) {
	r := NewRegistry()
	first := func(streamName string, props map[string]string) (Source, error) { return nil, errors.New("first") }
	second := func(streamName string, props map[string]string) (Source, error) { return nil, errors.New("second") }
	r.RegisterSourceFactory("ws", first)
	r.RegisterSourceFactory("ws", second)

	_, err := r.CreateSource("ws", "Orders", nil)
	require.Error(t, err)
	assert.Equal(t, "second", err.Error())
}
