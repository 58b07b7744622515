package connector

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eventflux-io/engine/internal/core/errs"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/junction"
)

// RetryingCallback wraps a DataCallback with the source retry loop of
// spec.md §4.I: on failure, errCtx.Decide renders an ErrorAction and the
// loop retries, drops, forwards to a dead-letter junction, or fails outright.
// The pure backoff *formula* stays hand-rolled in config.RetryConfig; here
// cenkalti/backoff/v4's Ticker drives the actual wait between attempts, the
// idiomatic way a Go connector paces a retry loop.
type RetryingCallback struct {
	Inner  DataCallback
	ErrCtx *SourceErrorContext
	Dlq    *junction.Junction // nil if no dead-letter target configured
}

func NewRetryingCallback(inner DataCallback, errCtx *SourceErrorContext, dlq *junction.Junction) *RetryingCallback {
	return &RetryingCallback{Inner: inner, ErrCtx: errCtx, Dlq: dlq}
}

// Call drives raw through Inner, retrying per ErrCtx.Decide until the
// callback succeeds, the message is dropped/forwarded to the DLQ, or the
// source is told to fail.
func (r *RetryingCallback) Call(ctx context.Context, raw []byte) error {
	attempt := 0
	for {
		err := r.Inner(ctx, raw)
		if err == nil {
			return nil
		}
		attempt++

		action, delayMs := r.ErrCtx.Decide(attempt)
		switch action {
		case ActionRetry:
			b := backoff.NewConstantBackOff(time.Duration(delayMs))
			t := backoff.NewTicker(b)
			// A backoff Ticker sends its first tick immediately; the wait
			// before the next attempt is the interval to the second tick.
			<-t.C
			select {
			case <-t.C:
				t.Stop()
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
			continue
		case ActionDrop:
			return nil
		case ActionSendToDlq:
			if r.Dlq != nil {
				// publishing to the DLQ is best-effort: the message is still
				// considered acknowledged even if the DLQ publish itself fails.
				_ = r.Dlq.SendEvent(event.NewStreamEvent(0, []any{raw}))
			}
			return nil
		case ActionFail:
			return errs.New("RetryingCallback.Call", errs.ConnectionUnavailable, err)
		default:
			return err
		}
	}
}
