package eventflux

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflux-io/engine/internal/core/connector"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/junction"
	"github.com/eventflux-io/engine/internal/core/persistence/memstore"
)

func TestApp_EmitReachesSubscribedProcessor(t *testing.T) {
	a := New(Options{AppID: "orders-app", Store: memstore.New()})
	j := a.AddStream("Orders", junction.Config{Mode: junction.Sync})

	received := make(chan *event.StreamEvent, 1)
	j.Subscribe(recordingSubscriber{id: "probe", out: received})

	require.NoError(t, a.Emit("Orders", event.NewStreamEvent(1, []any{"symbol", 100.0})))

	select {
	case se := <-received:
		assert.Equal(t, []any{"symbol", 100.0}, se.BeforeWindowData)
	case <-time.After(time.Second):
		t.Fatal("emitted event never reached the subscriber")
	}
}

func TestApp_PersistAndRestoreRevisionRoundTrip(t *testing.T) {
	a := New(Options{AppID: "orders-app", Store: memstore.New()})

	report, err := a.Persist(context.Background(), []byte("snap-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)

	var applied []byte
	require.NoError(t, a.RestoreRevision(context.Background(), 1, func(blob []byte) error {
		applied = blob
		return nil
	}))
	assert.Equal(t, []byte("snap-1"), applied)
	assert.Equal(t, int64(1), a.Revision())
}

func TestApp_RegisterSourceExtensionOverridesBuiltin(t *testing.T) {
	a := New(Options{AppID: "orders-app", Store: memstore.New()})
	called := false
	a.RegisterSourceExtension("websocket", func(streamName string, props map[string]string) (connector.Source, error) {
		called = true
		return nil, nil
	})

	_, err := a.registry.CreateSource("websocket", "Orders", nil)
	require.NoError(t, err)
	assert.True(t, called, "custom factory must replace the built-in websocket source factory")
}

type recordingSubscriber struct {
	id  string
	out chan *event.StreamEvent
}

func (s recordingSubscriber) ID() string { return s.id }
func (s recordingSubscriber) Handle(ev *event.StreamEvent) error {
	s.out <- ev
	return nil
}
