package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflux-io/engine/internal/core/config"
	"github.com/eventflux-io/engine/internal/core/connector"
	"github.com/eventflux-io/engine/internal/core/event"
	"github.com/eventflux-io/engine/internal/core/junction"
	"github.com/eventflux-io/engine/internal/core/persistence/memstore"
)

type fakeSource struct {
	started  chan connector.DataCallback
	stopped  chan struct{}
	validErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{started: make(chan connector.DataCallback, 1), stopped: make(chan struct{}, 1)}
}

func (f *fakeSource) Start(ctx context.Context, cb connector.DataCallback) error {
	f.started <- cb
	return nil
}
func (f *fakeSource) Stop() error                                    { f.stopped <- struct{}{}; return nil }
func (f *fakeSource) ValidateConnectivity(ctx context.Context) error { return f.validErr }
func (f *fakeSource) Clone() connector.Source                        { return newFakeSource() }

func strp(s string) *string { return &s }

func TestAppRuntime_RegisterHandlerIsIdempotent(t *testing.T) {
	reg := connector.NewRegistry()
	src := newFakeSource()
	calls := 0
	reg.RegisterSourceFactory("fake", func(streamName string, props map[string]string) (connector.Source, error) {
		calls++
		return src, nil
	})

	r := New("app1", reg, memstore.New(), nil)
	cfg := &config.StreamTypeConfig{Kind: config.Source, Extension: strp("fake"), Format: strp("json"), Properties: map[string]string{}}

	require.NoError(t, r.RegisterHandler("Orders", cfg, func(raw []byte) (*event.StreamEvent, error) {
		return event.NewStreamEvent(1, []any{string(raw)}), nil
	}))
	require.NoError(t, r.RegisterHandler("Orders", cfg, nil))
	assert.Equal(t, 1, calls, "second registration for the same stream must be a no-op")
}

func TestAppRuntime_StartWiresSourceCallbackIntoJunction(t *testing.T) {
	reg := connector.NewRegistry()
	src := newFakeSource()
	reg.RegisterSourceFactory("fake", func(streamName string, props map[string]string) (connector.Source, error) {
		return src, nil
	})

	r := New("app1", reg, memstore.New(), nil)
	j := junction.New(junction.Config{Mode: junction.Sync})
	r.RegisterJunction("Orders", j)

	received := make(chan *event.StreamEvent, 1)
	j.Subscribe(subscriberFunc{id: "sink", handle: func(se *event.StreamEvent) error {
		received <- se
		return nil
	}})

	cfg := &config.StreamTypeConfig{Kind: config.Source, Extension: strp("fake"), Format: strp("json"), Properties: map[string]string{}}
	require.NoError(t, r.RegisterHandler("Orders", cfg, func(raw []byte) (*event.StreamEvent, error) {
		return event.NewStreamEvent(1, []any{string(raw)}), nil
	}))

	require.NoError(t, r.Start(context.Background()))
	cb := <-src.started
	require.NoError(t, cb(context.Background(), []byte("hello")))

	select {
	case se := <-received:
		assert.Equal(t, []any{"hello"}, se.BeforeWindowData)
	case <-time.After(time.Second):
		t.Fatal("event never reached the junction subscriber")
	}

	require.NoError(t, r.Stop())
	<-src.stopped
}

func TestAppRuntime_StartAbortsWhenEveryValidationFails(t *testing.T) {
	reg := connector.NewRegistry()
	src := newFakeSource()
	src.validErr = assert.AnError
	reg.RegisterSourceFactory("fake", func(streamName string, props map[string]string) (connector.Source, error) {
		return src, nil
	})

	r := New("app1", reg, memstore.New(), nil)
	cfg := &config.StreamTypeConfig{Kind: config.Source, Extension: strp("fake"), Format: strp("json"), Properties: map[string]string{}}
	require.NoError(t, r.RegisterHandler("Orders", cfg, func(raw []byte) (*event.StreamEvent, error) { return nil, nil }))

	err := r.Start(context.Background())
	require.Error(t, err)
}

func TestAppRuntime_PersistAndRestoreRevisionRoundTrip(t *testing.T) {
	r := New("app1", connector.NewRegistry(), memstore.New(), nil)

	report, err := r.Persist(context.Background(), []byte("snapshot-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, int64(1), r.Revision())

	var applied []byte
	err = r.RestoreRevision(context.Background(), 1, func(blob []byte) error {
		applied = blob
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot-1"), applied)
}

func TestAppRuntime_RestoreRevisionWaitsForActiveThreadsToDrain(t *testing.T) {
	r := New("app1", connector.NewRegistry(), memstore.New(), nil)
	_, err := r.Persist(context.Background(), []byte("snap"))
	require.NoError(t, err)

	r.BeginProcessing()
	restoreDone := make(chan error, 1)
	go func() {
		restoreDone <- r.RestoreRevision(context.Background(), 1, func([]byte) error { return nil })
	}()

	select {
	case <-restoreDone:
		t.Fatal("restore must not proceed while a thread is still active")
	case <-time.After(50 * time.Millisecond):
	}

	r.EndProcessing()
	select {
	case err := <-restoreDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("restore never proceeded after the active thread ended")
	}
}

func TestAppRuntime_BeginProcessingBlocksWhileRestoreInFlight(t *testing.T) {
	r := New("app1", connector.NewRegistry(), memstore.New(), nil)
	_, err := r.Persist(context.Background(), []byte("snap"))
	require.NoError(t, err)

	restoreEntered := make(chan struct{})
	restoreMayReturn := make(chan struct{})
	restoreDone := make(chan error, 1)
	go func() {
		restoreDone <- r.RestoreRevision(context.Background(), 1, func([]byte) error {
			close(restoreEntered)
			<-restoreMayReturn
			return nil
		})
	}()
	<-restoreEntered

	beganProcessing := make(chan struct{})
	go func() {
		r.BeginProcessing()
		close(beganProcessing)
		r.EndProcessing()
	}()

	select {
	case <-beganProcessing:
		t.Fatal("a new processing thread must not start while a restore is in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(restoreMayReturn)
	require.NoError(t, <-restoreDone)

	select {
	case <-beganProcessing:
	case <-time.After(time.Second):
		t.Fatal("new processing must proceed once the restore has completed")
	}
}

type subscriberFunc struct {
	id     string
	handle func(*event.StreamEvent) error
}

func (s subscriberFunc) ID() string                         { return s.id }
func (s subscriberFunc) Handle(ev *event.StreamEvent) error { return s.handle(ev) }
