package controlplane

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eventflux-io/engine/internal/core/runtime"
)

type fakeHandler struct {
	startErr    error
	revision    int64
	persistBlob []byte
}

func (f *fakeHandler) Start(ctx context.Context) error { return f.startErr }
func (f *fakeHandler) Stop() error                     { return nil }
func (f *fakeHandler) Persist(ctx context.Context, blob []byte) (runtime.PersistReport, error) {
	f.persistBlob = blob
	f.revision++
	return runtime.PersistReport{SuccessCount: 1}, nil
}
func (f *fakeHandler) RestoreRevision(ctx context.Context, revision int64, apply func([]byte) error) error {
	return apply(f.persistBlob)
}
func (f *fakeHandler) Revision() int64 { return f.revision }

func TestServer_StartReportsStatus(t *testing.T) {
	h := &fakeHandler{}
	s := NewServer(h, nil)

	out, err := s.start(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, "started", out.Fields["status"].GetStringValue())
}

func TestServer_PersistRoundTripsBlob(t *testing.T) {
	h := &fakeHandler{}
	s := NewServer(h, nil)

	req, err := structpb.NewStruct(map[string]any{"blob_base64": "snapshot-bytes"})
	require.NoError(t, err)

	out, err := s.persist(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.Fields["success_count"].GetNumberValue())
	assert.Equal(t, []byte("snapshot-bytes"), h.persistBlob)
}

func TestServer_RestoreRevisionInvokesBoundApply(t *testing.T) {
	var applied []byte
	h := &fakeHandler{persistBlob: []byte("snap")}
	s := NewServer(h, func(blob []byte) error {
		applied = blob
		return nil
	})

	req, err := structpb.NewStruct(map[string]any{"revision": float64(1)})
	require.NoError(t, err)

	out, err := s.restoreRevision(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "restored", out.Fields["status"].GetStringValue())
	assert.Equal(t, []byte("snap"), applied)
}

func TestServer_PersistMissingFieldErrors(t *testing.T) {
	h := &fakeHandler{}
	s := NewServer(h, nil)

	_, err := s.persist(context.Background(), &structpb.Struct{})
	require.Error(t, err)
}

func TestServer_StatusReportsCurrentRevision(t *testing.T) {
	h := &fakeHandler{revision: 3}
	s := NewServer(h, nil)

	out, err := s.status(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, float64(3), out.Fields["revision"].GetNumberValue())
}
