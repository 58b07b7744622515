// Package controlplane exposes the application lifecycle (spec.md §4.H) as
// a gRPC service: Start/Shutdown/Persist/RestoreRevision/Status, the natural
// Go-native analogue of an embedding host driving the engine out-of-process,
// repurposing the teacher's own google.golang.org/grpc +
// google.golang.org/protobuf dependencies (internal/grpc-app) from an event
// store RPC façade.
//
// Request/response payloads use google.golang.org/protobuf's well-known
// structpb.Struct rather than a hand-maintained generated .pb.go: this
// module is built without ever invoking protoc (no toolchain may run while
// building it), and structpb.Struct is itself a pre-generated protobuf
// message shipped inside google.golang.org/protobuf/types/known/structpb,
// so RPCs still marshal over the wire with the real protobuf codec.
package controlplane

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eventflux-io/engine/internal/core/runtime"
)

// Handler is the subset of *runtime.AppRuntime the control service drives.
type Handler interface {
	Start(ctx context.Context) error
	Stop() error
	Persist(ctx context.Context, blob []byte) (runtime.PersistReport, error)
	RestoreRevision(ctx context.Context, revision int64, apply func([]byte) error) error
	Revision() int64
}

// Server implements the EventFluxControl gRPC service over a single
// Handler (one application runtime per server instance, matching the
// teacher's one-store-per-server shape in internal/grpc-app/server).
//
// apply restores processor state from a loaded snapshot blob; it is bound
// at construction rather than supplied per RPC because it closes over
// process-local window/pattern processor state that has no wire
// representation a remote caller could send.
type Server struct {
	rt    Handler
	apply func([]byte) error
}

func NewServer(rt Handler, apply func([]byte) error) *Server {
	return &Server{rt: rt, apply: apply}
}

func (s *Server) start(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.rt.Start(ctx); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"status": "started"})
}

func (s *Server) shutdown(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.rt.Stop(); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"status": "stopped"})
}

func (s *Server) persist(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	blobField, ok := req.Fields["blob_base64"]
	if !ok {
		return nil, fmt.Errorf("controlplane.persist: missing blob_base64 field")
	}
	report, err := s.rt.Persist(ctx, []byte(blobField.GetStringValue()))
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"success_count": float64(report.SuccessCount),
		"fail_count":    float64(report.FailCount),
	})
}

func (s *Server) restoreRevision(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	revField, ok := req.Fields["revision"]
	if !ok {
		return nil, fmt.Errorf("controlplane.restoreRevision: missing revision field")
	}
	revision := int64(revField.GetNumberValue())
	if err := s.rt.RestoreRevision(ctx, revision, s.apply); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"status": "restored", "revision": float64(revision)})
}

func (s *Server) status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"revision": float64(s.rt.Revision())})
}

func decodeStruct(dec func(any) error) (*structpb.Struct, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ServiceDesc is registered on a *grpc.Server via
// grpcServer.RegisterService(&controlplane.ServiceDesc, srv).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "eventflux.control.v1.EventFluxControl",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: startHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
		{MethodName: "Persist", Handler: persistHandler},
		{MethodName: "RestoreRevision", Handler: restoreRevisionHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventflux/control.proto",
}

func startHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeStruct(dec)
	if err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.start(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eventflux.control.v1.EventFluxControl/Start"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.start(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func shutdownHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeStruct(dec)
	if err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.shutdown(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eventflux.control.v1.EventFluxControl/Shutdown"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.shutdown(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func persistHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeStruct(dec)
	if err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.persist(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eventflux.control.v1.EventFluxControl/Persist"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.persist(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func restoreRevisionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeStruct(dec)
	if err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.restoreRevision(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eventflux.control.v1.EventFluxControl/RestoreRevision"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.restoreRevision(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeStruct(dec)
	if err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.status(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/eventflux.control.v1.EventFluxControl/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.status(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

// Client is a thin wrapper over a *grpc.ClientConn for the Start and Status
// control RPCs; it has no methods for Shutdown, Persist or RestoreRevision.
type Client struct {
	conn *grpc.ClientConn
}

func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Start(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, "/eventflux.control.v1.EventFluxControl/Start", &structpb.Struct{}, out)
	return out, err
}

func (c *Client) Status(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, "/eventflux.control.v1.EventFluxControl/Status", &structpb.Struct{}, out)
	return out, err
}
