// Package grpc implements the gRPC transport for cozmoagent.
//
// This transport exposes the cozmoagent.v1.Stage service, which accepts a
// batch of text units and answers with the dispatch result, plus the
// standard gRPC health service. Messages are JSON-encoded through a codec
// registered for the "json" content-subtype, so no generated code is needed.
// It is the preferred transport for low-latency links to robots and edge
// recognizers. As a sender it calls cozmoagent.v1.Actuator/Execute on targets.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/transport"
)

const (
	stageService    = "cozmoagent.v1.Stage"
	executeMethod   = "/cozmoagent.v1.Actuator/Execute"
	ProcessMethod   = "/" + stageService + "/Process"
	contentSubtype  = codecName
	authMetadataKey = "authorization"
)

// ProcessRequest is the request message of Stage/Process.
type ProcessRequest struct {
	Units iu.Batch `json:"units"`
}

// stageServer is the service implementation contract checked by RegisterService.
type stageServer interface {
	Process(ctx context.Context, req *ProcessRequest) (*message.DispatchResult, error)
}

type server struct {
	handler transport.Handler
}

func (s *server) Process(ctx context.Context, req *ProcessRequest) (*message.DispatchResult, error) {
	return s.handler(ctx, req.Units)
}

var stageServiceDesc = grpc.ServiceDesc{
	ServiceName: stageService,
	HandlerType: (*stageServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Process",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(ProcessRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(stageServer).Process(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProcessMethod}
				return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
					return srv.(stageServer).Process(ctx, req.(*ProcessRequest))
				})
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cozmoagent/v1/stage",
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port, conns: make(map[string]*grpc.ClientConn)}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Register installs the stage and health services on srv.
func (t *Transport) Register(srv *grpc.Server, handler transport.Handler) {
	srv.RegisterService(&stageServiceDesc, &server{handler: handler})
	t.health = health.NewServer()
	healthpb.RegisterHealthServer(srv, t.health)
	t.health.SetServingStatus(stageService, healthpb.HealthCheckResponse_SERVING)
}

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer()
	t.Register(t.server, handler)

	slog.Info("grpc transport listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Send delivers a payload to a gRPC actuator target.
func (t *Transport) Send(ctx context.Context, target message.Target, payload []byte) error {
	conn, err := t.dial(target.Endpoint)
	if err != nil {
		return fmt.Errorf("grpc send: %w", err)
	}

	opts := []grpc.CallOption{grpc.CallContentSubtype(contentSubtype)}
	if target.Token != "" {
		opts = append(opts, grpc.PerRPCCredentials(bearer(target.Token)))
	}

	var ack json.RawMessage
	if err := conn.Invoke(ctx, executeMethod, json.RawMessage(payload), &ack, opts...); err != nil {
		return fmt.Errorf("grpc send: %w", err)
	}
	slog.Debug("grpc send success", "target", target.Endpoint, "bytes", len(payload))
	return nil
}

func (t *Transport) dial(endpoint string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[endpoint]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	t.conns[endpoint] = conn
	return conn, nil
}

// Close gracefully stops the gRPC server and closes target connections.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for endpoint, conn := range t.conns {
		_ = conn.Close()
		delete(t.conns, endpoint)
	}
	return nil
}

// bearer attaches a token to each call. Insecure links are allowed because
// actuators usually sit on the robot's local network.
type bearer string

func (b bearer) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{authMetadataKey: "Bearer " + string(b)}, nil
}

func (b bearer) RequireTransportSecurity() bool { return false }
