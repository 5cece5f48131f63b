// Package transport defines the interface for pluggable transports.
//
// Each transport (HTTP/WebSocket, gRPC, MQTT) delivers upstream batches of
// text units to the dispatcher and can deliver command payloads to downstream
// actuator targets. The dispatcher doesn't care how units arrive; it only
// works with the Transport contract.
package transport

import (
	"context"

	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/message"
)

// Handler processes one upstream batch and returns the dispatch result.
// The dispatcher provides this handler to each transport.
type Handler func(ctx context.Context, batch iu.Batch) (*message.DispatchResult, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http", "mqtt").
	Name() string

	// Listen starts accepting incoming batches and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Send delivers a payload to a target using this transport's protocol.
	Send(ctx context.Context, target message.Target, payload []byte) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
