// Package http implements the HTTP/WebSocket transport for cozmoagent.
//
// This transport exposes a REST API for one-shot batches, a WebSocket
// endpoint for streaming recognizer output, read-only views of the tool
// catalog and the command journal, and Swagger UI. As a sender it POSTs
// command payloads to HTTP actuator targets.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/cozmoagent/docs"
	"github.com/nadzzz/cozmoagent/internal/catalog"
	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/transport"
)

// BatchRequest is the body of POST /units and of every WebSocket frame.
type BatchRequest struct {
	Units iu.Batch `json:"units"`
}

// CommandLister lists recently emitted command units.
type CommandLister interface {
	Recent(ctx context.Context, limit int) ([]iu.CommandUnit, error)
}

// Transport implements transport.Transport over HTTP and WebSocket.
type Transport struct {
	port     int
	server   *http.Server
	client   *http.Client
	journal  CommandLister
	upgrader websocket.Upgrader
}

// New creates a new HTTP transport on the given port. journal may be nil.
func New(port int, journal CommandLister) *Transport {
	return &Transport{
		port:    port,
		client:  &http.Client{Timeout: 10 * time.Second},
		journal: journal,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Routes builds the request multiplexer around handler.
func (t *Transport) Routes(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	// POST /units accepts a batch of text units and returns the dispatch result.
	mux.HandleFunc("POST /units", func(w http.ResponseWriter, r *http.Request) {
		t.handleUnits(w, r, handler)
	})

	// GET /ws streams recognizer output, one batch per frame.
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		t.handleStream(w, r, handler)
	})

	mux.HandleFunc("GET /catalog", t.handleCatalog)
	mux.HandleFunc("GET /commands", t.handleCommands)

	// Swagger UI for the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleUnits processes a POST /units request.
//
// @Summary     Interpret a batch of recognized speech
// @Description Accepts a batch of incremental text units. When the batch carries committed text and no plan
// @Description is in flight, the planner is consulted and the resulting command units are routed to the
// @Description configured actuator targets. Batches arriving while a plan is in flight are dropped.
// @Tags        units
// @Accept      json
// @Produce     json
// @Param       batch  body      BatchRequest            true  "Text units in recognizer order"
// @Success     200    {object}  message.DispatchResult  "Emitted command units"
// @Failure     400    {string}  string                  "Invalid request body"
// @Failure     500    {string}  string                  "Internal processing error"
// @Router      /units [post]
func (t *Transport) handleUnits(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req BatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := handler(r.Context(), req.Units)
	if err != nil {
		slog.Error("dispatch failed", "error", err)
		http.Error(w, "dispatch error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, result)
}

// handleStream serves a WebSocket session. Frames are handled concurrently so
// that input arriving during a plan meets the stage's overlap policy, exactly
// as input from separate clients would.
func (t *Transport) handleStream(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	// In-flight frames are cancelled first, then awaited.
	defer wg.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := slog.With("remote", r.RemoteAddr)
	logger.Info("stream opened")

	for {
		var req BatchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("stream read failed", "error", err)
			}
			logger.Info("stream closed")
			return
		}

		wg.Add(1)
		go func(batch iu.Batch) {
			defer wg.Done()
			result, err := handler(ctx, batch)
			if err != nil {
				logger.Error("dispatch failed", "error", err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			if len(result.Commands) == 0 && !result.Dropped && result.Error == "" {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteJSON(result); err != nil {
				logger.Warn("stream write failed", "error", err)
			}
		}(req.Units)
	}
}

// handleCatalog serves the tool catalog.
//
// @Summary     List robot actions
// @Tags        catalog
// @Produce     json
// @Success     200  {array}  catalog.Schema
// @Router      /catalog [get]
func (t *Transport) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, catalog.Schemas())
}

// handleCommands serves the most recent journal entries.
//
// @Summary     Recently emitted command units
// @Tags        commands
// @Produce     json
// @Param       limit  query     int  false  "Maximum entries (default 50)"
// @Success     200    {array}   iu.CommandUnit
// @Failure     404    {string}  string  "Journal disabled"
// @Router      /commands [get]
func (t *Transport) handleCommands(w http.ResponseWriter, r *http.Request) {
	if t.journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	units, err := t.journal.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "journal error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if units == nil {
		units = []iu.CommandUnit{}
	}
	writeJSON(w, units)
}

// Send delivers a payload to an HTTP target via POST.
func (t *Transport) Send(ctx context.Context, target message.Target, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if target.Token != "" {
		req.Header.Set("Authorization", "Bearer "+target.Token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("http send: status %d: %s", resp.StatusCode, body)
	}

	slog.Debug("http send success", "target", target.Endpoint, "status", resp.StatusCode)
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
