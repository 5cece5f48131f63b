package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/cozmoagent/internal/catalog"
	"github.com/nadzzz/cozmoagent/internal/config"
	"github.com/nadzzz/cozmoagent/internal/message"
)

type toolCall struct {
	name, arguments string
}

// chatServer answers every completion with the given tool calls and content.
// The returned func yields the last request received.
func chatServer(t *testing.T, content string, calls ...toolCall) (*httptest.Server, func() chatRequest) {
	t.Helper()
	var (
		mu  sync.Mutex
		got chatRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		got = req
		mu.Unlock()

		toolCalls := make([]map[string]any, len(calls))
		for i, c := range calls {
			toolCalls[i] = map[string]any{
				"id":       "call_" + c.name,
				"type":     "function",
				"function": map[string]any{"name": c.name, "arguments": c.arguments},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": content, "tool_calls": toolCalls},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, func() chatRequest {
		mu.Lock()
		defer mu.Unlock()
		return got
	}
}

func newPlanner(url string) *Planner {
	return New(config.OpenAIConfig{
		BaseURL:     url + "/",
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.2,
		Timeout:     5 * time.Second,
	})
}

func steps(t *testing.T, reply message.Reply) []message.Command {
	t.Helper()
	cmds, err := reply.Steps()
	require.NoError(t, err)
	return cmds
}

func TestPlanToolCalls(t *testing.T) {
	srv, lastRequest := chatServer(t, "",
		toolCall{catalog.MoveStraight, `{"distance_mm": 100}`},
		toolCall{catalog.TurnInPlace, `{"angle_degrees": 90}`},
	)
	p := newPlanner(srv.URL)

	reply, err := p.Plan(context.Background(), "move forward 10cm then turn left")
	require.NoError(t, err)

	cmds := steps(t, reply)
	require.Len(t, cmds, 2)
	assert.Equal(t, catalog.MoveStraight, cmds[0].Decision)
	assert.Equal(t, map[string]any{"distance_mm": float64(100), "speed_mmps": float64(50)}, cmds[0].Concepts)
	assert.Equal(t, catalog.TurnInPlace, cmds[1].Decision)

	req := lastRequest()
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, "required", req.ToolChoice)
	assert.Len(t, req.Tools, len(catalog.Names()))
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "move forward 10cm then turn left", req.Messages[1].Content)
}

func TestPlanRejectedCallAsksForClarification(t *testing.T) {
	srv, _ := chatServer(t, "", toolCall{catalog.MoveStraight, `{}`})
	p := newPlanner(srv.URL)

	reply, err := p.Plan(context.Background(), "move")
	require.NoError(t, err)

	cmds := steps(t, reply)
	require.Len(t, cmds, 1)
	assert.Equal(t, catalog.Speak, cmds[0].Decision)
	assert.Equal(t, "How far should I drive? (I need the distance.)", cmds[0].Concepts["text"])
}

func TestPlanUnknownToolPassesThrough(t *testing.T) {
	srv, _ := chatServer(t, "", toolCall{"pop-a-wheelie", `{"height": 3}`})
	p := newPlanner(srv.URL)

	reply, err := p.Plan(context.Background(), "do a trick")
	require.NoError(t, err)

	cmds := steps(t, reply)
	require.Len(t, cmds, 1)
	assert.Equal(t, "pop-a-wheelie", cmds[0].Decision)
	assert.Equal(t, map[string]any{"height": float64(3)}, cmds[0].Concepts)
}

func TestPlanContentFallback(t *testing.T) {
	srv, _ := chatServer(t, "Which way should I turn?")
	p := newPlanner(srv.URL)

	reply, err := p.Plan(context.Background(), "turn")
	require.NoError(t, err)

	cmds := steps(t, reply)
	require.Len(t, cmds, 1)
	assert.Equal(t, catalog.Speak, cmds[0].Decision)
	assert.Equal(t, "Which way should I turn?", cmds[0].Concepts["text"])
}

func TestPlanErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newPlanner(srv.URL).Plan(context.Background(), "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 429")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices": []}`))
		}))
		defer srv.Close()

		_, err := newPlanner(srv.URL).Plan(context.Background(), "hi")
		assert.Error(t, err)
	})

	t.Run("empty content", func(t *testing.T) {
		srv, _ := chatServer(t, "  ")
		_, err := newPlanner(srv.URL).Plan(context.Background(), "hi")
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		srv, _ := chatServer(t, "hello")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newPlanner(srv.URL).Plan(ctx, "hi")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
