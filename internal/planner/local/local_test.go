package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/cozmoagent/internal/config"
)

func TestPlanOllama(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": `{"decision":"move-head","concepts":{"rate_rad_s":1}}`,
			"done":     true,
		})
	}))
	defer srv.Close()

	p := New(config.LocalConfig{Endpoint: srv.URL + "/api/generate", Model: "llama3"})
	reply, err := p.Plan(context.Background(), "look up")
	require.NoError(t, err)
	assert.JSONEq(t, `{"decision":"move-head","concepts":{"rate_rad_s":1}}`, string(reply))

	body := <-bodies
	assert.Equal(t, "llama3", body["model"])
	assert.Equal(t, "look up", body["prompt"])
	assert.Equal(t, "json", body["format"])
	assert.Equal(t, false, body["stream"])
	assert.Contains(t, body["system"], "move-head")
}

type chatBody struct {
	Messages []map[string]string `json:"messages"`
}

func TestPlanChatCompletions(t *testing.T) {
	bodies := make(chan chatBody, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": "```json\n{\"steps\":[{\"decision\":\"scan-surroundings\",\"concepts\":{}}]}\n```"},
			}},
		})
	}))
	defer srv.Close()

	p := New(config.LocalConfig{Endpoint: srv.URL + "/v1/chat/completions", Model: "qwen"})
	reply, err := p.Plan(context.Background(), "look around")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"decision":"scan-surroundings","concepts":{}}]`, string(reply))

	body := <-bodies
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0]["role"])
	assert.Equal(t, "look around", body.Messages[1]["content"])
}

func TestPlanFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(config.LocalConfig{Endpoint: srv.URL + "/api/generate"}).Plan(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response": ""}`))
	}))
	defer empty.Close()

	_, err = New(config.LocalConfig{Endpoint: empty.URL + "/api/generate"}).Plan(context.Background(), "hi")
	assert.Error(t, err)
}

func TestExtractContent(t *testing.T) {
	assert.Equal(t, "a", extractContent([]byte(`{"choices":[{"message":{"content":"a"}}]}`)))
	assert.Equal(t, "b", extractContent([]byte(`{"response":"b"}`)))
	assert.Equal(t, "raw text", extractContent([]byte("raw text")))
}
