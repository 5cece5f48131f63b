// Package local implements the Planner interface using self-hosted models.
//
// It talks to Ollama's /api/generate endpoint (JSON mode) or to any
// OpenAI-compatible /v1/chat/completions endpoint (Ollama, vLLM, llama.cpp).
// The model is asked to answer with command records directly.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/cozmoagent/internal/config"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/planner"
)

// Planner uses a self-hosted LLM endpoint.
type Planner struct {
	endpoint string
	model    string
	client   *http.Client
}

// New creates a new local planner from config.
func New(cfg config.LocalConfig) *Planner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Planner{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the backend identifier.
func (p *Planner) Name() string { return "local" }

// Plan sends the prompt to the local LLM endpoint.
func (p *Planner) Plan(ctx context.Context, prompt string) (message.Reply, error) {
	system := planner.Instructions()

	var reqBody map[string]any
	if strings.HasSuffix(p.endpoint, "/api/generate") {
		reqBody = map[string]any{
			"model":  p.model,
			"system": system,
			"prompt": prompt,
			"stream": false,
			"format": "json",
		}
	} else {
		reqBody = map[string]any{
			"model": p.model,
			"messages": []map[string]string{
				{"role": "system", "content": system},
				{"role": "user", "content": prompt},
			},
			"temperature": 0.2,
			"stream":      false,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local LLM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("local LLM failed (status %d): %s", resp.StatusCode, respBody)
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading LLM response: %w", err)
	}

	reply, err := planner.ReplyFromContent(extractContent(respData))
	if err != nil {
		return nil, fmt.Errorf("local LLM: %w", err)
	}
	slog.Debug("local planning complete", "reply_length", len(reply))
	return reply, nil
}

// Close is a no-op for the local planner.
func (p *Planner) Close() error { return nil }

func extractContent(data []byte) string {
	// OpenAI-compatible format: {"choices": [{"message": {"content": "..."}}]}
	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chatResp); err == nil && len(chatResp.Choices) > 0 {
		return chatResp.Choices[0].Message.Content
	}

	// Ollama format: {"response": "..."}
	var ollamaResp struct {
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(data, &ollamaResp); err == nil && ollamaResp.Response != nil {
		return *ollamaResp.Response
	}

	return string(data)
}
