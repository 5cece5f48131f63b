// Package openai implements the Planner interface on an OpenAI-compatible
// Chat Completions API (OpenAI, OpenRouter, vLLM).
//
// The catalog is offered to the model as function tools. Every tool call the
// model makes becomes one command record, in call order, built through the
// catalog so defaults and ranges apply. Calls the catalog rejects become a
// spoken clarification question.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/cozmoagent/internal/catalog"
	"github.com/nadzzz/cozmoagent/internal/config"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/planner"
)

// Planner uses a chat completions endpoint with tool calling.
type Planner struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// New creates a new OpenAI-compatible planner from config.
func New(cfg config.OpenAIConfig) *Planner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Planner{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Name returns the backend identifier.
func (p *Planner) Name() string { return "openai" }

// Plan sends the prompt with the catalog tools and converts the answer into a reply.
func (p *Planner) Plan(ctx context.Context, prompt string) (message.Reply, error) {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: planner.Instructions()},
			{Role: "user", Content: prompt},
		},
		Tools:       catalog.FunctionSchemas(),
		ToolChoice:  "required",
		Temperature: p.temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("chat failed (status %d): %s", resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from chat API")
	}

	msg := chatResp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		slog.Debug("planner answered without tool calls", "content_length", len(msg.Content))
		return planner.ReplyFromContent(msg.Content)
	}

	cmds := make([]message.Command, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		cmds = append(cmds, commandFromCall(call.Function.Name, call.Function.Arguments))
	}
	reply, err := message.NewReply(cmds...)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	slog.Debug("planning complete", "tool_calls", len(cmds))
	return reply, nil
}

// Close is a no-op for the OpenAI planner.
func (p *Planner) Close() error { return nil }

// commandFromCall builds the record for one tool call. Actions outside the
// catalog pass through untouched; the actuator layer decides what to do with them.
func commandFromCall(name, arguments string) message.Command {
	cmd, err := catalog.BuildJSON(name, arguments)
	if err == nil {
		return cmd
	}
	if errors.Is(err, catalog.ErrUnknownAction) {
		concepts := map[string]any{}
		_ = json.Unmarshal([]byte(arguments), &concepts)
		return message.Command{Decision: name, Concepts: concepts}
	}
	slog.Warn("tool call rejected, asking for clarification", "tool", name, "error", err)
	return catalog.ClarifyError(name, err)
}

// --- Internal types ---

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []chatMessage    `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}
