// Package planner defines the interface to the language-planning engine.
//
// A planner takes a prompt (the current utterance, optionally preceded by
// recent conversation) and answers with the command records to execute.
// cozmoagent ships with two backends: OpenAI-compatible tool calling (cloud,
// OpenRouter by default) and Local (self-hosted via Ollama).
package planner

import (
	"context"
	"strings"

	"github.com/nadzzz/cozmoagent/internal/catalog"
	"github.com/nadzzz/cozmoagent/internal/history"
	"github.com/nadzzz/cozmoagent/internal/message"
)

// Planner turns a prompt into a plan.
type Planner interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	// Plan returns one command record or a sequence of them. It may block on
	// network I/O for as long as ctx allows.
	Plan(ctx context.Context, prompt string) (message.Reply, error)

	// Close releases any resources held by the planner.
	Close() error
}

// Func adapts a plain function to the Planner interface.
type Func func(ctx context.Context, prompt string) (message.Reply, error)

// Name returns "func".
func (f Func) Name() string { return "func" }

// Plan calls f.
func (f Func) Plan(ctx context.Context, prompt string) (message.Reply, error) {
	return f(ctx, prompt)
}

// Close is a no-op.
func (f Func) Close() error { return nil }

// BuildPrompt primes the utterance with the last limit entries of w.
// With an empty window the prompt is the utterance alone.
func BuildPrompt(w *history.Window, utterance string, limit int) string {
	if w == nil || w.Len() == 0 {
		return utterance
	}
	return "Recent conversation:\n" + w.Render(limit) + "\nCurrent user input: " + utterance
}

// Instructions returns the system prompt shared by all backends.
func Instructions() string {
	var sb strings.Builder
	sb.WriteString(`You are a Cozmo robot control agent. Convert voice commands into calls of the robot actions listed below.

PROCESS:
1. Parse the voice command for the action (move, turn, look, ...), the direction, the amount with its unit, and the target object.
2. If the command is unclear or missing critical information, ask for clarification with a single speak action containing your question. Never guess.
3. Otherwise build a step-by-step plan using only the listed actions, one action per step, in execution order.

UNIT CONVERSION:
- Check the unit each parameter expects and convert the spoken amount to it.
- "10 cm" for a millimeter parameter is 100; "half turn" for a degree parameter is 180.
- "fast" or "slowly" map to a speed inside the allowed range.

OUTPUT:
Return only the steps, with no explanations. Do not invent actions or merge several actions into one.
Each step is {"decision": "<action>", "concepts": {<parameters>}}. A multi-step plan is an array of steps.
Example: "bring the cube to the charger" ->
[{"decision": "approach-object", "concepts": {"distance_mm": 70}}, {"decision": "return-to-base", "concepts": {}}]

ACTIONS:
`)
	sb.WriteString(catalog.Describe())
	return sb.String()
}
