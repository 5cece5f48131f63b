// Package message defines the records exchanged between the planner, the
// interpretation stage and the downstream targets.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nadzzz/cozmoagent/internal/iu"
)

// UnknownDecision is used when a command record carries no usable decision.
const UnknownDecision = "unknown"

// ErrUnparseable is returned when a planner reply is neither a command record
// nor a sequence of them.
var ErrUnparseable = errors.New("unparseable planner reply")

// Command is a single command record produced by the planner.
type Command struct {
	// Decision is the catalog action name (e.g., "move-straight", "speak").
	Decision string `json:"decision"`

	// Concepts holds the action parameters.
	Concepts map[string]any `json:"concepts"`

	// Raw is the record exactly as the planner returned it.
	Raw json.RawMessage `json:"-"`
}

// Encode returns the raw record, marshalling the command when no raw form was kept.
func (c Command) Encode() (json.RawMessage, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	concepts := c.Concepts
	if concepts == nil {
		concepts = map[string]any{}
	}
	raw, err := json.Marshal(struct {
		Decision string         `json:"decision"`
		Concepts map[string]any `json:"concepts"`
	}{c.Decision, concepts})
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", c.Decision, err)
	}
	return raw, nil
}

// Reply is a planner's raw answer: one command record object, or an array of them.
type Reply json.RawMessage

// NewReply encodes commands as a reply array.
func NewReply(cmds ...Command) (Reply, error) {
	parts := make([]json.RawMessage, len(cmds))
	for i, c := range cmds {
		raw, err := c.Encode()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		parts[i] = raw
	}
	raw, err := json.Marshal(parts)
	if err != nil {
		return nil, err
	}
	return Reply(raw), nil
}

// String renders the reply compactly, as it is remembered in conversation context.
func (r Reply) String() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, r); err != nil {
		return string(bytes.TrimSpace(r))
	}
	return buf.String()
}

// Steps normalizes the reply into an ordered command sequence. A sequence is
// used as-is; a single record becomes a one-element sequence; null is an empty
// plan. A blank reply is unparseable.
func (r Reply) Steps() ([]Command, error) {
	data := bytes.TrimSpace(r)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrUnparseable)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		steps := make([]Command, 0, len(elems))
		for i, elem := range elems {
			cmd, err := decodeRecord(elem)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			steps = append(steps, cmd)
		}
		return steps, nil
	case '{':
		cmd, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		return []Command{cmd}, nil
	default:
		return nil, fmt.Errorf("%w: %.200s", ErrUnparseable, data)
	}
}

// decodeRecord reads one record leniently: a missing or blank decision becomes
// UnknownDecision, a number or boolean decision is kept in its text form, and
// missing concepts become an empty map.
func decodeRecord(raw json.RawMessage) (Command, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Command{}, fmt.Errorf("%w: record is not an object: %.200s", ErrUnparseable, raw)
	}

	cmd := Command{
		Decision: UnknownDecision,
		Concepts: map[string]any{},
		Raw:      append(json.RawMessage(nil), bytes.TrimSpace(raw)...),
	}
	switch d := fields["decision"].(type) {
	case string:
		if d != "" {
			cmd.Decision = d
		}
	case float64, bool:
		cmd.Decision = fmt.Sprint(d)
	}
	if c, ok := fields["concepts"].(map[string]any); ok {
		cmd.Concepts = c
	}
	return cmd, nil
}

// Target defines a downstream actuator service that receives command units.
type Target struct {
	// Name is a human-readable identifier (e.g., "cozmo").
	Name string `json:"name"`

	// Endpoint is the address to reach the target: a URL, host:port or MQTT topic.
	Endpoint string `json:"endpoint"`

	// Protocol selects the transport used to reach the target ("http", "grpc", "mqtt").
	Protocol string `json:"protocol"`

	// Token is an optional bearer credential.
	Token string `json:"-"`
}

// DispatchResult is the outcome of pushing one batch through the pipeline.
type DispatchResult struct {
	// BatchID is the grounding unit of the batch, empty when nothing was committed.
	BatchID string `json:"batch_id,omitempty"`

	// Commands lists the emitted command units in plan order.
	Commands []iu.CommandUnit `json:"commands"`

	// RoutedTo lists the targets that received the commands.
	RoutedTo []string `json:"routed_to,omitempty"`

	// Dropped is true when the stage shed the batch because a plan was in flight.
	Dropped bool `json:"dropped,omitempty"`

	// Error is set if planning failed for this batch.
	Error string `json:"error,omitempty"`
}
