// Package iu defines the incremental units flowing into and out of the
// command-interpretation stage.
//
// Upstream speech recognition delivers TextUnits, some provisional and some
// committed. The stage answers with CommandUnits wrapped in an UpdateMessage,
// each unit always added and committed in the same message.
package iu

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TextUnit is one span of recognized speech.
type TextUnit struct {
	// ID is the identity token used to ground derived units.
	ID string `json:"id"`

	// Text is the recognized content.
	Text string `json:"text"`

	// Committed is true once the recognizer has finalized this span.
	Committed bool `json:"committed"`

	// CreatedAt is when the unit was produced upstream.
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NewTextUnit returns a TextUnit with a fresh identity.
func NewTextUnit(text string, committed bool) TextUnit {
	return TextUnit{
		ID:        uuid.NewString(),
		Text:      text,
		Committed: committed,
		CreatedAt: time.Now(),
	}
}

// Batch is an ordered delivery of text units from upstream.
type Batch []TextUnit

// EnsureIDs assigns an identity to every unit that arrived without one.
// Transports call this so grounding references are never empty.
func (b Batch) EnsureIDs() {
	for i := range b {
		if b[i].ID == "" {
			b[i].ID = uuid.NewString()
		}
	}
}

// CommandUnit is one step of an interpreted plan, ready for the actuator layer.
type CommandUnit struct {
	ID string `json:"id"`

	// Function is the catalog action name (or "unknown").
	Function string `json:"function"`

	// Parameters holds the action's concepts.
	Parameters map[string]any `json:"parameters"`

	// StepNumber is the 1-based position within the plan.
	StepNumber int `json:"step_number"`

	// ToolResult is the raw command record as the planner returned it.
	ToolResult json.RawMessage `json:"tool_result,omitempty"`

	// GroundedIn is the ID of the TextUnit this command was derived from.
	GroundedIn string `json:"grounded_in"`

	CreatedAt time.Time `json:"created_at"`
}

// NewCommandUnit builds the unit for step (1-based) of a plan grounded in source.
func NewCommandUnit(source TextUnit, step int, function string, params map[string]any, raw json.RawMessage) *CommandUnit {
	return &CommandUnit{
		ID:         uuid.NewString(),
		Function:   function,
		Parameters: params,
		StepNumber: step,
		ToolResult: raw,
		GroundedIn: source.ID,
		CreatedAt:  time.Now(),
	}
}

// UpdateType is the kind of change an Update applies to a unit.
type UpdateType string

const (
	UpdateAdd    UpdateType = "add"
	UpdateRevoke UpdateType = "revoke"
	UpdateCommit UpdateType = "commit"
)

// Update pairs a unit with the change applied to it.
type Update struct {
	Type UpdateType   `json:"type"`
	Unit *CommandUnit `json:"unit"`
}

// UpdateMessage is an ordered batch of updates emitted atomically.
type UpdateMessage []Update

// AddCommitted appends u as both added and committed.
func (m *UpdateMessage) AddCommitted(u *CommandUnit) {
	*m = append(*m, Update{Type: UpdateAdd, Unit: u}, Update{Type: UpdateCommit, Unit: u})
}

// Units returns the distinct units of the message in first-seen order.
func (m UpdateMessage) Units() []*CommandUnit {
	seen := make(map[*CommandUnit]bool, len(m))
	units := make([]*CommandUnit, 0, len(m)/2)
	for _, upd := range m {
		if upd.Unit == nil || seen[upd.Unit] {
			continue
		}
		seen[upd.Unit] = true
		units = append(units, upd.Unit)
	}
	return units
}

// Len returns the number of distinct units in the message.
func (m UpdateMessage) Len() int {
	return len(m.Units())
}

// Types returns the update types recorded for u, in order.
func (m UpdateMessage) Types(u *CommandUnit) []UpdateType {
	var types []UpdateType
	for _, upd := range m {
		if upd.Unit == u {
			types = append(types, upd.Type)
		}
	}
	return types
}
