// Package history keeps the short-term conversational memory handed to the planner.
package history

import "strings"

// DefaultSize is the number of exchanges a window keeps when none is configured.
const DefaultSize = 8

// Role tags who produced an exchange.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Exchange is one remembered turn.
type Exchange struct {
	Role Role
	Text string
}

// Window is a bounded, insertion-ordered log of exchanges. When full, the
// oldest entry is discarded. Window is not safe for concurrent use; its owner
// serializes access.
type Window struct {
	size    int
	entries []Exchange
}

// New creates a window retaining at most size entries.
func New(size int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	return &Window{size: size, entries: make([]Exchange, 0, size)}
}

// Append adds an exchange at the tail and trims the head to the window size.
func (w *Window) Append(role Role, text string) {
	w.entries = append(w.entries, Exchange{Role: role, Text: text})
	if over := len(w.entries) - w.size; over > 0 {
		w.entries = append(w.entries[:0:0], w.entries[over:]...)
	}
}

// Render joins the last limit entries, oldest first, as "<role>: <text>" lines.
// A limit of zero or less renders every retained entry.
func (w *Window) Render(limit int) string {
	entries := w.entries
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = string(e.Role) + ": " + e.Text
	}
	return strings.Join(lines, "\n")
}

// Len returns the number of retained entries.
func (w *Window) Len() int { return len(w.entries) }

// Size returns the maximum number of retained entries.
func (w *Window) Size() int { return w.size }

// Entries returns a copy of the retained entries, oldest first.
func (w *Window) Entries() []Exchange {
	out := make([]Exchange, len(w.entries))
	copy(out, w.entries)
	return out
}

// Reset forgets every entry.
func (w *Window) Reset() {
	w.entries = w.entries[:0]
}
