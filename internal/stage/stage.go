// Package stage implements the command-interpretation stage.
//
// The stage collects committed speech from incoming batches, asks the planner
// for a plan, remembers the exchange, and emits one committed command unit per
// planned step. Only one planning call runs at a time; what happens to input
// arriving meanwhile is decided by a Policy (shed by default).
package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nadzzz/cozmoagent/internal/history"
	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/planner"
)

var (
	// ErrBusy is returned, with no output, when a batch is shed because a plan is in flight.
	ErrBusy = errors.New("stage busy")

	// ErrPlanner wraps planner failures and unparseable replies.
	ErrPlanner = errors.New("planning failed")
)

// Stats counts what the stage has done since it was created.
type Stats struct {
	Busy      bool   `json:"busy"`
	Policy    string `json:"policy"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
	Emitted   uint64 `json:"emitted"`
}

// Stage is the interpretation stage. It owns its context window; a Stage is
// safe for concurrent use and independent of any other Stage.
type Stage struct {
	planner     planner.Planner
	policy      Policy
	renderLimit int
	logger      *slog.Logger

	mu     sync.Mutex // guards window for the whole planning call
	window *history.Window
	busy   atomic.Bool

	processed atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	emitted   atomic.Uint64
}

// Option configures a Stage.
type Option func(*Stage)

// WithWindow sets how many exchanges the context window keeps.
func WithWindow(size int) Option {
	return func(s *Stage) { s.window = history.New(size) }
}

// WithRenderLimit sets how many exchanges are shown to the planner.
func WithRenderLimit(n int) Option {
	return func(s *Stage) { s.renderLimit = n }
}

// WithPolicy replaces the overlap policy.
func WithPolicy(p Policy) Option {
	return func(s *Stage) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stage) { s.logger = l }
}

// New creates a stage backed by p.
func New(p planner.Planner, opts ...Option) *Stage {
	s := &Stage{
		planner:     p,
		policy:      NewDropPolicy(),
		renderLimit: history.DefaultSize,
		logger:      slog.Default(),
		window:      history.New(history.DefaultSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "stage", "planner", p.Name())
	return s
}

// Aggregate joins the committed, non-blank text of batch with single spaces,
// in batch order. The first contributing unit is the grounding source.
func Aggregate(batch iu.Batch) (utterance string, source iu.TextUnit, ok bool) {
	var parts []string
	for _, u := range batch {
		if !u.Committed {
			continue
		}
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		if len(parts) == 0 {
			source = u
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return "", iu.TextUnit{}, false
	}
	return strings.Join(parts, " "), source, true
}

// Process interprets one upstream batch.
//
// A batch without committed text yields no output and changes nothing. A batch
// the policy sheds yields no output and ErrBusy. A failed planning call yields
// no output, leaves the context window untouched and returns an error wrapping
// ErrPlanner. Otherwise every planned step is emitted, added and committed, in
// plan order.
func (s *Stage) Process(ctx context.Context, batch iu.Batch) (iu.UpdateMessage, error) {
	utterance, source, ok := Aggregate(batch)
	if !ok {
		return nil, nil
	}

	if !s.policy.Admit(ctx) {
		s.dropped.Add(1)
		s.logger.Debug("plan in flight, dropping batch", "grounded_in", source.ID, "text", utterance)
		return nil, ErrBusy
	}
	defer s.policy.Release()

	return s.interpret(ctx, source, utterance)
}

func (s *Stage) interpret(ctx context.Context, source iu.TextUnit, utterance string) (iu.UpdateMessage, error) {
	s.mu.Lock()
	s.busy.Store(true)
	defer func() {
		s.busy.Store(false)
		s.mu.Unlock()
	}()

	s.processed.Add(1)
	logger := s.logger.With("grounded_in", source.ID)
	logger.Info("processing committed text", "text", utterance)

	prompt := planner.BuildPrompt(s.window, utterance, s.renderLimit)
	reply, err := s.planner.Plan(ctx, prompt)
	if err != nil {
		s.failed.Add(1)
		logger.Error("planner call failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPlanner, err)
	}

	steps, err := reply.Steps()
	if err != nil {
		s.failed.Add(1)
		logger.Error("planner reply rejected", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPlanner, err)
	}

	rendered := reply.String()
	s.window.Append(history.RoleUser, utterance)
	s.window.Append(history.RoleAgent, rendered)
	logger.Info("agent response", "reply", rendered, "steps", len(steps))

	var out iu.UpdateMessage
	for i, step := range steps {
		out.AddCommitted(commandUnit(source, i+1, step))
	}
	s.emitted.Add(uint64(len(steps)))
	return out, nil
}

func commandUnit(source iu.TextUnit, step int, cmd message.Command) *iu.CommandUnit {
	function := cmd.Decision
	if function == "" {
		function = message.UnknownDecision
	}
	params := cmd.Concepts
	if params == nil {
		params = map[string]any{}
	}
	return iu.NewCommandUnit(source, step, function, params, cmd.Raw)
}

// Busy reports whether a planning call is in flight. It never blocks.
func (s *Stage) Busy() bool { return s.busy.Load() }

// Stats returns the stage counters.
func (s *Stage) Stats() Stats {
	return Stats{
		Busy:      s.busy.Load(),
		Policy:    s.policy.Name(),
		Processed: s.processed.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
		Emitted:   s.emitted.Load(),
	}
}

// History returns a copy of the context window. It waits for any planning
// call in flight.
func (s *Stage) History() []history.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Entries()
}

// Reset forgets the conversation. It waits for any planning call in flight.
func (s *Stage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.Reset()
	s.logger.Info("conversation context cleared")
}
