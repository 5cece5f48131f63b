// Package dispatch implements the routing engine around the interpretation stage.
//
// The dispatcher receives batches from transports, runs them through the
// stage, journals the emitted command units and routes them to every
// configured actuator target. The sender always receives the result; a
// failing target never affects the others.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/stage"
	"github.com/nadzzz/cozmoagent/internal/transport"
)

// Recorder stores emitted command units.
type Recorder interface {
	Record(ctx context.Context, units []iu.CommandUnit) error
}

// Payload is what targets receive: the units of one plan, in step order.
type Payload struct {
	GroundedIn string           `json:"grounded_in"`
	Updates    iu.UpdateMessage `json:"updates"`
}

// Dispatcher is the central routing engine.
type Dispatcher struct {
	stage      *stage.Stage
	transports map[string]transport.Transport
	targets    []message.Target
	recorder   Recorder // nil if the journal is disabled
}

// New creates a Dispatcher. transports includes every transport a target
// routes through, whether or not it listens for input. recorder may be nil.
func New(st *stage.Stage, transports []transport.Transport, targets []message.Target, recorder Recorder) *Dispatcher {
	tm := make(map[string]transport.Transport, len(transports))
	for _, t := range transports {
		tm[t.Name()] = t
	}
	return &Dispatcher{
		stage:      st,
		transports: tm,
		targets:    targets,
		recorder:   recorder,
	}
}

// Handle processes a single batch through the full pipeline.
// This function is passed as the transport.Handler to each transport.
func (d *Dispatcher) Handle(ctx context.Context, batch iu.Batch) (*message.DispatchResult, error) {
	start := time.Now()
	batch.EnsureIDs()
	result := &message.DispatchResult{Commands: []iu.CommandUnit{}}

	// Step 1: Interpret.
	out, err := d.stage.Process(ctx, batch)
	switch {
	case errors.Is(err, stage.ErrBusy):
		result.Dropped = true
		return result, nil
	case err != nil:
		result.Error = err.Error()
		return result, nil
	case len(out) == 0:
		return result, nil
	}

	units := out.Units()
	for _, u := range units {
		result.Commands = append(result.Commands, *u)
	}
	result.BatchID = units[0].GroundedIn
	logger := slog.With("grounded_in", result.BatchID)
	logger.Info("plan emitted", "commands", len(units))

	// Step 2: Journal.
	if d.recorder != nil {
		if err := d.recorder.Record(ctx, result.Commands); err != nil {
			logger.Error("journal write failed", "error", err)
		}
	}

	// Step 3: Route to actuator targets.
	payload, err := json.Marshal(Payload{GroundedIn: result.BatchID, Updates: out})
	if err != nil {
		result.Error = "marshalling commands: " + err.Error()
		return result, nil
	}

	for _, target := range d.targets {
		t, ok := d.transports[target.Protocol]
		if !ok {
			logger.Warn("no transport for target protocol", "protocol", target.Protocol, "target", target.Name)
			continue
		}

		if err := t.Send(ctx, target, payload); err != nil {
			logger.Error("failed to send to target", "target", target.Name, "error", err)
			continue
		}

		result.RoutedTo = append(result.RoutedTo, target.Name)
		logger.Info("routed to target", "target", target.Name)
	}

	logger.Info("dispatch complete", "duration", time.Since(start), "routed_to", len(result.RoutedTo))
	return result, nil
}
