package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nadzzz/cozmoagent/internal/message"
)

// ErrUnknownAction is returned by Build for names missing from the catalog.
var ErrUnknownAction = errors.New("unknown action")

// MissingParamError reports a required parameter the planner did not supply.
type MissingParamError struct {
	Action string
	Param  string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("%s: missing required parameter %q", e.Action, e.Param)
}

// InvalidParamError reports a parameter of the wrong type or out of range.
type InvalidParamError struct {
	Action string
	Param  string
	Reason string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("%s: invalid parameter %q: %s", e.Action, e.Param, e.Reason)
}

// Constructor maps validated parameters to a command record. Constructors are
// pure and total: every argument they read has been validated and defaulted.
type Constructor func(args map[string]any) message.Command

var constructors = map[string]Constructor{
	MoveStraight: func(args map[string]any) message.Command {
		return record(MoveStraight, map[string]any{
			"distance_mm": args["distance_mm"],
			"speed_mmps":  args["speed_mmps"],
		})
	},
	Speak: func(args map[string]any) message.Command {
		text, _ := args["text"].(string)
		return record(Speak, map[string]any{"text": strings.TrimSpace(text)})
	},
	TurnInPlace: func(args map[string]any) message.Command {
		return record(TurnInPlace, map[string]any{"angle_degrees": args["angle_degrees"]})
	},
	MoveHead: func(args map[string]any) message.Command {
		return record(MoveHead, map[string]any{"rate_rad_s": args["rate_rad_s"]})
	},
	ApproachObject: func(map[string]any) message.Command {
		return record(ApproachObject, map[string]any{"distance_mm": ApproachStopDistanceMM})
	},
	ScanSurroundings: func(map[string]any) message.Command {
		return record(ScanSurroundings, map[string]any{})
	},
	ReturnToBase: func(map[string]any) message.Command {
		return record(ReturnToBase, map[string]any{})
	},
}

// record builds a command and keeps its encoded form. A record that cannot be
// encoded keeps no raw form, and message.NewReply reports the error.
func record(decision string, concepts map[string]any) message.Command {
	cmd := message.Command{Decision: decision, Concepts: concepts}
	if raw, err := cmd.Encode(); err == nil {
		cmd.Raw = raw
	}
	return cmd
}

// Construct runs the registered constructor without validation. The caller
// guarantees args satisfy the schema.
func Construct(name string, args map[string]any) (message.Command, error) {
	ctor, ok := constructors[name]
	if !ok {
		return message.Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return ctor(args), nil
}

// Build validates args against the action's schema, fills in defaults and
// returns the command record. A blank string counts as missing; numbers must
// be finite.
func Build(name string, args map[string]any) (message.Command, error) {
	schema, ok := Lookup(name)
	if !ok {
		return message.Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}

	valid := make(map[string]any, len(schema.Params))
	for _, p := range schema.Params {
		v, present := args[p.Name]
		if str, ok := v.(string); ok && p.Type == String && strings.TrimSpace(str) == "" {
			present = false
		}
		if !present || v == nil {
			if p.Required {
				return message.Command{}, &MissingParamError{Action: name, Param: p.Name}
			}
			if p.Default != nil {
				valid[p.Name] = p.Default
			}
			continue
		}

		cv, err := coerce(p, v)
		if err != nil {
			return message.Command{}, &InvalidParamError{Action: name, Param: p.Name, Reason: err.Error()}
		}
		valid[p.Name] = cv
	}

	return Construct(name, valid)
}

// BuildJSON is Build for arguments encoded as a JSON object, as tool calls carry them.
func BuildJSON(name, arguments string) (message.Command, error) {
	args := map[string]any{}
	if s := strings.TrimSpace(arguments); s != "" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return message.Command{}, &InvalidParamError{Action: name, Param: "arguments", Reason: err.Error()}
		}
	}
	return Build(name, args)
}

// Clarify builds the speak record asking the user for what is missing.
// Planners use it instead of guessing when required details are absent.
func Clarify(action string, missing ...string) message.Command {
	var question string
	if schema, ok := Lookup(action); ok && schema.Clarify != "" {
		question = schema.Clarify
	} else {
		question = "Sorry, I didn't understand. What should I do?"
	}
	if len(missing) > 0 && action != Speak {
		question = fmt.Sprintf("%s (I need the %s.)", question, strings.Join(missing, " and "))
	}
	return record(Speak, map[string]any{"text": question})
}

// ClarifyError is Clarify driven by a Build error.
func ClarifyError(action string, err error) message.Command {
	var missing *MissingParamError
	if errors.As(err, &missing) {
		return Clarify(action, humanize(missing.Param))
	}
	var invalid *InvalidParamError
	if errors.As(err, &invalid) {
		return Clarify(action, humanize(invalid.Param))
	}
	return Clarify(action)
}

func humanize(param string) string {
	name := param
	for _, suffix := range []string{"_mmps", "_mm", "_degrees", "_rad_s"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.ReplaceAll(name, "_", " ")
}

func coerce(p Param, v any) (any, error) {
	switch p.Type {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case Number, Integer:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("want finite number, got %v", f)
		}
		if p.Min != nil && f < *p.Min {
			return nil, fmt.Errorf("%v below minimum %v", f, *p.Min)
		}
		if p.Max != nil && f > *p.Max {
			return nil, fmt.Errorf("%v above maximum %v", f, *p.Max)
		}
		if p.Type == Integer {
			return int(math.Round(f)), nil
		}
		return f, nil
	default:
		return v, nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("want number, got %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("want number, got %T", v)
	}
}
