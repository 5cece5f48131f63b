package catalog

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNamesCoverRegistry(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{
		MoveStraight, Speak, TurnInPlace, MoveHead,
		ApproachObject, ScanSurroundings, ReturnToBase,
	}, names)
	for _, name := range names {
		_, ok := constructors[name]
		assert.True(t, ok, "no constructor for %s", name)
	}
	assert.Len(t, constructors, len(names))
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		args     map[string]any
		concepts map[string]any
	}{
		{
			name:     "move with default speed",
			action:   MoveStraight,
			args:     map[string]any{"distance_mm": float64(100)},
			concepts: map[string]any{"distance_mm": float64(100), "speed_mmps": 50},
		},
		{
			name:     "move backward with speed from string",
			action:   MoveStraight,
			args:     map[string]any{"distance_mm": -150, "speed_mmps": "20"},
			concepts: map[string]any{"distance_mm": float64(-150), "speed_mmps": 20},
		},
		{
			name:     "integer speed is rounded",
			action:   MoveStraight,
			args:     map[string]any{"distance_mm": 10.0, "speed_mmps": 99.6},
			concepts: map[string]any{"distance_mm": float64(10), "speed_mmps": 100},
		},
		{
			name:     "speak trims text",
			action:   Speak,
			args:     map[string]any{"text": "  hello there "},
			concepts: map[string]any{"text": "hello there"},
		},
		{
			name:     "turn",
			action:   TurnInPlace,
			args:     map[string]any{"angle_degrees": -90.0},
			concepts: map[string]any{"angle_degrees": float64(-90)},
		},
		{
			name:     "head",
			action:   MoveHead,
			args:     map[string]any{"rate_rad_s": 1.0},
			concepts: map[string]any{"rate_rad_s": float64(1)},
		},
		{
			name:     "approach ignores requested distance",
			action:   ApproachObject,
			args:     map[string]any{"distance_mm": 10.0},
			concepts: map[string]any{"distance_mm": ApproachStopDistanceMM},
		},
		{
			name:     "approach without args",
			action:   ApproachObject,
			args:     nil,
			concepts: map[string]any{"distance_mm": ApproachStopDistanceMM},
		},
		{
			name:     "scan",
			action:   ScanSurroundings,
			concepts: map[string]any{},
		},
		{
			name:     "return ignores extras",
			action:   ReturnToBase,
			args:     map[string]any{"hurry": true},
			concepts: map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Build(tt.action, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.action, cmd.Decision)
			assert.Equal(t, tt.concepts, cmd.Concepts)

			var raw struct {
				Decision string         `json:"decision"`
				Concepts map[string]any `json:"concepts"`
			}
			require.NoError(t, json.Unmarshal(cmd.Raw, &raw))
			assert.Equal(t, tt.action, raw.Decision)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	_, err := Build("dance", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Build(MoveStraight, map[string]any{"speed_mmps": 50})
	var missing *MissingParamError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "distance_mm", missing.Param)

	_, err = Build(MoveStraight, map[string]any{"distance_mm": 100, "speed_mmps": 500})
	var invalid *InvalidParamError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "speed_mmps", invalid.Param)
	assert.Contains(t, invalid.Reason, "above maximum")

	_, err = Build(MoveStraight, map[string]any{"distance_mm": 100, "speed_mmps": 5})
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "below minimum")

	_, err = Build(TurnInPlace, map[string]any{"angle_degrees": "a lot"})
	require.ErrorAs(t, err, &invalid)

	_, err = Build(Speak, map[string]any{"text": 42})
	require.ErrorAs(t, err, &invalid)

	_, err = Build(Speak, map[string]any{"text": " \t\n"})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "text", missing.Param)
}

func TestBuildRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		param string
		args  map[string]any
	}{
		{"NaN string speed", "speed_mmps", map[string]any{"distance_mm": 100, "speed_mmps": "NaN"}},
		{"Inf string distance", "distance_mm", map[string]any{"distance_mm": "Inf"}},
		{"negative Inf string distance", "distance_mm", map[string]any{"distance_mm": "-Inf"}},
		{"Inf float distance", "distance_mm", map[string]any{"distance_mm": math.Inf(1)}},
		{"NaN float speed", "speed_mmps", map[string]any{"distance_mm": 100, "speed_mmps": math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(MoveStraight, tt.args)
			var invalid *InvalidParamError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.param, invalid.Param)
			assert.Contains(t, invalid.Reason, "finite")
		})
	}

	_, err := BuildJSON(MoveStraight, `{"distance_mm": "NaN"}`)
	cmd := ClarifyError(MoveStraight, err)
	assert.Equal(t, "How far should I drive? (I need the distance.)", cmd.Concepts["text"])
}

func TestBuildJSON(t *testing.T) {
	cmd, err := BuildJSON(MoveStraight, `{"distance_mm": 200}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"distance_mm": float64(200), "speed_mmps": 50}, cmd.Concepts)

	cmd, err = BuildJSON(ReturnToBase, "")
	require.NoError(t, err)
	assert.Equal(t, ReturnToBase, cmd.Decision)

	_, err = BuildJSON(MoveStraight, `{distance`)
	var invalid *InvalidParamError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "arguments", invalid.Param)
}

func TestConstructUnknown(t *testing.T) {
	_, err := Construct("fly", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestClarify(t *testing.T) {
	cmd := Clarify(MoveStraight)
	assert.Equal(t, Speak, cmd.Decision)
	assert.Equal(t, "How far should I drive?", cmd.Concepts["text"])

	cmd = Clarify(TurnInPlace, "angle")
	assert.Equal(t, "How far should I turn, and which way? (I need the angle.)", cmd.Concepts["text"])

	cmd = Clarify("juggle")
	assert.Equal(t, "Sorry, I didn't understand. What should I do?", cmd.Concepts["text"])

	cmd = Clarify(Speak, "text")
	assert.Equal(t, "What should I say?", cmd.Concepts["text"])
}

func TestClarifyError(t *testing.T) {
	_, err := Build(MoveStraight, nil)
	cmd := ClarifyError(MoveStraight, err)
	assert.Equal(t, "How far should I drive? (I need the distance.)", cmd.Concepts["text"])

	_, err = Build(MoveStraight, map[string]any{"distance_mm": 1, "speed_mmps": 1000})
	cmd = ClarifyError(MoveStraight, err)
	assert.Equal(t, "How far should I drive? (I need the speed.)", cmd.Concepts["text"])

	_, err = Build(MoveHead, map[string]any{})
	cmd = ClarifyError(MoveHead, err)
	assert.Equal(t, "Should I look up or down? (I need the rate.)", cmd.Concepts["text"])

	_, err = Build(Speak, map[string]any{"text": "   "})
	cmd = ClarifyError(Speak, err)
	assert.Equal(t, "What should I say?", cmd.Concepts["text"])
	assert.NotEmpty(t, cmd.Raw)
}

func TestDescribe(t *testing.T) {
	text := Describe()
	for _, name := range Names() {
		assert.Contains(t, text, "- "+name+": ")
	}
	assert.Contains(t, text, "speed_mmps (integer, mm/s, default 50, range 10-200)")
	assert.Contains(t, text, "distance_mm (number, mm, required)")
}

func TestFunctionSchemas(t *testing.T) {
	tools := FunctionSchemas()
	require.Len(t, tools, len(Names()))

	byName := map[string]map[string]any{}
	for _, tool := range tools {
		assert.Equal(t, "function", tool["type"])
		fn := tool["function"].(map[string]any)
		byName[fn["name"].(string)] = fn
	}

	move := byName[MoveStraight]["parameters"].(map[string]any)
	assert.Equal(t, []string{"distance_mm"}, move["required"])
	speed := move["properties"].(map[string]any)["speed_mmps"].(map[string]any)
	assert.Equal(t, 10.0, speed["minimum"])
	assert.Equal(t, 200.0, speed["maximum"])
	assert.Equal(t, 50, speed["default"])

	approach := byName[ApproachObject]["parameters"].(map[string]any)
	assert.Empty(t, approach["properties"])

	_, err := json.Marshal(tools)
	require.NoError(t, err)
}

func TestMarshalYAML(t *testing.T) {
	out, err := MarshalYAML()
	require.NoError(t, err)

	var doc struct {
		Actions []Schema `yaml:"actions"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	require.Len(t, doc.Actions, len(Names()))
	assert.Equal(t, MoveStraight, doc.Actions[0].Name)
	assert.True(t, strings.HasPrefix(string(out), "actions:"))
}

func TestSchemasIsACopy(t *testing.T) {
	s := Schemas()
	s[0].Name = "changed"
	got, ok := Lookup(MoveStraight)
	require.True(t, ok)
	assert.Equal(t, MoveStraight, got.Name)
}
