// Package catalog is the fixed set of robot actions the planner may choose from.
//
// The catalog has two halves: a static schema table that documents each action
// for the planner, and a registry of small pure constructors that turn
// validated parameters into command records. Units are documentation for the
// planner, which converts whatever the speaker said; the catalog only checks
// ranges.
package catalog

// Action names understood by the actuator layer.
const (
	MoveStraight     = "move-straight"
	Speak            = "speak"
	TurnInPlace      = "turn-in-place"
	MoveHead         = "move-head"
	ApproachObject   = "approach-object"
	ScanSurroundings = "scan-surroundings"
	ReturnToBase     = "return-to-base"
)

// ApproachStopDistanceMM is how far from the object approach-object stops.
// Closer than this and the robot is likely to hit the cube.
const ApproachStopDistanceMM = 70

// ParamType is the semantic type of a parameter.
type ParamType string

const (
	Number  ParamType = "number"
	Integer ParamType = "integer"
	String  ParamType = "string"
)

// Param describes one action parameter.
type Param struct {
	Name        string    `yaml:"name" json:"name"`
	Type        ParamType `yaml:"type" json:"type"`
	Unit        string    `yaml:"unit,omitempty" json:"unit,omitempty"`
	Description string    `yaml:"description" json:"description"`
	Required    bool      `yaml:"required" json:"required"`
	Default     any       `yaml:"default,omitempty" json:"default,omitempty"`
	Min         *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max         *float64  `yaml:"max,omitempty" json:"max,omitempty"`
}

// Schema documents one action.
type Schema struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Params      []Param  `yaml:"params,omitempty" json:"params,omitempty"`
	Examples    []string `yaml:"examples,omitempty" json:"examples,omitempty"`

	// Clarify is the question to ask when the speaker left out required details.
	Clarify string `yaml:"clarify,omitempty" json:"clarify,omitempty"`
}

func bound(v float64) *float64 { return &v }

// schemas is the planner-facing table, in presentation order.
var schemas = []Schema{
	{
		Name:        MoveStraight,
		Description: "Drive straight forward or backward at the given speed.",
		Params: []Param{
			{
				Name:        "distance_mm",
				Type:        Number,
				Unit:        "mm",
				Description: "Distance to travel in millimeters; negative drives backward.",
				Required:    true,
			},
			{
				Name:        "speed_mmps",
				Type:        Integer,
				Unit:        "mm/s",
				Description: "Travel speed in millimeters per second.",
				Default:     50,
				Min:         bound(10),
				Max:         bound(200),
			},
		},
		Examples: []string{
			`"move forward 20cm" -> distance_mm=200`,
			`"go back 15cm slowly" -> distance_mm=-150, speed_mmps=20`,
			`"drive straight 50cm fast" -> distance_mm=500, speed_mmps=150`,
		},
		Clarify: "How far should I drive?",
	},
	{
		Name:        Speak,
		Description: "Say the given text out loud. Also used to ask the user for missing details.",
		Params: []Param{
			{Name: "text", Type: String, Description: "Text to say.", Required: true},
		},
		Examples: []string{
			`"say hello" -> text="hello"`,
			`"tell me you're ready" -> text="I'm ready"`,
		},
		Clarify: "What should I say?",
	},
	{
		Name:        TurnInPlace,
		Description: "Rotate on the spot.",
		Params: []Param{
			{
				Name:        "angle_degrees",
				Type:        Number,
				Unit:        "deg",
				Description: "Angle in degrees; positive turns left (counter-clockwise), negative turns right.",
				Required:    true,
			},
		},
		Examples: []string{
			`"turn left" -> angle_degrees=90`,
			`"half turn to the right" -> angle_degrees=-180`,
		},
		Clarify: "How far should I turn, and which way?",
	},
	{
		Name:        MoveHead,
		Description: "Move the head up or down.",
		Params: []Param{
			{
				Name:        "rate_rad_s",
				Type:        Number,
				Unit:        "rad/s",
				Description: "Angular rate in radians per second; positive lifts the head, negative lowers it.",
				Required:    true,
			},
		},
		Examples: []string{
			`"look up" -> rate_rad_s=1`,
			`"lower your head" -> rate_rad_s=-1`,
		},
		Clarify: "Should I look up or down?",
	},
	{
		Name:        ApproachObject,
		Description: "Find a cube and drive up to it, stopping 70 mm away.",
		Params: []Param{
			{
				Name:        "distance_mm",
				Type:        Number,
				Unit:        "mm",
				Description: "Stop distance from the object; fixed at 70 mm.",
				Default:     ApproachStopDistanceMM,
			},
		},
		Examples: []string{`"go to the cube" -> approach-object`},
	},
	{
		Name:        ScanSurroundings,
		Description: "Look around for a cube; the robot reports whether one was found.",
	},
	{
		Name:        ReturnToBase,
		Description: "Drive back to the charger.",
	},
}

// Schemas returns the schema table in presentation order.
func Schemas() []Schema {
	out := make([]Schema, len(schemas))
	copy(out, schemas)
	return out
}

// Lookup returns the schema for an action.
func Lookup(name string) (Schema, bool) {
	for _, s := range schemas {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// Names returns the action names in presentation order.
func Names() []string {
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	return names
}
