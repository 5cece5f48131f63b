package catalog

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Describe renders the catalog as plain text for a planner prompt.
func Describe() string {
	var sb strings.Builder
	for _, s := range schemas {
		fmt.Fprintf(&sb, "- %s: %s\n", s.Name, s.Description)
		for _, p := range s.Params {
			sb.WriteString("    " + p.Name + " (" + string(p.Type))
			if p.Unit != "" {
				sb.WriteString(", " + p.Unit)
			}
			if p.Required {
				sb.WriteString(", required")
			}
			if p.Default != nil {
				fmt.Fprintf(&sb, ", default %v", p.Default)
			}
			if p.Min != nil && p.Max != nil {
				fmt.Fprintf(&sb, ", range %v-%v", *p.Min, *p.Max)
			}
			sb.WriteString("): " + p.Description + "\n")
		}
		for _, ex := range s.Examples {
			sb.WriteString("    e.g. " + ex + "\n")
		}
	}
	return sb.String()
}

// FunctionSchemas renders each action as an OpenAI function-tool definition.
func FunctionSchemas() []map[string]any {
	tools := make([]map[string]any, 0, len(schemas))
	for _, s := range schemas {
		props := map[string]any{}
		required := []string{}
		for _, p := range s.Params {
			if s.Name == ApproachObject {
				// Stop distance is fixed; the planner does not choose it.
				continue
			}
			prop := map[string]any{
				"type":        string(p.Type),
				"description": p.Description,
			}
			if p.Min != nil {
				prop["minimum"] = *p.Min
			}
			if p.Max != nil {
				prop["maximum"] = *p.Max
			}
			if p.Default != nil {
				prop["default"] = p.Default
			}
			props[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}

		desc := s.Description
		if len(s.Examples) > 0 {
			desc += " Examples: " + strings.Join(s.Examples, "; ")
		}
		tools = append(tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        s.Name,
				"description": desc,
				"parameters": map[string]any{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		})
	}
	return tools
}

// MarshalYAML encodes the schema table as a YAML document.
func MarshalYAML() ([]byte, error) {
	doc := struct {
		Actions []Schema `yaml:"actions"`
	}{Actions: schemas}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshalling catalog: %w", err)
	}
	return out, nil
}
