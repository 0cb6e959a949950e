package prompt

// ActionSchema declaratively exposes a callable action to the model. The
// Parameters map is a JSON Schema object (draft agnostic, minimal subset).
type ActionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NormalizeActionSchema accepts either {name, description, parameters} or
// {name, description, inputSchema} shorthand maps and produces an
// ActionSchema. Providers then emit their own required nested shape.
func NormalizeActionSchema(m map[string]any) (ActionSchema, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return ActionSchema{}, &TransformError{Field: "name", Message: "action schema requires a name"}
	}
	description, _ := m["description"].(string)

	params, ok := m["parameters"].(map[string]any)
	if !ok {
		if params, ok = m["inputSchema"].(map[string]any); !ok {
			params, _ = m["input_schema"].(map[string]any)
		}
	}
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return ActionSchema{Name: name, Description: description, Parameters: params}, nil
}

// ToolChoice expresses how the model should pick among available actions:
// Mode "auto" or "required", or a specific action by Name.
type ToolChoice struct {
	Mode string // "auto" | "required" | "" when Name is set
	Name string
}

// NormalizeToolChoice maps shorthand ("auto", "required", {name: ...}) into a
// ToolChoice. Shapes that cannot be mapped fail fast.
func NormalizeToolChoice(v any) (ToolChoice, error) {
	switch tc := v.(type) {
	case nil:
		return ToolChoice{}, nil
	case ToolChoice:
		return tc, nil
	case string:
		switch tc {
		case "auto", "required", "none":
			return ToolChoice{Mode: tc}, nil
		}
		return ToolChoice{}, &TransformError{Field: "tool_choice", Message: "unknown tool choice " + quote(tc)}
	case map[string]any:
		if name, ok := tc["name"].(string); ok && name != "" {
			return ToolChoice{Name: name}, nil
		}
	}
	return ToolChoice{}, &TransformError{Field: "tool_choice", Message: "tool choice cannot be mapped"}
}
