package tool

import (
	"encoding/json"

	"vero/internal/domain"
)

// propertySchema is a single JSON Schema property node.
type propertySchema struct {
	Type                 string           `json:"type,omitempty"`
	Description          string           `json:"description,omitempty"`
	Items                *propertySchema  `json:"items,omitempty"`
	AdditionalProperties *propertySchema  `json:"additionalProperties,omitempty"`
	AnyOf                []propertySchema `json:"anyOf,omitempty"`
}

// parametersSchema is the object schema of a tool's parameter list.
type parametersSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]propertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// BuildParameters maps parameter descriptors onto a JSON Schema object.
// The output is deterministic: property keys marshal in sorted order and the
// required list preserves declaration order. Parameters with defaults and
// nullable parameters are excluded from required. Unrecognized types fall
// back to string; schema generation never fails.
func BuildParameters(params []domain.Param) json.RawMessage {
	schema := parametersSchema{
		Type:       "object",
		Properties: make(map[string]propertySchema, len(params)),
		Required:   []string{},
	}

	for _, p := range params {
		prop := typeSchema(p)
		prop.Description = p.Name
		schema.Properties[p.Name] = prop
		if p.Required && !p.Nullable && p.Default == nil {
			schema.Required = append(schema.Required, p.Name)
		}
	}

	data, err := json.Marshal(schema)
	if err != nil {
		// Unreachable for descriptor input; keep the contract total.
		return json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
	}
	return data
}

// typeSchema maps one descriptor to its property schema, without description.
func typeSchema(p domain.Param) propertySchema {
	base := propertySchema{Type: jsonType(p.Type)}

	switch p.Type {
	case domain.TypeObject:
		base.AdditionalProperties = &propertySchema{Type: jsonType(p.Elem)}
	case domain.TypeArray:
		base.Items = &propertySchema{Type: jsonType(p.Elem)}
	}

	if p.Nullable {
		return propertySchema{AnyOf: []propertySchema{base, {Type: "null"}}}
	}
	return base
}

// jsonType maps a semantic type tag to a JSON Schema type name, falling back
// to string for anything unrecognized.
func jsonType(t domain.ParamType) string {
	switch t {
	case domain.TypeString, domain.TypeInt, domain.TypeFloat, domain.TypeBool,
		domain.TypeObject, domain.TypeArray:
		return string(t)
	default:
		return string(domain.TypeString)
	}
}

// Definition is the provider-facing function-calling descriptor:
// {"type":"function","function":{name, description, parameters}}.
type Definition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the function block of a Definition.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Describe wraps a tool's schema in the full function-calling envelope.
func Describe(t domain.Tool) Definition {
	s := t.Schema()
	return Definition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters,
		},
	}
}
