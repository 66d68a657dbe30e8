package domain

import (
	"context"
	"encoding/json"
)

// ParamType is the semantic type tag of a tool parameter.
type ParamType string

// Parameter type tags. They map one-to-one onto JSON Schema types.
const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "integer"
	TypeFloat  ParamType = "number"
	TypeBool   ParamType = "boolean"
	TypeObject ParamType = "object"
	TypeArray  ParamType = "array"
)

// Param describes a single tool parameter. Descriptors are built once at
// registration time; schema generation is a pure mapping over them.
type Param struct {
	Name string
	Type ParamType
	// Elem is the element type for array items or object values.
	// Empty when not applicable.
	Elem ParamType
	// Required marks a parameter that must be supplied by the caller.
	// A parameter with a default or a nullable parameter is never required.
	Required bool
	// Nullable marks a parameter that accepts null in addition to its type.
	Nullable bool
	// Default is applied when the parameter is absent. Nil means no default.
	Default any
}

// ToolSchema describes a tool for the function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents a model's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Tool is the interface every registered tool implements.
type Tool interface {
	Name() string
	Description() string
	// Params returns the ordered parameter descriptors the tool was
	// registered with.
	Params() []Param
	// Schema returns the machine-readable parameter schema for the
	// function-calling protocol.
	Schema() ToolSchema
	// Execute invokes the tool with a JSON object argument payload.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}
