// Package tool provides descriptor-driven tool construction, schema
// generation, and a registry for the function-calling protocol.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"vero/internal/domain"
)

// Handler is the callable a Func wraps. Arguments arrive as a decoded JSON
// object with defaults already applied.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Option customizes a Func at construction time.
type Option func(*Func)

// WithReturns sets the human-readable return-type descriptor.
func WithReturns(returns string) Option {
	return func(f *Func) { f.returns = returns }
}

// Func wraps a typed callable with a name, description, and ordered
// parameter descriptors. It is immutable after construction.
type Func struct {
	name        string
	description string
	params      []domain.Param
	returns     string
	fn          Handler
}

// New constructs a Func from explicit parameter descriptors. Parameters with
// a default, and nullable parameters, are normalized to not-required.
func New(name, description string, params []domain.Param, fn Handler, opts ...Option) *Func {
	normalized := make([]domain.Param, len(params))
	for i, p := range params {
		if p.Default != nil || p.Nullable {
			p.Required = false
		}
		normalized[i] = p
	}

	f := &Func{
		name:        name,
		description: description,
		params:      normalized,
		returns:     "string",
		fn:          fn,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements domain.Tool.
func (f *Func) Name() string { return f.name }

// Description implements domain.Tool.
func (f *Func) Description() string { return f.description }

// Returns is the return-type descriptor of the wrapped callable.
func (f *Func) Returns() string { return f.returns }

// Params implements domain.Tool.
func (f *Func) Params() []domain.Param {
	out := make([]domain.Param, len(f.params))
	copy(out, f.params)
	return out
}

// Schema implements domain.Tool.
func (f *Func) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        f.name,
		Description: f.description,
		Parameters:  BuildParameters(f.params),
	}
}

// Invoke forwards the argument map to the wrapped callable, applying
// defaults for absent optional parameters. Callable failures wrap
// domain.ErrToolFailure.
func (f *Func) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	for _, p := range f.params {
		if _, ok := args[p.Name]; !ok && p.Default != nil {
			args[p.Name] = p.Default
		}
	}

	out, err := f.fn(ctx, args)
	if err != nil {
		return nil, domain.NewDomainError("Tool.Invoke", domain.ErrToolFailure, f.name+": "+err.Error())
	}
	return out, nil
}

// Execute implements domain.Tool. The params payload must be a JSON object;
// an empty payload is treated as no arguments.
func (f *Func) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	args := map[string]any{}
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, domain.NewDomainError("Tool.Execute", domain.ErrInvalidToolCall, err.Error())
		}
	}

	out, err := f.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	return &domain.ToolResult{Content: Stringify(out)}, nil
}

// Stringify renders a tool return value as observation text. Strings pass
// through; everything else is JSON-encoded, falling back to fmt formatting.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case error:
		return t.Error()
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}

var _ domain.Tool = (*Func)(nil)
