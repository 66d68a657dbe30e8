package tool

import (
	"log/slog"
	"sync"

	"vero/internal/domain"
)

// Registry holds named tools in registration order.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	tools    map[string]domain.Tool
	logger   *slog.Logger
	validate bool
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithValidation wraps every registered tool with schema validation;
// compilation errors are logged and the tool is registered unwrapped.
func WithValidation() RegistryOption {
	return func(r *Registry) { r.validate = true }
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. A duplicate name replaces the earlier registration
// (last wins) and keeps the original position in registration order.
func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		if r.logger != nil {
			r.logger.Warn("tool re-registered, last wins", "tool", name)
		}
	} else {
		r.order = append(r.order, name)
	}

	if r.validate {
		wrapped, err := WithSchemaValidation(t)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("schema validation disabled for tool",
					"tool", name, "error", err)
			}
		} else {
			t = wrapped
		}
	}

	r.tools[name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Tools returns all registered tools in registration order.
func (r *Registry) Tools() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Schemas returns all tool schemas in registration order.
func (r *Registry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}
