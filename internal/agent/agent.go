// Package agent implements the reasoning-loop strategies that let a chat
// model invoke registered tools and fold their results into a final answer.
//
// Three strategies are provided, selected at construction time: Simple (a
// one-shot TOOL_CALL text protocol), ReAct (a Thought/Action/Observation
// scratchpad loop), and FunctionCall (the native tool-calling protocol).
// They share history and tool bookkeeping but own their loops entirely; the
// invocation protocols differ too much for a common loop to help.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"vero/internal/domain"
	"vero/internal/infra/tracer"
)

// Agent is one reasoning strategy bound to a chat client and a tool set.
type Agent interface {
	// Name returns the agent's identifier.
	Name() string
	// Run executes the reasoning loop for one user input and returns the
	// final answer text.
	Run(ctx context.Context, input string) (string, error)
	// History returns a copy of the conversation history.
	History() []domain.Message
	// ClearHistory resets the conversation history.
	ClearHistory()
}

// Config holds the shared construction parameters for all strategies.
type Config struct {
	Name         string
	Client       domain.ChatClient
	Tools        []domain.Tool
	SystemPrompt string  // optional override; empty means strategy default
	MaxTurns     int     // reasoning turn budget; defaults to 3
	Temperature  float64 // passed through on every model call
	ToolChoice   string  // FunctionCall only; defaults to "auto"
	Logger       *slog.Logger
}

// New builds the named strategy: "simple", "react", or "funccall".
func New(strategy string, cfg Config) (Agent, error) {
	switch strings.ToLower(strategy) {
	case "simple":
		return NewSimple(cfg)
	case "react":
		return NewReAct(cfg)
	case "funccall":
		return NewFunctionCall(cfg)
	default:
		return nil, domain.NewDomainError("agent.New", domain.ErrInvalidInput,
			fmt.Sprintf("unknown strategy %q", strategy))
	}
}

// base carries the bookkeeping every strategy shares: history, the ordered
// tool list, and the name lookup map.
type base struct {
	name        string
	client      domain.ChatClient
	tools       []domain.Tool
	byName      map[string]domain.Tool
	maxTurns    int
	temperature float64
	logger      *slog.Logger
	history     []domain.Message
}

func newBase(cfg Config) (base, error) {
	if cfg.Client == nil {
		return base{}, domain.NewDomainError("agent.newBase", domain.ErrInvalidInput, "chat client is required")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns < 1 {
		maxTurns = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	byName := make(map[string]domain.Tool, len(cfg.Tools))
	ordered := make([]domain.Tool, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		if prev, ok := byName[t.Name()]; ok {
			logger.Warn("duplicate tool registration, last wins", "tool", t.Name())
			for i := range ordered {
				if ordered[i] == prev {
					ordered = append(ordered[:i], ordered[i+1:]...)
					break
				}
			}
		}
		byName[t.Name()] = t
		ordered = append(ordered, t)
	}

	return base{
		name:        cfg.Name,
		client:      cfg.Client,
		tools:       ordered,
		byName:      byName,
		maxTurns:    maxTurns,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

func (b *base) Name() string { return b.name }

// AddMessage appends a message to the conversation history.
func (b *base) AddMessage(msg domain.Message) {
	b.history = append(b.history, msg)
}

// ClearHistory resets the conversation history.
func (b *base) ClearHistory() {
	b.history = nil
}

// History returns a copy of the conversation history.
func (b *base) History() []domain.Message {
	out := make([]domain.Message, len(b.history))
	copy(out, b.history)
	return out
}

// ToolDescriptions returns a human-readable listing of all tools in
// registration order, one per line:
//
//	add(a: integer, b: integer) - Add two integers.
func (b *base) ToolDescriptions() string {
	lines := make([]string, 0, len(b.tools))
	for _, t := range b.tools {
		params := t.Params()
		args := make([]string, 0, len(params))
		for _, p := range params {
			args = append(args, fmt.Sprintf("%s: %s", p.Name, p.Type))
		}
		lines = append(lines, fmt.Sprintf("%s(%s) - %s", t.Name(), strings.Join(args, ", "), t.Description()))
	}
	return strings.Join(lines, "\n")
}

// toolByName resolves a tool; the last-registered tool wins on name collision.
func (b *base) toolByName(name string) (domain.Tool, bool) {
	t, ok := b.byName[name]
	return t, ok
}

// executeTool dispatches one tool invocation and renders its result as
// observation text. A missing tool is reported as ErrToolNotFound; execution
// failures are returned for the strategy to classify.
func (b *base) executeTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := b.toolByName(name)
	if !ok {
		return "", domain.NewDomainError("agent.executeTool", domain.ErrToolNotFound, name)
	}

	ctx, span := tracer.StartSpan(ctx, "agent.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", name)))
	defer span.End()

	b.logger.Debug("executing tool", "agent", b.name, "tool", name, "args", string(args))
	res, err := t.Execute(ctx, args)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}
	if res.IsError {
		b.logger.Warn("tool reported failure", "agent", b.name, "tool", name, "result", res.Content)
	}
	return res.Content, nil
}

// recordUsage stamps token usage onto a message's metadata.
func recordUsage(msg *domain.Message, usage domain.Usage) {
	if usage.TotalTokens == 0 {
		return
	}
	if msg.Metadata == nil {
		msg.Metadata = make(map[string]any, 1)
	}
	msg.Metadata["usage"] = usage
}

// newRunID mints a sortable unique identifier for one Run invocation.
func newRunID() string {
	return ulid.Make().String()
}
