package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.opentelemetry.io/otel/trace"

	"vero/internal/domain"
	"vero/internal/infra/tracer"
)

// toolCallRe matches the one-line tool invocation tag the Simple protocol
// asks the model to emit: TOOL_CALL:name:{"param": value}.
var toolCallRe = regexp.MustCompile(`TOOL_CALL:(\w+):(.+)`)

const simplePromptWithoutTools = "You are a helpful and intelligent AI assistant. Answer the user concisely and accurately."

const simplePromptWithTools = `You are an intelligent agent capable of using external tools to help solve user queries.

Below is the list of available tools:

%s

When you decide that using a tool is necessary:
- Use the exact format:
  TOOL_CALL:tool_name:{"param1": 1, "param2": "abc"}
- The parameters must be a valid JSON object that includes all required arguments of the tool.
- If no tool is needed, simply respond with normal text.

Follow the format strictly. Do not explain the tool call. Do not wrap the tool call in code blocks.`

// Simple implements the tag-based protocol: the model either answers
// directly or emits a single TOOL_CALL tag. At most one tool invocation and
// two model calls happen per Run; MaxTurns is accepted for interface parity
// with the other strategies but is not a multi-round budget here.
type Simple struct {
	base
}

// NewSimple builds a Simple agent. The system prompt defaults to a generated
// listing of the registered tools.
func NewSimple(cfg Config) (*Simple, error) {
	b, err := newBase(cfg)
	if err != nil {
		return nil, err
	}
	a := &Simple{base: b}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = a.defaultPrompt()
	}
	a.AddMessage(domain.SystemMessage(prompt))

	return a, nil
}

func (a *Simple) defaultPrompt() string {
	if len(a.tools) == 0 {
		return simplePromptWithoutTools
	}
	return fmt.Sprintf(simplePromptWithTools, a.ToolDescriptions())
}

// Run executes one request/response cycle: ask the model, execute at most
// one requested tool, and if a tool ran, ask the model once more for the
// final answer.
func (a *Simple) Run(ctx context.Context, input string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.run",
		trace.WithAttributes(
			tracer.StringAttr("agent.name", a.name),
			tracer.StringAttr("agent.strategy", "simple"),
			tracer.StringAttr("agent.run_id", newRunID()),
		),
	)
	defer span.End()

	a.AddMessage(domain.UserMessage(input))

	resp, err := a.chat(ctx)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}
	content := resp.Message.Content

	name, args, found := parseToolCall(content)
	if !found {
		a.logger.Debug("no tool call detected, returning reply", "agent", a.name)
		tracer.SetOK(span)
		return content, nil
	}

	a.logger.Info("tool call detected", "agent", a.name, "tool", name)

	if _, ok := a.toolByName(name); !ok {
		err := domain.NewDomainError("Simple.Run", domain.ErrToolNotFound, name)
		tracer.RecordError(span, err)
		return "", err
	}
	if args == nil {
		err := domain.NewDomainError("Simple.Run", domain.ErrInvalidToolCall,
			"tool parameters must be a JSON object")
		tracer.RecordError(span, err)
		return "", err
	}

	observation, err := a.executeTool(ctx, name, args)
	if err != nil {
		// A failed invocation is evidence for the model, not a fatal error.
		observation = fmt.Sprintf("Tool execution failed: %v", err)
	}

	// The result goes in as a user-style evidence message so the follow-up
	// prompt can reference it separately from assistant output.
	a.AddMessage(domain.UserMessage("TOOL_RESULT:" + observation))

	final, err := a.chat(ctx)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}
	tracer.SetOK(span)
	return final.Message.Content, nil
}

// chat calls the model with the current history and appends the reply.
func (a *Simple) chat(ctx context.Context) (*domain.ChatResponse, error) {
	resp, err := a.client.Chat(ctx, domain.ChatRequest{
		Messages:    a.history,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, err
	}
	msg := resp.Message
	recordUsage(&msg, resp.Usage)
	a.AddMessage(msg)
	return resp, nil
}

// parseToolCall scans model output for a TOOL_CALL tag. It returns the tool
// name and the argument object, trying strict JSON first and a lenient
// repair pass second; args is nil when neither yields a JSON object.
func parseToolCall(text string) (name string, args json.RawMessage, found bool) {
	m := toolCallRe.FindStringSubmatch(text)
	if m == nil {
		return "", nil, false
	}
	name = m[1]
	raw := strings.TrimSpace(m[2])

	if obj := asJSONObject(raw); obj != nil {
		return name, obj, true
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		if obj := asJSONObject(repaired); obj != nil {
			return name, obj, true
		}
	}
	return name, nil, true
}

// asJSONObject returns the input as raw JSON if it parses to an object.
func asJSONObject(s string) json.RawMessage {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil
	}
	return json.RawMessage(s)
}
