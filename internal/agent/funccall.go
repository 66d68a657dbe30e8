package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"vero/internal/domain"
	"vero/internal/infra/tracer"
)

const funcCallDefaultPrompt = "You are an intelligent agent capable of using external tools to help solve user queries."

// FunctionCall implements the native tool-calling protocol: every turn the
// model is invoked with the full tool-schema list, and each pending tool
// call it returns is executed and answered with a tool-role message before
// the next turn.
type FunctionCall struct {
	base
	schemas    []domain.ToolSchema
	toolChoice string
}

// NewFunctionCall builds a FunctionCall agent. Tool schemas are generated
// once here; the tool set is immutable after construction.
func NewFunctionCall(cfg Config) (*FunctionCall, error) {
	b, err := newBase(cfg)
	if err != nil {
		return nil, err
	}

	a := &FunctionCall{base: b, toolChoice: cfg.ToolChoice}
	if a.toolChoice == "" {
		a.toolChoice = domain.ToolChoiceAuto
	}

	a.schemas = make([]domain.ToolSchema, 0, len(a.tools))
	for _, t := range a.tools {
		a.schemas = append(a.schemas, t.Schema())
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = funcCallDefaultPrompt
	}
	a.AddMessage(domain.SystemMessage(prompt))

	return a, nil
}

// Run executes up to MaxTurns model calls. A reply without tool calls is the
// final answer; exhausting the budget without one is fatal for this
// strategy, unlike ReAct's graceful fallback.
func (a *FunctionCall) Run(ctx context.Context, input string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.run",
		trace.WithAttributes(
			tracer.StringAttr("agent.name", a.name),
			tracer.StringAttr("agent.strategy", "funccall"),
			tracer.StringAttr("agent.run_id", newRunID()),
		),
	)
	defer span.End()

	a.AddMessage(domain.UserMessage(input))

	for turn := 1; turn <= a.maxTurns; turn++ {
		a.logger.Debug("funccall turn", "agent", a.name, "turn", turn, "max_turns", a.maxTurns)

		resp, err := a.client.Chat(ctx, domain.ChatRequest{
			Messages:    a.history,
			Tools:       a.schemas,
			ToolChoice:  a.toolChoice,
			Temperature: a.temperature,
		})
		if err != nil {
			tracer.RecordError(span, err)
			return "", err
		}

		assistant := resp.Message
		recordUsage(&assistant, resp.Usage)
		a.AddMessage(assistant)

		if len(assistant.ToolCalls) == 0 {
			a.logger.Debug("no tool calls, returning final answer", "agent", a.name)
			tracer.SetOK(span)
			return assistant.Content, nil
		}

		// Every pending call in the turn gets exactly one tool-role reply,
		// linked by the originating call identifier.
		for _, tc := range assistant.ToolCalls {
			callID := tc.ID
			if callID == "" {
				// Some compatible servers omit call IDs; mint one so the
				// result message still links back.
				callID = "call_" + ulid.Make().String()
			}

			args := tc.Arguments
			if asJSONObject(string(args)) == nil {
				// Malformed arguments degrade to an empty object rather
				// than aborting the turn.
				a.logger.Warn("malformed tool arguments, using empty object",
					"agent", a.name, "tool", tc.Name, "raw", string(args))
				args = json.RawMessage(`{}`)
			}

			if _, ok := a.toolByName(tc.Name); !ok {
				err := domain.NewDomainError("FunctionCall.Run", domain.ErrToolNotFound, tc.Name)
				tracer.RecordError(span, err)
				return "", err
			}

			output, err := a.executeTool(ctx, tc.Name, args)
			if err != nil {
				// Runtime failures become the tool's result text so the
				// model can recover.
				output = fmt.Sprintf("Tool execution failed: %v", err)
			}
			a.AddMessage(domain.ToolMessage(output, callID))
		}
	}

	err := domain.NewDomainError("FunctionCall.Run", domain.ErrMaxTurns,
		fmt.Sprintf("no final answer after %d turns", a.maxTurns))
	tracer.RecordError(span, err)
	return "", err
}
