package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"vero/internal/domain"
	"vero/internal/infra/tracer"
)

var (
	actionRe      = regexp.MustCompile(`(?m)^Action:\s*(.+)$`)
	actionInputRe = regexp.MustCompile(`(?ms)^Action Input:\s*(\{.*\})\s*$`)
	thoughtRe     = regexp.MustCompile(`(?s)Thought:\s*(.+?)\s*Action:`)
)

// finishAction is the terminal token that ends a ReAct loop.
const finishAction = "finish"

// The default template carries two placeholders, {tool_descriptions} and
// {scratchpad}, which are substituted on every turn. Custom prompts passed
// via Config.SystemPrompt use the same placeholders.
const reactPromptTemplate = `You are a ReAct-style agent.

You have access to the following tools:
{tool_descriptions}

You reason step by step using the following loop:
Thought -> Action -> Action Input -> Observation

Previous steps (do NOT repeat them, continue from here):
{scratchpad}

Follow the rules STRICTLY.

## Response Format (MUST be followed exactly)

Thought: <your reasoning for the next step>
Action: <one of the available tool names OR Finish>
Action Input: <JSON object>

### Rules for Action Input

- Action Input MUST be a valid JSON object.
- Use DOUBLE QUOTES for all keys and string values.
- DO NOT include any text outside the JSON object.
- DO NOT wrap the JSON in markdown or code blocks.
- If the Action is Finish, the Action Input MUST be:
  {"answer": "<final answer>"}

### Examples

Thought: I need to add two numbers.
Action: add
Action Input: {"a": 1, "b": 2}

Thought: I have the final result.
Action: Finish
Action Input: {"answer": "The result is 3"}

Now produce the NEXT step only.`

// ReAct implements the Thought/Action/Observation protocol. Each turn the
// system message is re-rendered from the template plus the accumulated
// scratchpad, so history stays append-only apart from that one slot.
type ReAct struct {
	base
	template string
}

// NewReAct builds a ReAct agent. At least one tool is required: the protocol
// has nothing to observe without one.
func NewReAct(cfg Config) (*ReAct, error) {
	b, err := newBase(cfg)
	if err != nil {
		return nil, err
	}
	if len(b.tools) == 0 {
		return nil, domain.NewDomainError("agent.NewReAct", domain.ErrInvalidInput,
			"react strategy requires at least one tool")
	}

	template := cfg.SystemPrompt
	if template == "" {
		template = reactPromptTemplate
	}
	return &ReAct{base: b, template: template}, nil
}

// renderSystemPrompt substitutes the current tool listing and scratchpad
// into the template. Pure function of its inputs.
func (a *ReAct) renderSystemPrompt(scratchpad string) string {
	out := strings.ReplaceAll(a.template, "{tool_descriptions}", a.ToolDescriptions())
	return strings.ReplaceAll(out, "{scratchpad}", scratchpad)
}

// reactStep is one parsed Thought/Action/Action Input block.
type reactStep struct {
	thought     string
	action      string
	actionInput map[string]any
	rawInput    json.RawMessage
}

// parseReActStep extracts the Action line and the Action Input JSON object
// from model output. The Action Input must parse as strict JSON.
func parseReActStep(text string) (*reactStep, error) {
	actionMatch := actionRe.FindStringSubmatch(text)
	if actionMatch == nil {
		return nil, fmt.Errorf("missing Action field")
	}
	action := strings.TrimSpace(actionMatch[1])

	inputMatch := actionInputRe.FindStringSubmatch(text)
	if inputMatch == nil {
		return nil, fmt.Errorf("missing or invalid Action Input field")
	}
	raw := strings.TrimSpace(inputMatch[1])

	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, fmt.Errorf("Action Input is not valid JSON: %w", err)
	}

	step := &reactStep{
		action:      action,
		actionInput: input,
		rawInput:    json.RawMessage(raw),
	}
	if m := thoughtRe.FindStringSubmatch(text); m != nil {
		step.thought = strings.TrimSpace(m[1])
	}
	return step, nil
}

// Run executes up to MaxTurns Thought/Action/Observation cycles. Tool
// failures become observations and the loop continues; exhausting the budget
// returns the last model response verbatim as a best-effort answer.
func (a *ReAct) Run(ctx context.Context, input string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.run",
		trace.WithAttributes(
			tracer.StringAttr("agent.name", a.name),
			tracer.StringAttr("agent.strategy", "react"),
			tracer.StringAttr("agent.run_id", newRunID()),
		),
	)
	defer span.End()

	var scratchpad strings.Builder
	a.AddMessage(domain.UserMessage(input))

	var lastContent string
	for turn := 1; turn <= a.maxTurns; turn++ {
		a.logger.Debug("react turn", "agent", a.name, "turn", turn, "max_turns", a.maxTurns)

		a.setSystemMessage(a.renderSystemPrompt(scratchpad.String()))

		resp, err := a.client.Chat(ctx, domain.ChatRequest{
			Messages:    a.history,
			Temperature: a.temperature,
		})
		if err != nil {
			tracer.RecordError(span, err)
			return "", err
		}
		content := resp.Message.Content
		lastContent = content

		step, parseErr := parseReActStep(content)
		if parseErr != nil {
			// Degraded turn: the raw text becomes the observation and the
			// finish-check is skipped, since no action was extracted.
			a.logger.Warn("react parse failed", "agent", a.name, "turn", turn, "error", parseErr)
			writeScratchpadBlock(&scratchpad, "", "", nil, content)
			continue
		}

		if strings.EqualFold(step.action, finishAction) {
			answer := content
			if v, ok := step.actionInput["answer"].(string); ok {
				answer = v
			}
			final := domain.AssistantMessage(answer)
			recordUsage(&final, resp.Usage)
			a.AddMessage(final)
			tracer.SetOK(span)
			return answer, nil
		}

		observation, err := a.executeTool(ctx, step.action, step.rawInput)
		if err != nil {
			// Missing tools and execution failures fold into the observation.
			observation = err.Error()
		}
		writeScratchpadBlock(&scratchpad, step.thought, step.action, step.rawInput, observation)
	}

	a.logger.Warn("react turn budget exhausted, returning last response", "agent", a.name)
	a.AddMessage(domain.AssistantMessage(lastContent))
	tracer.SetOK(span)
	return lastContent, nil
}

// setSystemMessage rewrites the system slot of the history, inserting it if
// absent. This is the single place history is not append-only.
func (a *ReAct) setSystemMessage(content string) {
	if len(a.history) > 0 && a.history[0].Role == domain.RoleSystem {
		a.history[0].Content = content
		return
	}
	a.history = append([]domain.Message{domain.SystemMessage(content)}, a.history...)
}

// writeScratchpadBlock appends one transcript block. Parse-failure turns
// carry only the observation.
func writeScratchpadBlock(sb *strings.Builder, thought, action string, input json.RawMessage, observation string) {
	sb.WriteString("\n")
	if action != "" {
		fmt.Fprintf(sb, "Thought: %s\n", thought)
		fmt.Fprintf(sb, "Action: %s\n", action)
		fmt.Fprintf(sb, "Action Input: %s\n", input)
	}
	fmt.Fprintf(sb, "Observation: %s\n", observation)
}
