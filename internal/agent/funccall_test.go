package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"vero/internal/adapter/tool"
	"vero/internal/domain"
)

func TestFunctionCallScenario(t *testing.T) {
	add, invoked := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		toolCallReply(domain.ToolCall{ID: "call_1", Name: "add", Arguments: json.RawMessage(`{"a": 2, "b": 3}`)}),
		reply("2 + 3 = 5"),
	}}

	a, err := NewFunctionCall(Config{Name: "f", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "what is 2 + 3?")
	require.NoError(t, err)
	require.Equal(t, "2 + 3 = 5", out)
	require.Equal(t, 1, *invoked)

	// Tool schemas and choice mode go out on every call.
	for _, req := range client.reqs {
		require.Len(t, req.Tools, 1)
		require.Equal(t, "add", req.Tools[0].Name)
		require.Equal(t, domain.ToolChoiceAuto, req.ToolChoice)
	}

	// The tool result message links back to the originating call.
	second := client.reqs[1].Messages
	result := second[len(second)-1]
	require.Equal(t, domain.RoleTool, result.Role)
	require.Equal(t, "call_1", result.ToolCallID)
	require.Equal(t, "5", result.Content)
}

func TestFunctionCallMultipleCallsPerTurn(t *testing.T) {
	add, invoked := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		toolCallReply(
			domain.ToolCall{ID: "call_a", Name: "add", Arguments: json.RawMessage(`{"a": 1, "b": 2}`)},
			domain.ToolCall{ID: "call_b", Name: "add", Arguments: json.RawMessage(`{"a": 3, "b": 4}`)},
		),
		reply("3 and 7"),
	}}

	a, err := NewFunctionCall(Config{Name: "f", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "two sums")
	require.NoError(t, err)
	require.Equal(t, "3 and 7", out)
	require.Equal(t, 2, *invoked)

	// Exactly K tool-role messages, in call order, before the next model call.
	second := client.reqs[1].Messages
	require.Equal(t, domain.RoleTool, second[len(second)-2].Role)
	require.Equal(t, "call_a", second[len(second)-2].ToolCallID)
	require.Equal(t, "3", second[len(second)-2].Content)
	require.Equal(t, "call_b", second[len(second)-1].ToolCallID)
	require.Equal(t, "7", second[len(second)-1].Content)
}

func TestFunctionCallNoToolCalls(t *testing.T) {
	client := &mockClient{replies: []domain.ChatResponse{reply("direct answer")}}
	a, err := NewFunctionCall(Config{Name: "f", Client: client})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "direct answer", out)
	require.Equal(t, 1, client.calls())
}

func TestFunctionCallUnknownToolFatal(t *testing.T) {
	add, _ := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		toolCallReply(domain.ToolCall{ID: "call_1", Name: "subtract", Arguments: json.RawMessage(`{}`)}),
	}}
	a, err := NewFunctionCall(Config{Name: "f", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "2 - 3?")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrToolNotFound))
	// The run terminated without calling the model again.
	require.Equal(t, 1, client.calls())
}

func TestFunctionCallMalformedArgsDegradeToEmpty(t *testing.T) {
	var got map[string]any
	probe := tool.New("probe", "records args", []domain.Param{
		{Name: "limit", Type: domain.TypeInt, Default: 7},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		got = args
		return "ok", nil
	})

	client := &mockClient{replies: []domain.ChatResponse{
		toolCallReply(domain.ToolCall{ID: "call_1", Name: "probe", Arguments: json.RawMessage(`{"limit":`)}),
		reply("done"),
	}}
	a, err := NewFunctionCall(Config{Name: "f", Client: client, Tools: []domain.Tool{probe}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, "done", out)
	// Invoked with empty arguments; declared defaults still apply.
	require.Equal(t, 7, got["limit"])
}

func TestFunctionCallToolFailureBecomesResult(t *testing.T) {
	client := &mockClient{replies: []domain.ChatResponse{
		toolCallReply(domain.ToolCall{ID: "call_1", Name: "boom", Arguments: json.RawMessage(`{}`)}),
		reply("it failed"),
	}}
	a, err := NewFunctionCall(Config{Name: "f", Client: client, Tools: []domain.Tool{failingTool("boom")}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "try")
	require.NoError(t, err)
	require.Equal(t, "it failed", out)

	second := client.reqs[1].Messages
	result := second[len(second)-1]
	require.Equal(t, domain.RoleTool, result.Role)
	require.Contains(t, result.Content, "Tool execution failed")
}

func TestFunctionCallMissingCallIDSynthesized(t *testing.T) {
	add, _ := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		toolCallReply(domain.ToolCall{Name: "add", Arguments: json.RawMessage(`{"a": 1, "b": 1}`)}),
		reply("2"),
	}}
	a, err := NewFunctionCall(Config{Name: "f", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "1+1")
	require.NoError(t, err)

	second := client.reqs[1].Messages
	result := second[len(second)-1]
	require.Equal(t, domain.RoleTool, result.Role)
	require.NotEmpty(t, result.ToolCallID)
}

func TestFunctionCallBudgetExhausted(t *testing.T) {
	add, _ := addTool()
	call := toolCallReply(domain.ToolCall{ID: "call_1", Name: "add", Arguments: json.RawMessage(`{"a": 1, "b": 1}`)})
	client := &mockClient{replies: []domain.ChatResponse{call, call}}

	a, err := NewFunctionCall(Config{Name: "f", Client: client, Tools: []domain.Tool{add}, MaxTurns: 2})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "loop forever")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrMaxTurns))
	require.Equal(t, 2, client.calls())
}

func TestFunctionCallUsageRecorded(t *testing.T) {
	client := &mockClient{replies: []domain.ChatResponse{reply("hi")}}
	a, err := NewFunctionCall(Config{Name: "f", Client: client})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "hello")
	require.NoError(t, err)

	h := a.History()
	assistant := h[len(h)-1]
	require.Equal(t, domain.RoleAssistant, assistant.Role)
	usage, ok := assistant.Metadata["usage"].(domain.Usage)
	require.True(t, ok)
	require.Equal(t, 15, usage.TotalTokens)
}
