package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"vero/internal/domain"
)

func TestSimpleToolCallScenario(t *testing.T) {
	add, invoked := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply(`TOOL_CALL:add:{"a": 2, "b": 3}`),
		reply("The answer is 5."),
	}}

	a, err := NewSimple(Config{Name: "calc", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "what is 2 + 3?")
	require.NoError(t, err)
	require.Equal(t, "The answer is 5.", out)

	// Exactly one tool invocation, exactly one follow-up model call.
	require.Equal(t, 1, *invoked)
	require.Equal(t, 2, client.calls())

	// The tool output went in as user-role evidence before the second call.
	second := client.reqs[1].Messages
	evidence := second[len(second)-1]
	require.Equal(t, domain.RoleUser, evidence.Role)
	require.Equal(t, "TOOL_RESULT:5", evidence.Content)
}

func TestSimpleNoToolCall(t *testing.T) {
	client := &mockClient{replies: []domain.ChatResponse{reply("Paris.")}}
	a, err := NewSimple(Config{Name: "qa", Client: client})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "capital of France?")
	require.NoError(t, err)
	require.Equal(t, "Paris.", out)
	require.Equal(t, 1, client.calls())
}

func TestSimpleUnknownTool(t *testing.T) {
	add, _ := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply(`TOOL_CALL:subtract:{"a": 2, "b": 3}`),
	}}
	a, err := NewSimple(Config{Name: "calc", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "2 - 3?")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrToolNotFound))
	// No second model call after the fatal lookup failure.
	require.Equal(t, 1, client.calls())
}

func TestSimpleInvalidParams(t *testing.T) {
	add, invoked := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply(`TOOL_CALL:add:[2, 3]`),
	}}
	a, err := NewSimple(Config{Name: "calc", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "add 2 and 3")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrInvalidToolCall))
	require.Equal(t, 0, *invoked)
}

func TestSimpleLenientParamParsing(t *testing.T) {
	add, invoked := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		// Single quotes: invalid JSON, accepted via the repair fallback.
		reply(`TOOL_CALL:add:{'a': 2, 'b': 3}`),
		reply("5"),
	}}
	a, err := NewSimple(Config{Name: "calc", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "add")
	require.NoError(t, err)
	require.Equal(t, "5", out)
	require.Equal(t, 1, *invoked)
}

func TestSimpleToolFailureBecomesEvidence(t *testing.T) {
	client := &mockClient{replies: []domain.ChatResponse{
		reply(`TOOL_CALL:boom:{}`),
		reply("The tool did not work."),
	}}
	a, err := NewSimple(Config{Name: "calc", Client: client, Tools: []domain.Tool{failingTool("boom")}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "try the tool")
	require.NoError(t, err)
	require.Equal(t, "The tool did not work.", out)
	require.Equal(t, 2, client.calls())

	second := client.reqs[1].Messages
	evidence := second[len(second)-1]
	require.Contains(t, evidence.Content, "TOOL_RESULT:Tool execution failed")
}

func TestSimpleDefaultPrompt(t *testing.T) {
	add, _ := addTool()
	a, err := NewSimple(Config{Name: "calc", Client: &mockClient{}, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	sys := a.History()[0]
	require.Equal(t, domain.RoleSystem, sys.Role)
	require.Contains(t, sys.Content, "add(a: integer, b: integer) - Add two integers.")
	require.Contains(t, sys.Content, "TOOL_CALL:tool_name:")

	// Without tools, the plain assistant prompt is used.
	plain, err := NewSimple(Config{Name: "qa", Client: &mockClient{}})
	require.NoError(t, err)
	require.Equal(t, simplePromptWithoutTools, plain.History()[0].Content)

	// Explicit prompt overrides generation.
	custom, err := NewSimple(Config{Name: "c", Client: &mockClient{}, SystemPrompt: "be terse"})
	require.NoError(t, err)
	require.Equal(t, "be terse", custom.History()[0].Content)
}

func TestParseToolCall(t *testing.T) {
	name, args, found := parseToolCall(`prefix text TOOL_CALL:add:{"a": 1}`)
	require.True(t, found)
	require.Equal(t, "add", name)
	require.JSONEq(t, `{"a": 1}`, string(args))

	_, _, found = parseToolCall("just a normal answer")
	require.False(t, found)

	// Unparseable payload keeps the call flag but yields nil args.
	name, args, found = parseToolCall("TOOL_CALL:add:not even close")
	require.True(t, found)
	require.Equal(t, "add", name)
	require.Nil(t, args)
}
