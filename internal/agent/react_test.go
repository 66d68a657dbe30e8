package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"vero/internal/domain"
)

func TestReActFinish(t *testing.T) {
	add, _ := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply("Thought: I already know this.\nAction: Finish\nAction Input: {\"answer\": \"X\"}"),
	}}

	a, err := NewReAct(Config{Name: "r", Client: client, Tools: []domain.Tool{add}})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "X", out)
	require.Equal(t, 1, client.calls())
}

func TestReActToolLoop(t *testing.T) {
	add, invoked := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply("Thought: I need to add two numbers.\nAction: add\nAction Input: {\"a\": 2, \"b\": 3}"),
		reply("Thought: I have the result.\nAction: Finish\nAction Input: {\"answer\": \"The result is 5\"}"),
	}}

	a, err := NewReAct(Config{Name: "r", Client: client, Tools: []domain.Tool{add}, MaxTurns: 3})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "what is 2 + 3?")
	require.NoError(t, err)
	require.Equal(t, "The result is 5", out)
	require.Equal(t, 1, *invoked)
	require.Equal(t, 2, client.calls())

	// The second call's system prompt carries the scratchpad with the
	// observation from turn one.
	sys := client.reqs[1].Messages[0]
	require.Equal(t, domain.RoleSystem, sys.Role)
	require.Contains(t, sys.Content, "Action: add")
	require.Contains(t, sys.Content, "Observation: 5")

	// Turn one rendered an empty scratchpad.
	require.NotContains(t, client.reqs[0].Messages[0].Content, "Observation:")
}

func TestReActParseFailureContinues(t *testing.T) {
	add, _ := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply("I will just ramble without any structure."),
		reply("Thought: recovering.\nAction: Finish\nAction Input: {\"answer\": \"done\"}"),
	}}

	a, err := NewReAct(Config{Name: "r", Client: client, Tools: []domain.Tool{add}, MaxTurns: 3})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "done", out)

	// The raw text became the observation for the next turn.
	sys := client.reqs[1].Messages[0]
	require.Contains(t, sys.Content, "Observation: I will just ramble")
	require.NotContains(t, sys.Content, "Action: \n")
}

func TestReActUnknownToolBecomesObservation(t *testing.T) {
	add, _ := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply("Thought: hm.\nAction: multiply\nAction Input: {\"a\": 2, \"b\": 3}"),
		reply("Thought: no such tool.\nAction: Finish\nAction Input: {\"answer\": \"cannot\"}"),
	}}

	a, err := NewReAct(Config{Name: "r", Client: client, Tools: []domain.Tool{add}, MaxTurns: 3})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "cannot", out)
	require.Equal(t, 2, client.calls(), "loop continues after unknown tool")

	sys := client.reqs[1].Messages[0]
	require.Contains(t, sys.Content, "tool not found")
}

func TestReActBudgetExhausted(t *testing.T) {
	add, _ := addTool()
	client := &mockClient{replies: []domain.ChatResponse{
		reply("Thought: working.\nAction: add\nAction Input: {\"a\": 1, \"b\": 1}"),
	}}

	a, err := NewReAct(Config{Name: "r", Client: client, Tools: []domain.Tool{add}, MaxTurns: 1})
	require.NoError(t, err)

	// One model call, no Finish: the raw content comes back as a
	// best-effort answer, not an error.
	out, err := a.Run(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "Thought: working.\nAction: add\nAction Input: {\"a\": 1, \"b\": 1}", out)
	require.Equal(t, 1, client.calls())
}

func TestNewReActRequiresTools(t *testing.T) {
	_, err := NewReAct(Config{Name: "r", Client: &mockClient{}})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestParseReActStep(t *testing.T) {
	step, err := parseReActStep("Thought: add them\nAction: add\nAction Input: {\"a\": 1, \"b\": 2}")
	require.NoError(t, err)
	require.Equal(t, "add", step.action)
	require.Equal(t, "add them", step.thought)
	require.Equal(t, float64(1), step.actionInput["a"])

	_, err = parseReActStep("no structure at all")
	require.Error(t, err)

	_, err = parseReActStep("Action: add\nAction Input: not json")
	require.Error(t, err)

	// Action Input parsing is strict: single quotes are rejected.
	_, err = parseReActStep("Action: add\nAction Input: {'a': 1}")
	require.Error(t, err)
}
