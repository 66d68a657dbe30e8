package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3", 5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"2 ** 10", 1024},
		{"2 ^ 3 ^ 2", 512}, // right-associative
		{"-2 ^ 2", -4},
		{"(-2) ^ 2", 4},
		{"--5", 5},
		{"sqrt(16)", 4},
		{"abs(-3.5)", 3.5},
		{"floor(2.9) + ceil(2.1)", 5},
		{"pow(2, 8)", 256},
		{"min(3, max(1, 2))", 2},
		{"2 * pi * 0", 0},
		{"round(e)", 3},
		{"1e3 + 1", 1001},
		{"1.5e-1", 0.15},
	}
	for _, tc := range tests {
		got, err := Evaluate(tc.expr)
		require.NoError(t, err, "expr %q", tc.expr)
		require.InDelta(t, tc.want, got, 1e-9, "expr %q", tc.expr)
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		expr    string
		wantMsg string
	}{
		{"1 / 0", "division by zero"},
		{"5 % 0", "modulo by zero"},
		{"sqrt(-1)", "math domain error"},
		{"__import__('os')", "not allowed"},
		{"open(1)", "not allowed"},
		{"2 +", "unexpected end"},
		{"(2 + 3", "missing closing parenthesis"},
		{"2 3", "unexpected"},
		{"sqrt", "requires arguments"},
		{"pow(2)", "takes two arguments"},
		{"", "unexpected end"},
	}
	for _, tc := range tests {
		_, err := Evaluate(tc.expr)
		require.Error(t, err, "expr %q", tc.expr)
		require.Contains(t, err.Error(), tc.wantMsg, "expr %q", tc.expr)
	}
}

func TestCalculatorTool(t *testing.T) {
	calc := NewCalculator()
	require.Equal(t, "math_evaluate", calc.Name())

	res, err := calc.Execute(context.Background(), json.RawMessage(`{"expr": "2 + 3"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "5", res.Content)

	// Evaluation failures come back as observation text, not tool errors.
	res, err = calc.Execute(context.Background(), json.RawMessage(`{"expr": "1/0"}`))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content, "Evaluation error")
}
