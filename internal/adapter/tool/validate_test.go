package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"vero/internal/domain"
)

func TestWithSchemaValidation(t *testing.T) {
	wrapped, err := WithSchemaValidation(newAddTool())
	require.NoError(t, err)

	res, err := wrapped.Execute(context.Background(), json.RawMessage(`{"a": 2, "b": 3}`))
	require.NoError(t, err)
	require.Equal(t, "5", res.Content)

	// Missing required param is rejected before the handler runs.
	res, err = wrapped.Execute(context.Background(), json.RawMessage(`{"a": 2}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, res.Content, "schema validation failed")

	// Wrong type is rejected.
	res, err = wrapped.Execute(context.Background(), json.RawMessage(`{"a": "two", "b": 3}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestWithSchemaValidationBadJSON(t *testing.T) {
	wrapped, err := WithSchemaValidation(newAddTool())
	require.NoError(t, err)

	res, err := wrapped.Execute(context.Background(), json.RawMessage(`{"a":`))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, res.Content, "invalid JSON")
}

func TestWithSchemaValidationPassthrough(t *testing.T) {
	wrapped, err := WithSchemaValidation(newAddTool())
	require.NoError(t, err)
	require.Equal(t, "add", wrapped.Name())
	require.Equal(t, newAddTool().Description(), wrapped.Description())
	require.Len(t, wrapped.Params(), 2)
}

var _ domain.Tool = (*SchemaValidatingTool)(nil)
