package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"vero/internal/domain"
)

func staticTool(name, result string) *Func {
	return New(name, "returns "+result, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return result, nil
		})
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(staticTool("echo", "hi"))

	got, err := r.Get("echo")
	require.NoError(t, err)
	require.Equal(t, "echo", got.Name())

	_, err = r.Get("missing")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrToolNotFound))
}

func TestRegistryLastWins(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(staticTool("echo", "first"))
	r.Register(staticTool("echo", "second"))

	got, err := r.Get("echo")
	require.NoError(t, err)

	res, err := got.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "second", res.Content)

	require.Len(t, r.Tools(), 1)
}

func TestRegistryWithValidation(t *testing.T) {
	r := NewRegistry(nil, WithValidation())
	r.Register(newAddTool())

	got, err := r.Get("add")
	require.NoError(t, err)

	// Registered tools reject payloads that violate their schema.
	res, err := got.Execute(context.Background(), []byte(`{"a": "two", "b": 3}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(staticTool("c", "1"))
	r.Register(staticTool("a", "2"))
	r.Register(staticTool("b", "3"))

	var names []string
	for _, tl := range r.Tools() {
		names = append(names, tl.Name())
	}
	require.Equal(t, []string{"c", "a", "b"}, names)

	schemas := r.Schemas()
	require.Len(t, schemas, 3)
	require.Equal(t, "c", schemas[0].Name)
	require.Equal(t, "b", schemas[2].Name)
}
