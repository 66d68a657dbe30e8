package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vero/internal/domain"
)

// errReader yields its payload, then fails, simulating a connection dropped
// mid-stream.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		return n, e.err
	}
	return n, err
}

func (e *errReader) Close() error { return nil }

func parseJSONDelta(data []byte) (*domain.StreamDelta, error) {
	var d domain.StreamDelta
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func TestParseSSEStream(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		": comment\n" +
			"data: {\"content\":\"a\"}\n" +
			"\n" +
			"event: noise\n" +
			"data: {\"content\":\"b\"}\n" +
			"data: not json\n" +
			"data: [DONE]\n"))

	ch := parseSSEStream(context.Background(), body, parseJSONDelta)

	var got []domain.StreamDelta
	for d := range ch {
		got = append(got, d)
	}
	require.Len(t, got, 3)
	require.Equal(t, "a", got[0].Content)
	require.Equal(t, "b", got[1].Content)
	require.True(t, got[2].Done)
	require.NoError(t, got[2].Err)
}

func TestParseSSEStreamTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	body := &errReader{r: strings.NewReader("data: {\"content\":\"partial\"}\n"), err: boom}

	ch := parseSSEStream(context.Background(), body, parseJSONDelta)

	var got []domain.StreamDelta
	for d := range ch {
		got = append(got, d)
	}
	// The failure is observed on consumption, as the final delta.
	last := got[len(got)-1]
	require.True(t, last.Done)
	require.ErrorIs(t, last.Err, boom)
}

func TestParseSSEStreamContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := io.NopCloser(strings.NewReader(
		"data: {\"content\":\"a\"}\ndata: {\"content\":\"b\"}\n"))
	ch := parseSSEStream(ctx, body, parseJSONDelta)

	var count int
	for range ch {
		count++
	}
	require.LessOrEqual(t, count, 1)
}

func TestCollect(t *testing.T) {
	ch := make(chan domain.StreamDelta, 4)
	ch <- domain.StreamDelta{Content: "Hel"}
	ch <- domain.StreamDelta{Content: "lo", ToolCalls: []domain.ToolCall{{ID: "call_1", Name: "add"}}}
	ch <- domain.StreamDelta{Done: true, Usage: &domain.Usage{TotalTokens: 7}}
	close(ch)

	resp, err := Collect(ch)
	require.NoError(t, err)
	require.Equal(t, "Hello", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	require.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestCollectError(t *testing.T) {
	boom := errors.New("mid-stream failure")
	ch := make(chan domain.StreamDelta, 2)
	ch <- domain.StreamDelta{Content: "partial"}
	ch <- domain.StreamDelta{Done: true, Err: boom}
	close(ch)

	_, err := Collect(ch)
	require.ErrorIs(t, err, boom)
}
