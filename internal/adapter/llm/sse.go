package llm

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"vero/internal/domain"
)

// parseSSEStream reads SSE-formatted lines from body and converts each data
// payload into a StreamDelta using the provider-specific parseLine function.
// The returned channel is closed when the stream ends, the body is closed, or
// ctx is cancelled. A transport failure mid-stream is surfaced as a final
// delta with Err set, so consumers observe it at the point of consumption.
func parseSSEStream(ctx context.Context, body io.ReadCloser, parseLine func(data []byte) (*domain.StreamDelta, error)) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()

			// Skip empty lines and comments.
			if len(line) == 0 || line[0] == ':' {
				continue
			}

			// We only care about "data: ..." lines.
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimPrefix(line, []byte("data: "))

			// Common termination signal.
			if bytes.Equal(data, []byte("[DONE]")) {
				ch <- domain.StreamDelta{Done: true}
				return
			}

			delta, err := parseLine(data)
			if err != nil {
				// Skip unparseable lines.
				continue
			}
			if delta == nil {
				continue
			}

			select {
			case ch <- *delta:
			case <-ctx.Done():
				return
			}

			if delta.Done {
				return
			}
		}
		// The scanner stopped on an I/O error rather than EOF: deliver the
		// failure in-band.
		if err := scanner.Err(); err != nil {
			select {
			case ch <- domain.StreamDelta{Done: true, Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// Collect drains a stream into a single ChatResponse, concatenating content
// deltas and accumulating tool calls. It returns the error carried by the
// stream, if any.
func Collect(ch <-chan domain.StreamDelta) (*domain.ChatResponse, error) {
	var (
		content   bytes.Buffer
		toolCalls []domain.ToolCall
		usage     domain.Usage
	)

	for delta := range ch {
		if delta.Err != nil {
			return nil, domain.WrapOp("llm.Collect", delta.Err)
		}
		content.WriteString(delta.Content)
		toolCalls = append(toolCalls, delta.ToolCalls...)
		if delta.Usage != nil {
			usage = *delta.Usage
		}
	}

	msg := domain.AssistantMessage(content.String())
	msg.ToolCalls = toolCalls
	return &domain.ChatResponse{Message: msg, Usage: usage}, nil
}
