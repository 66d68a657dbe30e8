package domain

import "context"

// ChatClient is the interface for any chat-completion backend.
type ChatClient interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the client's identifier (e.g., "openai").
	Name() string
}

// StreamDelta is a single incremental chunk from a streaming response.
// A non-nil Err reports a transport failure observed mid-stream; it is the
// last delta sent.
type StreamDelta struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Done      bool       `json:"done,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
	Err       error      `json:"-"`
}

// StreamingChatClient extends ChatClient with streaming support. The
// returned channel is a lazy, finite, forward-only sequence; it is closed
// when the stream ends and cannot be restarted.
type StreamingChatClient interface {
	ChatClient
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, error)
}

// Tool choice modes for the function-calling protocol.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)
