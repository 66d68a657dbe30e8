package domain

import "time"

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Content part types for multimodal payloads.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ContentPart is one typed block in a structured message payload.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message represents a single message in a conversation.
//
// Content holds plain text; Parts holds an ordered multimodal payload and
// takes precedence over Content on the wire when non-empty. ToolCallID links
// a tool-role result message back to the assistant tool call that produced
// it. Metadata is free-form; the agent loop records token usage there.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Parts      []ContentPart  `json:"parts,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SystemMessage creates a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// UserMessage creates a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// AssistantMessage creates an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// ToolMessage creates a tool-role result message linked to the originating
// tool call.
func ToolMessage(content, toolCallID string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, Timestamp: time.Now()}
}

// Map returns the wire-facing role/content mapping for the message.
func (m Message) Map() map[string]any {
	out := map[string]any{"role": m.Role}
	if len(m.Parts) > 0 {
		out["content"] = m.Parts
	} else {
		out["content"] = m.Content
	}
	return out
}

// Validate checks the structural invariants of a message: a tool message
// must carry a tool_call_id, and an assistant message must carry content,
// parts, or tool calls.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	default:
		return NewDomainError("Message.Validate", ErrInvalidInput, "unknown role "+m.Role)
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return NewDomainError("Message.Validate", ErrInvalidInput, "tool message without tool_call_id")
	}
	if m.Role == RoleAssistant && m.Content == "" && len(m.Parts) == 0 && len(m.ToolCalls) == 0 {
		return NewDomainError("Message.Validate", ErrInvalidInput, "assistant message without content or tool calls")
	}
	return nil
}

func (m Message) String() string {
	return "[" + m.Role + "] " + m.Content
}

// ChatRequest is sent to a chat client.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

// ChatResponse is returned from a chat client.
type ChatResponse struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Message   Message   `json:"message"`
	Usage     Usage     `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// Usage tracks token consumption for one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
