// Package llm provides the chat transport abstraction used by the agent
// loop, implemented over OpenAI-compatible endpoints.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one transcript entry.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool messages only
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolResult is the outcome of dispatching one tool call. IsError marks
// results produced from a failure; the content still reads as a normal
// tool message so the model can react to it.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// ToolDef describes a tool offered to the model. Parameters is a JSON
// schema object.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ChatRequest is a single model invocation: the full transcript so far
// plus the tools the model may call. An empty Tools slice withholds
// tools entirely, which is how forced finalization asks for a plain
// text answer.
type ChatRequest struct {
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// ChatResponse is the model's reply to one ChatRequest.
type ChatResponse struct {
	Content      string
	Thinking     string
	ToolCalls    []ToolCall
	StopReason   string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Provider is the chat transport. Chat blocks until the model replies
// or ctx is done; a non-nil error after internal retries is terminal
// for the current run.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Model() string
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message carrying the
// model's text and any tool calls it requested.
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage converts a ToolResult into the tool-role message fed back
// to the model.
func ToolMessage(r ToolResult) Message {
	return Message{Role: RoleTool, Content: r.Content, ToolCallID: r.CallID}
}
