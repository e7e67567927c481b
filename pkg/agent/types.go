package agent

import "github.com/fiona/folio/pkg/toolexecutor"

// Message roles used in the conversation transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one tool invocation requested by the model. Arguments stay as
// the raw JSON string the model produced; decoding happens at the dispatch
// boundary so a malformed payload can be surfaced back to the model.
type ToolCall struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RawArguments string `json:"arguments"`
}

// Message is one entry in the conversation transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ImageURL   string     `json:"image_url,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ChatRequest contains one provider round trip.
type ChatRequest struct {
	Model          string
	Messages       []Message
	Tools          []toolexecutor.Definition
	EnableThinking bool
	ThinkingBudget int
	MaxTokens      int
}

// ChatResponse is what the provider extracted from the model reply.
type ChatResponse struct {
	Answer    string
	Reasoning string
	ToolCalls []ToolCall
}

// ExecutedToolCall records one tool call after dispatch, with the decoded
// arguments and the result handed back to the model.
type ExecutedToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    map[string]any `json:"result"`
}
