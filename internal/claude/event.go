// ABOUTME: Typed event model for Claude Code stream-json output
// ABOUTME: Defines Event, tool use/result records, and usage payloads

package claude

import "encoding/json"

// EventType identifies the kind of a parsed output event. The set is closed:
// every consumer branches over these constants.
type EventType string

const (
	EventSystem     EventType = "system"
	EventUser       EventType = "user"
	EventAssistant  EventType = "assistant"
	EventResult     EventType = "result"
	EventError      EventType = "error"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"

	// EventText is the sentinel type for raw non-JSON output lines. The
	// parser wraps such lines instead of failing the stream.
	EventText EventType = "text"
)

// Usage carries token counts reported by the CLI.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessageBody is the nested message payload of user/assistant events.
// Content is either a bare string or a list of typed content parts, so it
// stays raw until extraction.
type MessageBody struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Event is one structured unit of Claude Code output, parsed from a single
// JSONL line.
type Event struct {
	Type       EventType    `json:"type"`
	Subtype    string       `json:"subtype,omitempty"`
	Message    *MessageBody `json:"message,omitempty"`
	SessionID  string       `json:"session_id,omitempty"`
	Model      string       `json:"model,omitempty"`
	CWD        string       `json:"cwd,omitempty"`
	Tools      []string     `json:"tools,omitempty"`
	Result     string       `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	Usage      *Usage       `json:"usage,omitempty"`
	CostUSD    float64      `json:"cost_usd,omitempty"`
	DurationMS int64        `json:"duration_ms,omitempty"`
	NumTurns   int          `json:"num_turns,omitempty"`
	Timestamp  string       `json:"timestamp,omitempty"`

	// Text holds the raw line for EventText sentinels.
	Text string `json:"content,omitempty"`
}

// ToolUse is one tool invocation extracted from an assistant event.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is one tool result extracted from a user event.
type ToolResult struct {
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// IsSystem reports whether the event is a system message.
func (e *Event) IsSystem() bool {
	return e.Type == EventSystem
}

// IsUser reports whether the event originates from the user side,
// either by type or by the nested message role.
func (e *Event) IsUser() bool {
	return e.Type == EventUser || (e.Message != nil && e.Message.Role == "user")
}

// IsAssistant reports whether the event originates from the assistant,
// either by type or by the nested message role.
func (e *Event) IsAssistant() bool {
	return e.Type == EventAssistant || (e.Message != nil && e.Message.Role == "assistant")
}

// IsFinal reports whether the event is the terminal result message.
func (e *Event) IsFinal() bool {
	return e.Type == EventResult
}
