// ABOUTME: OpenAI-compatible wire types for the chat completions API
// ABOUTME: Requests tolerate string or multi-part message content

package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageContent holds chat message content that may arrive either as a
// plain string or as a list of typed parts. Text parts are joined with
// newlines; non-text parts are ignored.
type MessageContent string

// UnmarshalJSON accepts both the string and part-list encodings.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = MessageContent(s)
		return nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content must be a string or a list of parts")
	}

	var texts []string
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	*c = MessageContent(strings.Join(texts, "\n"))
	return nil
}

// ChatMessage is a single conversation turn in a chat completion request.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ChatCompletionRequest is the JSON request body for POST /v1/chat/completions.
// SessionID and ProjectID are extensions for session continuity.
type ChatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	Stream    bool          `json:"stream,omitempty"`
	User      string        `json:"user,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	ProjectID string        `json:"project_id,omitempty"`
}

// ResponseMessage is the assistant message in a completion choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is a completion alternative. The gateway always returns exactly one.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the JSON response for non-streaming completions.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`

	// SessionID is a non-standard extension so clients can continue
	// the conversation.
	SessionID string `json:"session_id,omitempty"`
}

// ChunkDelta carries the incremental payload of a streamed chunk.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is a choice within a streamed chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatCompletionChunk is a single streamed SSE frame body.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ModelObject is a single entry in the models listing.
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the JSON response for GET /v1/models.
type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// SessionInfo describes a session in the sessions extension API.
type SessionInfo struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	Model        string  `json:"model"`
	CreatedAt    string  `json:"created_at"`
	LastActive   string  `json:"last_active,omitempty"`
	IsActive     bool    `json:"is_active"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	MessageCount int     `json:"message_count"`
}

// SessionList is the JSON response for GET /v1/sessions.
type SessionList struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
}

// MessageInfo describes one persisted transcript message.
type MessageInfo struct {
	ID           string  `json:"id"`
	Role         string  `json:"role"`
	Content      string  `json:"content"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
	CreatedAt    string  `json:"created_at"`
}

// MessageList is the JSON response for GET /v1/sessions/{id}/messages.
type MessageList struct {
	SessionID string        `json:"session_id"`
	Messages  []MessageInfo `json:"messages"`
	Total     int           `json:"total"`
}

// CreateSessionRequest is the JSON request body for POST /v1/sessions.
type CreateSessionRequest struct {
	ProjectID    string `json:"project_id,omitempty"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ProjectInfo describes a project record.
type ProjectInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
	CreatedAt   string `json:"created_at"`
	IsActive    bool   `json:"is_active"`
}

// ProjectList is the JSON response for GET /v1/projects.
type ProjectList struct {
	Projects []ProjectInfo `json:"projects"`
	Total    int           `json:"total"`
}

// CreateProjectRequest is the JSON request body for POST /v1/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	ClaudeVersion string `json:"claude_version,omitempty"`
	ActiveRuns    int    `json:"active_runs"`
}
