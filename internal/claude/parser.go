// ABOUTME: Incremental JSONL parser for Claude Code output lines
// ABOUTME: Tracks running usage totals and extracts text/tool payloads from events

package claude

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// UsageSummary is a snapshot of the running totals accumulated while parsing
// one invocation's output. It is derived state, recomputed from events.
type UsageSummary struct {
	SessionID    string  `json:"session_id"`
	Model        string  `json:"model"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	MessageCount int     `json:"message_count"`
}

// Parser turns lines of Claude Code stream-json output into Events and keeps
// running usage totals. The first event reporting a session id or model wins;
// later conflicting values are ignored.
type Parser struct {
	sessionID    string
	model        string
	totalTokens  int
	totalCost    float64
	messageCount int
	logger       *slog.Logger
}

// NewParser creates a parser. Pass nil logger for default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With("component", "parser")}
}

// ParseLine parses a single output line. Empty and whitespace-only lines
// return nil. Malformed lines never fail: they are downgraded to a warning
// log and wrapped into a sentinel text event, leaving the running counters
// untouched.
func (p *Parser) ParseLine(line string) *Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	var event Event
	if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
		p.logger.Warn("failed to parse output line",
			"line", truncate(trimmed, 100),
			"error", err,
		)
		return &Event{Type: EventText, Text: line}
	}

	// First reported session id and model win
	if p.sessionID == "" && event.SessionID != "" {
		p.sessionID = event.SessionID
	}
	if p.model == "" && event.Model != "" {
		p.model = event.Model
	}

	if event.Usage != nil {
		p.totalTokens += event.Usage.InputTokens + event.Usage.OutputTokens
	}
	p.totalCost += event.CostUSD

	if event.Type == EventUser || event.Type == EventAssistant {
		p.messageCount++
	}

	return &event
}

// Summary returns a snapshot of the running totals.
func (p *Parser) Summary() UsageSummary {
	return UsageSummary{
		SessionID:    p.sessionID,
		Model:        p.model,
		TotalTokens:  p.totalTokens,
		TotalCost:    p.totalCost,
		MessageCount: p.messageCount,
	}
}

// Reset clears all running state.
func (p *Parser) Reset() {
	p.sessionID = ""
	p.model = ""
	p.totalTokens = 0
	p.totalCost = 0
	p.messageCount = 0
}

// contentPart is one element of a structured content list.
type contentPart struct {
	Type      string          `json:"type"`
	Text      json.RawMessage `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// ExtractText extracts the plain-text content of an event's message. Both
// the bare-string and the content-part-list shapes are handled; non-text
// parts are skipped and text parts are joined with newlines.
func ExtractText(event *Event) string {
	if event.Message == nil || len(event.Message.Content) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(event.Message.Content, &asString); err == nil {
		return asString
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(event.Message.Content, &parts); err != nil {
		return ""
	}

	var texts []string
	for _, raw := range parts {
		// A part may itself be a bare string
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			texts = append(texts, s)
			continue
		}

		var part contentPart
		if err := json.Unmarshal(raw, &part); err != nil || part.Type != "text" {
			continue
		}
		if text := decodeTextField(part.Text); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n")
}

// decodeTextField handles the two observed shapes of a text field: a bare
// string or a nested object with its own "text" key.
func decodeTextField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var nested struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Text
	}
	return ""
}

// ExtractToolUses extracts tool invocation records from an event's content.
func ExtractToolUses(event *Event) []ToolUse {
	var uses []ToolUse
	for _, part := range contentParts(event) {
		if part.Type != "tool_use" {
			continue
		}
		uses = append(uses, ToolUse{
			ID:    part.ID,
			Name:  part.Name,
			Input: part.Input,
		})
	}
	return uses
}

// ExtractToolResults extracts tool result records from an event's content.
func ExtractToolResults(event *Event) []ToolResult {
	var results []ToolResult
	for _, part := range contentParts(event) {
		if part.Type != "tool_result" {
			continue
		}
		results = append(results, ToolResult{
			ToolUseID: part.ToolUseID,
			Content:   part.Content,
			IsError:   part.IsError,
		})
	}
	return results
}

// ErrorFromEvent extracts error information from an event, if any.
// Returns the empty string when the event carries no error.
func ErrorFromEvent(event *Event) string {
	if event.Error != "" {
		return event.Error
	}
	if event.Type == EventResult && event.Result == "" {
		return "execution completed without result"
	}
	for _, result := range ExtractToolResults(event) {
		if result.IsError {
			return string(result.Content)
		}
	}
	return ""
}

func contentParts(event *Event) []contentPart {
	if event.Message == nil || len(event.Message.Content) == 0 {
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(event.Message.Content, &raws); err != nil {
		return nil
	}
	var parts []contentPart
	for _, raw := range raws {
		var part contentPart
		if err := json.Unmarshal(raw, &part); err != nil {
			// Bare-string or otherwise untyped part
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
