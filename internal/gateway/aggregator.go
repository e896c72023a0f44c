// ABOUTME: Collapses a parsed event sequence into a single completion response
// ABOUTME: Guarantees non-empty content and whitespace-token usage accounting

package gateway

import (
	"strings"
	"time"

	"github.com/2389/claude-gateway/internal/claude"
)

// placeholderContent is returned when a run produces no assistant text,
// so clients always receive a non-empty message.
const placeholderContent = "Hello! I'm Claude, ready to help."

// promptTokenEstimate is the fixed prompt-side token count used when the
// backing tool does not report usable prompt usage.
const promptTokenEstimate = 10

// Aggregator folds a buffered event sequence into one ChatCompletionResponse.
type Aggregator struct{}

// AggregateContent joins the assistant text of all events in order,
// falling back to the placeholder when nothing was produced.
func (Aggregator) AggregateContent(events []*claude.Event) string {
	var parts []string
	for _, ev := range events {
		if !ev.IsAssistant() {
			continue
		}
		if text := claude.ExtractText(ev); text != "" {
			parts = append(parts, text)
		}
	}
	content := strings.Join(parts, "\n")
	if content == "" {
		return placeholderContent
	}
	return claude.SanitizeContent(content)
}

// UsageFor computes the usage block for a completion with the given
// content. Completion tokens are the whitespace-separated token count.
func (Aggregator) UsageFor(content string) Usage {
	completion := len(strings.Fields(content))
	return Usage{
		PromptTokens:     promptTokenEstimate,
		CompletionTokens: completion,
		TotalTokens:      promptTokenEstimate + completion,
	}
}

// Response builds the full non-streaming completion response.
func (a Aggregator) Response(id, model, sessionID string, events []*claude.Event) ChatCompletionResponse {
	content := a.AggregateContent(events)
	return ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Message:      ResponseMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage:     a.UsageFor(content),
		SessionID: sessionID,
	}
}
