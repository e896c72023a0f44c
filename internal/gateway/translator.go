// ABOUTME: Translates parsed event sequences into OpenAI streaming SSE frames
// ABOUTME: Emits role, bounded content, and finish chunks plus heartbeat comments

package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/claude-gateway/internal/claude"
)

// StreamTranslator writes an OpenAI-compatible SSE stream for one
// completion. All frames share the completion id, model, and creation
// timestamp. Content chunks are capped at maxChunks; text past the
// ceiling is dropped.
type StreamTranslator struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger

	id        string
	model     string
	created   int64
	maxChunks int
}

// NewStreamTranslator prepares a translator and writes the SSE response
// headers. maxChunks values below 1 are raised to 1.
func NewStreamTranslator(w http.ResponseWriter, flusher http.Flusher, id, model string, maxChunks int, logger *slog.Logger) *StreamTranslator {
	if maxChunks < 1 {
		maxChunks = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &StreamTranslator{
		w:         w,
		flusher:   flusher,
		logger:    logger,
		id:        id,
		model:     model,
		created:   time.Now().Unix(),
		maxChunks: maxChunks,
	}
}

// WriteHeartbeat emits an SSE comment frame to keep the connection alive
// while the backing run is still in flight.
func (t *StreamTranslator) WriteHeartbeat() {
	fmt.Fprint(t.w, ": heartbeat\n\n")
	t.flusher.Flush()
}

// WriteRole emits the opening chunk that announces the assistant role.
func (t *StreamTranslator) WriteRole() {
	t.writeChunk(ChunkDelta{Role: "assistant"}, nil)
}

// WriteContent emits one content delta chunk.
func (t *StreamTranslator) WriteContent(text string) {
	t.writeChunk(ChunkDelta{Content: text}, nil)
}

// WriteStop emits the final chunk carrying finish_reason and the
// terminating [DONE] frame.
func (t *StreamTranslator) WriteStop() {
	reason := "stop"
	t.writeChunk(ChunkDelta{}, &reason)
	fmt.Fprint(t.w, "data: [DONE]\n\n")
	t.flusher.Flush()
}

// WriteError degrades the stream with an error frame followed by [DONE].
// Headers are already sent at this point, so this is the only way to
// signal failure to the client.
func (t *StreamTranslator) WriteError(errType, code, message string) {
	data, err := json.Marshal(ErrorEnvelope{Error: APIError{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
	if err != nil {
		t.logger.Error("failed to marshal stream error", "error", err)
	} else {
		fmt.Fprintf(t.w, "data: %s\n\n", data)
	}
	fmt.Fprint(t.w, "data: [DONE]\n\n")
	t.flusher.Flush()
}

// StreamEvents writes the whole stream for a buffered event sequence:
// the role chunk, up to maxChunks content chunks, then the stop chunk.
// Runs with no assistant text stream the placeholder instead.
func (t *StreamTranslator) StreamEvents(events []*claude.Event) {
	t.WriteRole()

	texts := assistantTexts(events)
	if len(texts) == 0 {
		texts = []string{placeholderContent}
	}
	if len(texts) > t.maxChunks {
		texts = texts[:t.maxChunks]
	}
	for _, text := range texts {
		t.WriteContent(text)
	}

	t.WriteStop()
}

func (t *StreamTranslator) writeChunk(delta ChunkDelta, finishReason *string) {
	chunk := ChatCompletionChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		t.logger.Error("failed to marshal stream chunk", "error", err)
		return
	}
	fmt.Fprintf(t.w, "data: %s\n\n", data)
	t.flusher.Flush()
}

// assistantTexts returns the sanitized text of each assistant event, in order.
func assistantTexts(events []*claude.Event) []string {
	var texts []string
	for _, ev := range events {
		if !ev.IsAssistant() {
			continue
		}
		if text := claude.ExtractText(ev); text != "" {
			texts = append(texts, claude.SanitizeContent(text))
		}
	}
	return texts
}
