// ABOUTME: Tests for the SSE stream translator
// ABOUTME: Verifies frame ordering, chunk ceiling, heartbeats, and error degradation

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2389/claude-gateway/internal/claude"
)

// parseFrames splits an SSE body into data payloads and comment frames.
func parseFrames(t *testing.T, body string) (data []string, comments []string) {
	t.Helper()
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		switch {
		case frame == "":
		case strings.HasPrefix(frame, "data: "):
			data = append(data, strings.TrimPrefix(frame, "data: "))
		case strings.HasPrefix(frame, ":"):
			comments = append(comments, frame)
		default:
			t.Fatalf("unexpected frame %q", frame)
		}
	}
	return data, comments
}

func decodeChunk(t *testing.T, data string) ChatCompletionChunk {
	t.Helper()
	var chunk ChatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		t.Fatalf("invalid chunk %q: %v", data, err)
	}
	return chunk
}

func TestStreamEvents_FrameOrder(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := NewStreamTranslator(rec, rec, "chatcmpl-1", "claude-3-5-haiku-20241022", 5, nil)

	tr.StreamEvents([]*claude.Event{
		{Type: claude.EventSystem, Subtype: "init"},
		assistantEvent(t, "Hello!"),
		{Type: claude.EventResult, Subtype: "success"},
	})

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type: got %q", ct)
	}

	data, _ := parseFrames(t, rec.Body.String())
	if len(data) != 4 {
		t.Fatalf("got %d data frames, want 4: %v", len(data), data)
	}

	role := decodeChunk(t, data[0])
	if role.Choices[0].Delta.Role != "assistant" {
		t.Errorf("opening chunk role: got %q", role.Choices[0].Delta.Role)
	}
	if role.Object != "chat.completion.chunk" {
		t.Errorf("object: got %q", role.Object)
	}

	content := decodeChunk(t, data[1])
	if content.Choices[0].Delta.Content != "Hello!" {
		t.Errorf("content delta: got %q", content.Choices[0].Delta.Content)
	}

	final := decodeChunk(t, data[2])
	if final.Choices[0].FinishReason == nil || *final.Choices[0].FinishReason != "stop" {
		t.Errorf("final chunk finish_reason: got %v", final.Choices[0].FinishReason)
	}

	if data[3] != "[DONE]" {
		t.Errorf("terminator: got %q", data[3])
	}
}

func TestStreamEvents_PlaceholderWhenEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := NewStreamTranslator(rec, rec, "chatcmpl-1", "model", 5, nil)

	tr.StreamEvents(nil)

	data, _ := parseFrames(t, rec.Body.String())
	if len(data) != 4 {
		t.Fatalf("got %d data frames, want 4", len(data))
	}
	content := decodeChunk(t, data[1])
	if content.Choices[0].Delta.Content != placeholderContent {
		t.Errorf("content delta: got %q", content.Choices[0].Delta.Content)
	}
}

func TestStreamEvents_ChunkCeiling(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := NewStreamTranslator(rec, rec, "chatcmpl-1", "model", 3, nil)

	var events []*claude.Event
	for i := 0; i < 7; i++ {
		events = append(events, assistantEvent(t, fmt.Sprintf("part %d", i)))
	}
	tr.StreamEvents(events)

	data, _ := parseFrames(t, rec.Body.String())
	// role + 3 content + stop + [DONE]
	if len(data) != 6 {
		t.Fatalf("got %d data frames, want 6: %v", len(data), data)
	}

	// Text past the ceiling is dropped.
	for i, want := range []string{"part 0", "part 1", "part 2"} {
		content := decodeChunk(t, data[i+1])
		if content.Choices[0].Delta.Content != want {
			t.Errorf("content chunk %d: got %q, want %q", i, content.Choices[0].Delta.Content, want)
		}
	}
	final := decodeChunk(t, data[4])
	if final.Choices[0].FinishReason == nil || *final.Choices[0].FinishReason != "stop" {
		t.Errorf("final chunk finish_reason: got %v", final.Choices[0].FinishReason)
	}
}

func TestWriteHeartbeat(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := NewStreamTranslator(rec, rec, "chatcmpl-1", "model", 5, nil)

	tr.WriteHeartbeat()
	tr.WriteHeartbeat()

	data, comments := parseFrames(t, rec.Body.String())
	if len(data) != 0 {
		t.Errorf("heartbeats produced data frames: %v", data)
	}
	if len(comments) != 2 || comments[0] != ": heartbeat" {
		t.Errorf("comments: got %v", comments)
	}
}

func TestWriteError_DegradesStream(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := NewStreamTranslator(rec, rec, "chatcmpl-1", "model", 5, nil)

	tr.WriteError("server_error", CodeExecutionFailed, "run failed")

	data, _ := parseFrames(t, rec.Body.String())
	if len(data) != 2 {
		t.Fatalf("got %d data frames, want 2: %v", len(data), data)
	}

	var env ErrorEnvelope
	if err := json.Unmarshal([]byte(data[0]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != CodeExecutionFailed {
		t.Errorf("error code: got %q", env.Error.Code)
	}
	if data[1] != "[DONE]" {
		t.Errorf("terminator: got %q", data[1])
	}
}
