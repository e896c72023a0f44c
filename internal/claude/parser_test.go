// ABOUTME: Tests for the stream-json line parser
// ABOUTME: Covers malformed-line recovery, usage accumulation, and payload extraction

package claude

import (
	"testing"
)

func TestParseLine_BlankLines(t *testing.T) {
	p := NewParser(nil)

	for _, line := range []string{"", "   ", "\t", "\n"} {
		if got := p.ParseLine(line); got != nil {
			t.Errorf("ParseLine(%q) = %+v, want nil", line, got)
		}
	}
}

func TestParseLine_WellFormed(t *testing.T) {
	p := NewParser(nil)

	event := p.ParseLine(`{"type":"assistant","session_id":"sess-1","model":"claude-3-5-haiku-20241022","message":{"role":"assistant","content":"Hello!"}}`)
	if event == nil {
		t.Fatal("ParseLine returned nil for well-formed line")
	}
	if event.Type != EventAssistant {
		t.Errorf("Type: got %q", event.Type)
	}
	if event.SessionID != "sess-1" {
		t.Errorf("SessionID: got %q", event.SessionID)
	}

	summary := p.Summary()
	if summary.SessionID != "sess-1" {
		t.Errorf("summary SessionID: got %q", summary.SessionID)
	}
	if summary.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("summary Model: got %q", summary.Model)
	}
	if summary.MessageCount != 1 {
		t.Errorf("summary MessageCount: got %d", summary.MessageCount)
	}
}

func TestParseLine_FirstSessionIDWins(t *testing.T) {
	p := NewParser(nil)

	p.ParseLine(`{"type":"system","session_id":"first","model":"model-a"}`)
	p.ParseLine(`{"type":"assistant","session_id":"second","model":"model-b"}`)
	p.ParseLine(`{"type":"result","session_id":"third"}`)

	summary := p.Summary()
	if summary.SessionID != "first" {
		t.Errorf("SessionID: got %q, want %q", summary.SessionID, "first")
	}
	if summary.Model != "model-a" {
		t.Errorf("Model: got %q, want %q", summary.Model, "model-a")
	}
}

func TestParseLine_MalformedLine(t *testing.T) {
	p := NewParser(nil)

	event := p.ParseLine("this is not json")
	if event == nil {
		t.Fatal("malformed line should produce a sentinel event, not nil")
	}
	if event.Type != EventText {
		t.Errorf("Type: got %q, want %q", event.Type, EventText)
	}
	if event.Text != "this is not json" {
		t.Errorf("Text: got %q", event.Text)
	}

	// Counters are unaffected by malformed lines
	summary := p.Summary()
	if summary.TotalTokens != 0 || summary.TotalCost != 0 || summary.MessageCount != 0 {
		t.Errorf("counters changed on malformed line: %+v", summary)
	}
}

func TestParseLine_AccumulatesUsage(t *testing.T) {
	p := NewParser(nil)

	p.ParseLine(`{"type":"assistant","usage":{"input_tokens":10,"output_tokens":5},"cost_usd":0.001}`)
	p.ParseLine(`{"type":"user","usage":{"input_tokens":3,"output_tokens":0}}`)
	p.ParseLine(`{"type":"result","cost_usd":0.002}`)

	summary := p.Summary()
	if summary.TotalTokens != 18 {
		t.Errorf("TotalTokens: got %d, want 18", summary.TotalTokens)
	}
	if diff := summary.TotalCost - 0.003; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalCost: got %v, want 0.003", summary.TotalCost)
	}
	if summary.MessageCount != 2 {
		t.Errorf("MessageCount: got %d, want 2", summary.MessageCount)
	}
}

func TestParser_Reset(t *testing.T) {
	p := NewParser(nil)
	p.ParseLine(`{"type":"assistant","session_id":"sess-1","usage":{"input_tokens":10,"output_tokens":5}}`)

	p.Reset()

	summary := p.Summary()
	if summary.SessionID != "" || summary.TotalTokens != 0 || summary.MessageCount != 0 {
		t.Errorf("Reset did not clear state: %+v", summary)
	}
}

func TestExtractText(t *testing.T) {
	p := NewParser(nil)

	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "bare string content",
			line: `{"type":"assistant","message":{"role":"assistant","content":"plain text"}}`,
			want: "plain text",
		},
		{
			name: "content part list",
			line: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]}}`,
			want: "first\nsecond",
		},
		{
			name: "non-text parts ignored",
			line: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"bash"},{"type":"text","text":"after tool"}]}}`,
			want: "after tool",
		},
		{
			name: "bare string part in list",
			line: `{"type":"assistant","message":{"role":"assistant","content":["loose string"]}}`,
			want: "loose string",
		},
		{
			name: "nested text object",
			line: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":{"text":"nested"}}]}}`,
			want: "nested",
		},
		{
			name: "no message",
			line: `{"type":"result","result":"done"}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := p.ParseLine(tt.line)
			if event == nil {
				t.Fatal("ParseLine returned nil")
			}
			if got := ExtractText(event); got != tt.want {
				t.Errorf("ExtractText: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractToolUses(t *testing.T) {
	p := NewParser(nil)
	event := p.ParseLine(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu-1","name":"bash","input":{"command":"ls"}},{"type":"text","text":"running"}]}}`)

	uses := ExtractToolUses(event)
	if len(uses) != 1 {
		t.Fatalf("got %d tool uses, want 1", len(uses))
	}
	if uses[0].ID != "tu-1" || uses[0].Name != "bash" {
		t.Errorf("tool use: got %+v", uses[0])
	}
}

func TestExtractToolResults(t *testing.T) {
	p := NewParser(nil)
	event := p.ParseLine(`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu-1","content":"output here","is_error":true}]}}`)

	results := ExtractToolResults(event)
	if len(results) != 1 {
		t.Fatalf("got %d tool results, want 1", len(results))
	}
	if results[0].ToolUseID != "tu-1" || !results[0].IsError {
		t.Errorf("tool result: got %+v", results[0])
	}
}

func TestEventClassification(t *testing.T) {
	p := NewParser(nil)

	system := p.ParseLine(`{"type":"system","subtype":"init"}`)
	if !system.IsSystem() || system.IsAssistant() || system.IsFinal() {
		t.Error("system event misclassified")
	}

	assistant := p.ParseLine(`{"type":"assistant","message":{"role":"assistant","content":"hi"}}`)
	if !assistant.IsAssistant() || assistant.IsUser() {
		t.Error("assistant event misclassified")
	}

	// Role-based classification without a matching type
	roleUser := p.ParseLine(`{"type":"tool_result","message":{"role":"user","content":"x"}}`)
	if !roleUser.IsUser() {
		t.Error("role-based user classification failed")
	}

	result := p.ParseLine(`{"type":"result","result":"done"}`)
	if !result.IsFinal() {
		t.Error("result event not classified as final")
	}
}

func TestErrorFromEvent(t *testing.T) {
	p := NewParser(nil)

	withError := p.ParseLine(`{"type":"error","error":"boom"}`)
	if got := ErrorFromEvent(withError); got != "boom" {
		t.Errorf("got %q, want %q", got, "boom")
	}

	emptyResult := p.ParseLine(`{"type":"result"}`)
	if got := ErrorFromEvent(emptyResult); got == "" {
		t.Error("empty result should report an error")
	}

	clean := p.ParseLine(`{"type":"assistant","message":{"role":"assistant","content":"fine"}}`)
	if got := ErrorFromEvent(clean); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestValidateModel(t *testing.T) {
	if got := ValidateModel(ModelSonnet4); got != ModelSonnet4 {
		t.Errorf("known model rewritten: got %q", got)
	}
	if got := ValidateModel("gpt-4"); got != DefaultModel {
		t.Errorf("unknown model: got %q, want default", got)
	}
	if got := ValidateModel(""); got != DefaultModel {
		t.Errorf("empty model: got %q, want default", got)
	}
}

func TestSanitizeContent(t *testing.T) {
	got := SanitizeContent("a\x00b\r\nc\rd")
	if got != "ab\nc\nd" {
		t.Errorf("got %q", got)
	}
	if SanitizeContent("") != "" {
		t.Error("empty input should stay empty")
	}
}
