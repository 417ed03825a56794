package anthropic

import (
	"testing"

	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

func TestToMiddleFlattensSystemIntoSystemMessage(t *testing.T) {
	req := Request{System: "be terse", Messages: []Msg{{Role: "user", Content: "hi"}}}
	got := ToMiddle(req)

	if len(got.Messages) != 2 {
		t.Fatalf("got %d messages, want 2 (system + user)", len(got.Messages))
	}
	if got.Messages[0].Role != middle.RoleSystem || got.Messages[0].Content != "be terse" {
		t.Fatalf("first message = %+v, want system/be terse", got.Messages[0])
	}
}

func TestToMiddleConvertsToolUseBlock(t *testing.T) {
	req := Request{Messages: []Msg{
		{Role: "assistant", Content: []any{
			map[string]any{"type": "tool_use", "id": "tu_1", "name": "lookup", "input": map[string]any{"q": "x"}},
		}},
	}}
	got := ToMiddle(req)

	if len(got.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(got.Messages))
	}
	tc := got.Messages[0].ToolCalls
	if len(tc) != 1 || tc[0].ID != "tu_1" || tc[0].Function.Name != "lookup" {
		t.Fatalf("ToolCalls = %+v, want tool_use converted", tc)
	}
}

func TestToMiddleConvertsToolResultWithJSONContent(t *testing.T) {
	req := Request{Messages: []Msg{
		{Role: "user", Content: []any{
			map[string]any{"type": "tool_result", "tool_use_id": "tu_1", "content": `{"ok":true}`},
		}},
	}}
	got := ToMiddle(req)

	if len(got.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(got.Messages))
	}
	m := got.Messages[0]
	if m.Role != middle.RoleTool || m.ToolCallID != "tu_1" {
		t.Fatalf("tool_result message = %+v", m)
	}
	if len(m.ToolCalls) != 1 || m.ToolCalls[0].Function.Name != "toolResult" {
		t.Fatalf("expected synthetic toolResult call, got %+v", m.ToolCalls)
	}
}

func TestToMiddleConvertsToolResultWithPlainTextContent(t *testing.T) {
	req := Request{Messages: []Msg{
		{Role: "user", Content: []any{
			map[string]any{"type": "tool_result", "tool_use_id": "tu_2", "content": "plain text, not json"},
		}},
	}}
	got := ToMiddle(req)
	m := got.Messages[0]
	if m.Content != "plain text, not json" || len(m.ToolCalls) != 0 {
		t.Fatalf("expected plain-text tool result with no synthetic call, got %+v", m)
	}
}

func TestCompletionToJSONMapsStopReasons(t *testing.T) {
	cases := map[string]string{"stop": "end_turn", "length": "max_tokens", "tool_calls": "tool_calls"}
	for in, want := range cases {
		obj := CompletionToJSON(middle.Completion{FinishReason: in})
		if obj["stop_reason"] != want {
			t.Errorf("stopReason(%q) = %v, want %q", in, obj["stop_reason"], want)
		}
	}
}
