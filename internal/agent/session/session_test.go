package session

import (
	"encoding/json"
	"testing"
)

func TestNewContextOpensWithPrompt(t *testing.T) {
	ctx := NewContext("open gmail")

	msgs := ctx.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser {
		t.Errorf("expected user role, got %s", msgs[0].Role)
	}
	want := "Please help me with this browser task: open gmail. Use the computer tool to navigate to websites and interact with them."
	if msgs[0].Content != want {
		t.Errorf("unexpected prompt:\n got %q\nwant %q", msgs[0].Content, want)
	}
}

func TestAppendAssistantAndResults(t *testing.T) {
	ctx := NewContext("find papers")

	calls := []ToolCall{{ID: "toolu_1", Name: "computer", Input: json.RawMessage(`{"action":"screenshot"}`)}}
	ctx.AppendAssistant("Let me look.", calls)
	ctx.AppendToolResults([]ToolResult{{ToolCallID: "toolu_1", Content: "Screenshot captured successfully"}})

	if ctx.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", ctx.Len())
	}

	msgs := ctx.Messages()
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "Let me look." {
		t.Errorf("unexpected assistant turn: %+v", msgs[1])
	}

	gotCalls, err := msgs[1].DecodeToolCalls()
	if err != nil {
		t.Fatalf("decode calls: %v", err)
	}
	if len(gotCalls) != 1 || gotCalls[0].ID != "toolu_1" {
		t.Errorf("unexpected calls: %+v", gotCalls)
	}

	results, err := msgs[2].DecodeToolResults()
	if err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if msgs[2].Role != RoleTool || len(results) != 1 || results[0].ToolCallID != "toolu_1" {
		t.Errorf("unexpected tool turn: %+v", msgs[2])
	}
}

func TestAppendAssistantWithoutCalls(t *testing.T) {
	ctx := NewContext("x")
	ctx.AppendAssistant("Done.", nil)

	msgs := ctx.Messages()
	if len(msgs[1].ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %s", msgs[1].ToolCalls)
	}
	calls, err := msgs[1].DecodeToolCalls()
	if err != nil || calls != nil {
		t.Errorf("expected nil calls, got %v %v", calls, err)
	}
}

func TestEmptyResultsAreNotRecorded(t *testing.T) {
	ctx := NewContext("x")
	ctx.AppendToolResults(nil)
	if ctx.Len() != 1 {
		t.Errorf("expected 1 turn, got %d", ctx.Len())
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	ctx := NewContext("x")
	msgs := ctx.Messages()
	msgs[0].Content = "mutated"

	if ctx.Messages()[0].Content == "mutated" {
		t.Error("Messages must not expose internal storage")
	}
}

func TestContextsAreIsolated(t *testing.T) {
	a := NewContext("a")
	b := NewContext("b")
	a.AppendAssistant("only in a", nil)

	if b.Len() != 1 {
		t.Errorf("contexts share state: b has %d turns", b.Len())
	}
}
