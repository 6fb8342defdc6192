// Package session holds the turn history of one browser task.
package session

import (
	"encoding/json"
	"fmt"
)

// Roles used in a task context
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of the conversation with the reasoning provider
type Message struct {
	Role        string          `json:"role"` // user, assistant, tool
	Content     string          `json:"content,omitempty"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
}

// ToolCall represents a tool invocation
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Context is the ordered turn history of one task. It is owned by a single
// agent loop and is not safe for concurrent use.
type Context struct {
	Task     string
	messages []Message
}

// Prompt returns the opening user turn for a task.
func Prompt(task string) string {
	return fmt.Sprintf("Please help me with this browser task: %s. Use the computer tool to navigate to websites and interact with them.", task)
}

// NewContext starts a task context with the opening user turn.
func NewContext(task string) *Context {
	return &Context{
		Task:     task,
		messages: []Message{{Role: RoleUser, Content: Prompt(task)}},
	}
}

// AppendAssistant records one provider reply.
func (c *Context) AppendAssistant(content string, calls []ToolCall) {
	msg := Message{Role: RoleAssistant, Content: content}
	if len(calls) > 0 {
		msg.ToolCalls, _ = json.Marshal(calls)
	}
	c.messages = append(c.messages, msg)
}

// AppendToolResults records the results of one iteration as a single turn.
// Empty result sets are not recorded.
func (c *Context) AppendToolResults(results []ToolResult) {
	if len(results) == 0 {
		return
	}
	data, _ := json.Marshal(results)
	c.messages = append(c.messages, Message{Role: RoleTool, ToolResults: data})
}

// Messages returns a copy of the turns in order.
func (c *Context) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of turns.
func (c *Context) Len() int {
	return len(c.messages)
}

// DecodeToolCalls parses the tool calls stored on an assistant turn.
func (m Message) DecodeToolCalls() ([]ToolCall, error) {
	if len(m.ToolCalls) == 0 {
		return nil, nil
	}
	var calls []ToolCall
	if err := json.Unmarshal(m.ToolCalls, &calls); err != nil {
		return nil, fmt.Errorf("decode tool calls: %w", err)
	}
	return calls, nil
}

// DecodeToolResults parses the tool results stored on a tool turn.
func (m Message) DecodeToolResults() ([]ToolResult, error) {
	if len(m.ToolResults) == 0 {
		return nil, nil
	}
	var results []ToolResult
	if err := json.Unmarshal(m.ToolResults, &results); err != nil {
		return nil, fmt.Errorf("decode tool results: %w", err)
	}
	return results, nil
}
