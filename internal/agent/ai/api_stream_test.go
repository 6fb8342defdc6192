package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/pilot/internal/agent/session"
	"github.com/neboloop/pilot/internal/config"
)

func sseServer(t *testing.T, body string, gotBody *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotBody != nil {
			*gotBody, _ = io.ReadAll(r.Body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, events <-chan StreamEvent) (string, []ToolCall, error) {
	t.Helper()
	var text strings.Builder
	var calls []ToolCall
	var streamErr error
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return text.String(), calls, streamErr
			}
			switch ev.Type {
			case EventTypeText:
				text.WriteString(ev.Text)
			case EventTypeToolCall:
				calls = append(calls, *ev.ToolCall)
			case EventTypeError:
				streamErr = ev.Error
			}
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

const anthropicStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-5","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Opening the papers page."}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_01","name":"computer","input":{}}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"action\":\"navigate\","}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"url\":\"https://huggingface.co/papers\"}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":30}}

event: message_stop
data: {"type":"message_stop"}

`

func TestAnthropicStream(t *testing.T) {
	var body []byte
	srv := sseServer(t, anthropicStream, &body)

	p := NewAnthropicProvider("test-key", "claude-sonnet-4-5",
		anthropicopt.WithBaseURL(srv.URL), anthropicopt.WithMaxRetries(0))

	events, err := p.Stream(context.Background(), &ChatRequest{
		Messages:  session.NewContext("find daily papers").Messages(),
		Tools:     []ToolDefinition{ComputerTool(1024, 768)},
		MaxTokens: 1024,
	})
	require.NoError(t, err)

	text, calls, streamErr := collect(t, events)
	require.NoError(t, streamErr)
	assert.Equal(t, "Opening the papers page.", text)
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_01", calls[0].ID)
	assert.Equal(t, "computer", calls[0].Name)
	assert.JSONEq(t, `{"action":"navigate","url":"https://huggingface.co/papers"}`, string(calls[0].Input))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "claude-sonnet-4-5", sent["model"])
	assert.Equal(t, float64(1024), sent["max_tokens"])
	tools := sent["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "computer", tools[0].(map[string]any)["name"])
}

const openAITextStream = `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1694268190,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}

data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1694268190,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"All done."},"finish_reason":null}]}

data: [DONE]

`

func TestOpenAIStreamText(t *testing.T) {
	var body []byte
	srv := sseServer(t, openAITextStream, &body)

	p := NewOpenAIProvider("test-key", "gpt-4o",
		openaiopt.WithBaseURL(srv.URL), openaiopt.WithMaxRetries(0))

	events, err := p.Stream(context.Background(), &ChatRequest{
		Messages: session.NewContext("x").Messages(),
		Tools:    []ToolDefinition{ComputerTool(1024, 768)},
	})
	require.NoError(t, err)

	text, calls, streamErr := collect(t, events)
	require.NoError(t, streamErr)
	assert.Equal(t, "All done.", text)
	assert.Empty(t, calls)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "gpt-4o", sent["model"])
}

func TestOpenAIStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("bad-key", "gpt-4o",
		openaiopt.WithBaseURL(srv.URL), openaiopt.WithMaxRetries(0))

	events, err := p.Stream(context.Background(), &ChatRequest{Messages: session.NewContext("x").Messages()})
	require.NoError(t, err)

	_, _, streamErr := collect(t, events)
	assert.Error(t, streamErr)
}

func TestBuildAnthropicMessagesDropsUnansweredCalls(t *testing.T) {
	sc := session.NewContext("task")
	sc.AppendAssistant("", []session.ToolCall{
		{ID: "toolu_1", Name: "computer", Input: json.RawMessage(`{"action":"screenshot"}`)},
		{ID: "toolu_2", Name: "mystery", Input: json.RawMessage(`{}`)},
	})
	sc.AppendToolResults([]session.ToolResult{{ToolCallID: "toolu_1", Content: "Screenshot captured successfully"}})

	msgs := buildAnthropicMessages(sc.Messages())
	require.Len(t, msgs, 3)

	assistant := msgs[1]
	require.Len(t, assistant.Content, 1, "unanswered tool_use must be dropped")
	require.NotNil(t, assistant.Content[0].OfToolUse)
	assert.Equal(t, "toolu_1", assistant.Content[0].OfToolUse.ID)

	require.Len(t, msgs[2].Content, 1)
	assert.NotNil(t, msgs[2].Content[0].OfToolResult)
}

func TestBuildOpenAIMessages(t *testing.T) {
	sc := session.NewContext("task")
	sc.AppendAssistant("Looking", []session.ToolCall{
		{ID: "call_1", Name: "computer", Input: json.RawMessage(`{"action":"screenshot"}`)},
	})
	sc.AppendToolResults([]session.ToolResult{{ToolCallID: "call_1", Content: "boom", IsError: true}})

	msgs := buildOpenAIMessages(&ChatRequest{Messages: sc.Messages(), System: "be brief"})
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
}

func TestBridgeOpenAIRequestCarriesOpenAIModel(t *testing.T) {
	var body []byte
	srv := sseServer(t, openAITextStream, &body)

	// Default config still names a Claude model
	cfg := config.DefaultConfig().Provider
	cfg.Type = "openai"
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	b := NewBridge(p, BridgeOptions{Model: ResolveModel(cfg), MaxTokens: cfg.MaxTokens})

	reply, err := b.Converse(context.Background(), session.NewContext("check gmail"))
	require.NoError(t, err)
	assert.Equal(t, "All done.", reply.Content)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "gpt-4o", sent["model"])
}
