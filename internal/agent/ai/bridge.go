package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/neboloop/pilot/internal/agent/session"
	"github.com/neboloop/pilot/internal/logging"
)

// Reply is one complete provider turn.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// BridgeOptions configure what the bridge asks of the provider.
type BridgeOptions struct {
	Model         string
	MaxTokens     int
	DisplayWidth  int
	DisplayHeight int
}

// Bridge performs one provider round trip per Converse call, advertising
// the computer tool and collecting the streamed reply.
type Bridge struct {
	provider Provider
	opts     BridgeOptions
	tools    []ToolDefinition
}

// NewBridge wraps a provider.
func NewBridge(p Provider, opts BridgeOptions) *Bridge {
	if opts.DisplayWidth <= 0 {
		opts.DisplayWidth = 1024
	}
	if opts.DisplayHeight <= 0 {
		opts.DisplayHeight = 768
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Bridge{
		provider: p,
		opts:     opts,
		tools:    []ToolDefinition{ComputerTool(opts.DisplayWidth, opts.DisplayHeight)},
	}
}

// ID returns the label announced in plan envelopes.
func (b *Bridge) ID() string {
	return PlanLabel(b.provider.ID())
}

// PlanLabel maps a provider id to its plan label.
func PlanLabel(providerID string) string {
	if providerID == "anthropic" {
		return "claude"
	}
	return providerID
}

// Converse sends the task context and returns the provider's reply.
// Any request or stream failure is returned as an error.
func (b *Bridge) Converse(ctx context.Context, sc *session.Context) (*Reply, error) {
	req := &ChatRequest{
		Messages:  sc.Messages(),
		Tools:     b.tools,
		MaxTokens: b.opts.MaxTokens,
		Model:     b.opts.Model,
	}

	events, err := b.provider.Stream(ctx, req)
	if err != nil {
		logging.Warnf("[Bridge] %s request failed (%s): %v", b.provider.ID(), ClassifyErrorReason(err), err)
		return nil, fmt.Errorf("%s request: %w", b.provider.ID(), err)
	}

	var (
		text    strings.Builder
		reply   Reply
		lastErr error
	)
	// Drain until the provider closes the channel so its goroutine can exit.
	for event := range events {
		switch event.Type {
		case EventTypeText:
			text.WriteString(event.Text)
		case EventTypeToolCall:
			if event.ToolCall != nil {
				reply.ToolCalls = append(reply.ToolCalls, *event.ToolCall)
			}
		case EventTypeError:
			if lastErr == nil {
				lastErr = event.Error
			}
		}
	}

	if lastErr != nil {
		logging.Warnf("[Bridge] %s stream failed (%s): %v", b.provider.ID(), ClassifyErrorReason(lastErr), lastErr)
		return nil, fmt.Errorf("%s stream: %w", b.provider.ID(), lastErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reply.Content = text.String()
	logging.Debugf("[Bridge] reply: %d chars, %d tool calls", len(reply.Content), len(reply.ToolCalls))
	return &reply, nil
}
