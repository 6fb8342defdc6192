package ai

import (
	"errors"
	"fmt"
	"strings"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/neboloop/pilot/internal/config"
)

// ErrProviderUnavailable means no reasoning provider can be built and the
// server should run on the fallback planner.
var ErrProviderUnavailable = errors.New("reasoning provider unavailable")

const defaultOpenAIModel = "gpt-4o"

// NewProvider builds the configured provider.
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key for %q", ErrProviderUnavailable, cfg.Type)
	}
	model := ResolveModel(cfg)
	switch cfg.Type {
	case "anthropic", "claude", "":
		var opts []anthropicopt.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
		}
		return NewAnthropicProvider(cfg.APIKey, model, opts...), nil
	case "openai":
		var opts []openaiopt.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
		}
		return NewOpenAIProvider(cfg.APIKey, model, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider type %q", ErrProviderUnavailable, cfg.Type)
	}
}

// ResolveModel returns the model id requests will carry. OpenAI never
// receives a Claude model id; those and empty ids become gpt-4o.
func ResolveModel(cfg config.ProviderConfig) string {
	if cfg.Type == "openai" && (cfg.Model == "" || strings.HasPrefix(cfg.Model, "claude")) {
		return defaultOpenAIModel
	}
	return cfg.Model
}
