package ai

import (
	"errors"
	"testing"

	"github.com/neboloop/pilot/internal/config"
)

func TestNewProviderWithoutKey(t *testing.T) {
	_, err := NewProvider(config.ProviderConfig{Type: "anthropic"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(config.ProviderConfig{Type: "palm", APIKey: "k"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestNewProviderTypes(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"anthropic", "anthropic"},
		{"", "anthropic"},
		{"openai", "openai"},
	}
	for _, tt := range tests {
		p, err := NewProvider(config.ProviderConfig{Type: tt.typ, APIKey: "test-key", Model: "claude-sonnet-4-5"})
		if err != nil {
			t.Fatalf("NewProvider(%q) failed: %v", tt.typ, err)
		}
		if p.ID() != tt.want {
			t.Errorf("NewProvider(%q).ID() = %q, want %q", tt.typ, p.ID(), tt.want)
		}
	}
}

func TestNewProviderOpenAIModelDefault(t *testing.T) {
	p, err := NewProvider(config.ProviderConfig{Type: "openai", APIKey: "k", Model: "claude-sonnet-4-5"})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.(*OpenAIProvider).model; got != defaultOpenAIModel {
		t.Errorf("expected %s, got %s", defaultOpenAIModel, got)
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		typ, model, want string
	}{
		{"anthropic", "claude-sonnet-4-5", "claude-sonnet-4-5"},
		{"openai", "claude-sonnet-4-5", "gpt-4o"},
		{"openai", "", "gpt-4o"},
		{"openai", "gpt-4.1", "gpt-4.1"},
	}
	for _, tt := range tests {
		if got := ResolveModel(config.ProviderConfig{Type: tt.typ, Model: tt.model}); got != tt.want {
			t.Errorf("ResolveModel(%q, %q) = %q, want %q", tt.typ, tt.model, got, tt.want)
		}
	}
}
