package browser

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestActionWireShape(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		payload map[string]any
	}{
		{"navigate", Navigate("https://mail.google.com/"), map[string]any{"url": "https://mail.google.com/"}},
		{"click", Click("body"), map[string]any{"selector": "body"}},
		{"type", Type("input[name=q]", "hello"), map[string]any{"selector": "input[name=q]", "text": "hello"}},
		{"find", Find("input[name=q]"), map[string]any{"selector": "input[name=q]"}},
		{"submit", Submit("input[name=q]"), map[string]any{"selector": "input[name=q]"}},
		{"getHTML", GetHTML(), map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := toMap(t, tt.action)
			assert.Equal(t, tt.name, m["action"])
			assert.Equal(t, tt.payload, m["payload"])
			_, hasID := m["id"]
			assert.False(t, hasID, "uncorrelated actions carry no id")
			assert.True(t, tt.action.Kind.Valid())
		})
	}
}

func TestActionWithID(t *testing.T) {
	a := Navigate("https://example.com")
	tagged := a.WithID("toolu_01")

	assert.Empty(t, a.ID, "WithID must not mutate the receiver")
	m := toMap(t, tagged)
	assert.Equal(t, "toolu_01", m["id"])
	assert.Equal(t, "https://example.com", tagged.URL())
}

func TestKindValid(t *testing.T) {
	assert.False(t, Kind("scroll").Valid())
	assert.False(t, Kind("").Valid())
}

func TestTaskCompleteVariants(t *testing.T) {
	t.Run("fallback keeps zero count", func(t *testing.T) {
		m := toMap(t, FallbackComplete(0))
		assert.Equal(t, "task_complete", m["type"])
		assert.Equal(t, float64(0), m["actions_count"])
		assert.NotContains(t, m, "iterations")
	})

	t.Run("loop", func(t *testing.T) {
		m := toMap(t, LoopComplete(3, 5))
		assert.Equal(t, float64(3), m["iterations"])
		assert.Equal(t, float64(5), m["total_actions"])
		assert.NotContains(t, m, "reason")
		assert.NotContains(t, m, "actions_count")
	})

	t.Run("budget", func(t *testing.T) {
		m := toMap(t, BudgetComplete(10, 12))
		assert.Equal(t, "max_iterations_reached", m["reason"])
		assert.Equal(t, float64(10), m["iterations"])
	})

	t.Run("error", func(t *testing.T) {
		m := toMap(t, ErrorComplete(errors.New("provider exploded")))
		assert.Equal(t, "provider exploded", m["error"])
		assert.NotContains(t, m, "iterations")
	})
}

func TestPlanEnvelope(t *testing.T) {
	m := toMap(t, NewPlan("open papers", "claude", 0, ReasonAgentLoop))
	assert.Equal(t, map[string]any{
		"type":     "plan",
		"task":     "open papers",
		"provider": "claude",
		"count":    float64(0),
		"reason":   "Starting Computer Use agent loop",
	}, m)
}

func TestPlanEnvelopeKeepsEmptyTask(t *testing.T) {
	m := toMap(t, NewPlan("", ProviderFallback, 4, ReasonFallback))
	assert.Contains(t, m, "task")
	assert.Equal(t, "", m["task"])
}
