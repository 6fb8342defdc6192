package planner

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/pilot/internal/browser"
)

func kinds(actions []browser.Action) []browser.Kind {
	out := make([]browser.Kind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestPlanBranches(t *testing.T) {
	tests := []struct {
		name  string
		task  string
		kinds []browser.Kind
		url   string
	}{
		{"papers", "search for hugging face daily papers", []browser.Kind{browser.KindNavigate, browser.KindFind}, PapersURL},
		{"papers mixed case", "Show me Hugging Face DAILY picks", []browser.Kind{browser.KindNavigate, browser.KindFind}, PapersURL},
		{"gmail", "check my Gmail", []browser.Kind{browser.KindNavigate}, InboxURL},
		{"hugging face without daily", "open hugging face", []browser.Kind{browser.KindNavigate, browser.KindFind, browser.KindType, browser.KindSubmit}, SearchURL},
		{"generic", "weather in paris", []browser.Kind{browser.KindNavigate, browser.KindFind, browser.KindType, browser.KindSubmit}, SearchURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Plan(tt.task)
			assert.Equal(t, tt.kinds, kinds(res.Actions))
			assert.Equal(t, tt.url, res.Actions[0].URL())
			assert.Equal(t, "fallback simple planner", res.Reason)
		})
	}
}

func TestPapersPlanSelectors(t *testing.T) {
	res := Plan("search for hugging face daily papers")
	require.Len(t, res.Actions, 2)
	assert.Equal(t, "input[type=search],input[role=searchbox]", res.Actions[1].Selector())
}

func TestPapersBeatsGmail(t *testing.T) {
	res := Plan("hugging face daily papers then gmail")
	assert.Equal(t, PapersURL, res.Actions[0].URL())
}

func TestGmailPlanIsSingleNavigate(t *testing.T) {
	for _, task := range []string{"gmail", "open GMAIL please", "xxgmailxx"} {
		res := Plan(task)
		require.Len(t, res.Actions, 1, task)
		assert.Equal(t, browser.Navigate(InboxURL), res.Actions[0])
	}
}

func TestGenericPlanShape(t *testing.T) {
	res := Plan("  best ramen near me  ")
	require.Len(t, res.Actions, 4)

	assert.Equal(t, "input[name=q]", res.Actions[1].Selector())
	assert.Equal(t, "input[name=q]", res.Actions[2].Selector())
	assert.Equal(t, "best ramen near me", res.Actions[2].Text())
	assert.Equal(t, "input[name=q]", res.Actions[3].Selector())
}

func TestGenericQueryTruncated(t *testing.T) {
	long := strings.Repeat("a", 450)
	res := Plan(long)
	assert.Equal(t, 200, utf8.RuneCountInString(res.Actions[2].Text()))

	// Multi-byte characters are counted, not bytes.
	wide := strings.Repeat("é", 300)
	q := Plan(wide).Actions[2].Text()
	assert.Equal(t, 200, utf8.RuneCountInString(q))
	assert.True(t, utf8.ValidString(q))
}

func TestEmptyTaskUsesGenericBranch(t *testing.T) {
	res := Plan("")
	require.Len(t, res.Actions, 4)
	assert.Equal(t, "", res.Actions[2].Text())
}

func TestPlanIsDeterministic(t *testing.T) {
	tasks := []string{"", "gmail", "hugging face daily", "something else entirely"}
	for _, task := range tasks {
		assert.Equal(t, Plan(task), Plan(task), task)
	}
}

func TestPlanNeverEmptyAndNeverCorrelated(t *testing.T) {
	tasks := []string{"", " ", "gmail", "hugging face daily", strings.Repeat("x", 1000)}
	for _, task := range tasks {
		res := Plan(task)
		assert.NotEmpty(t, res.Actions)
		for _, a := range res.Actions {
			assert.Empty(t, a.ID)
			assert.True(t, a.Kind.Valid())
		}
	}
}
