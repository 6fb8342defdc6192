// Package planner derives a fixed action list from task text when no
// reasoning provider is available.
package planner

import (
	"strings"

	"github.com/neboloop/pilot/internal/browser"
)

const (
	PapersURL = "https://huggingface.co/papers"
	InboxURL  = "https://mail.google.com/"
	SearchURL = "https://www.google.com"

	PapersSearchSelector = "input[type=search],input[role=searchbox]"
	SearchBoxSelector    = "input[name=q]"

	// MaxQueryRunes bounds the search text typed in the generic branch.
	MaxQueryRunes = 200
)

// PlanResult is a complete action list plus the reason it was chosen.
type PlanResult struct {
	Actions []browser.Action `json:"actions"`
	Reason  string           `json:"reason"`
}

// Plan maps task text to actions. It is pure and never returns an empty list.
func Plan(task string) PlanResult {
	lower := strings.ToLower(task)

	var actions []browser.Action
	switch {
	case isPapersTask(lower):
		actions = []browser.Action{
			browser.Navigate(PapersURL),
			browser.Find(PapersSearchSelector),
		}
	case strings.Contains(lower, "gmail"):
		actions = []browser.Action{
			browser.Navigate(InboxURL),
		}
	default:
		query := Query(task)
		actions = []browser.Action{
			browser.Navigate(SearchURL),
			browser.Find(SearchBoxSelector),
			browser.Type(SearchBoxSelector, query),
			browser.Submit(SearchBoxSelector),
		}
	}

	return PlanResult{Actions: actions, Reason: browser.ReasonFallback}
}

// Query is the search text for the generic branch: the trimmed task,
// cut to MaxQueryRunes characters.
func Query(task string) string {
	q := strings.TrimSpace(task)
	r := []rune(q)
	if len(r) > MaxQueryRunes {
		q = string(r[:MaxQueryRunes])
	}
	return q
}

func isPapersTask(lower string) bool {
	return strings.Contains(lower, "hugging face") && strings.Contains(lower, "daily")
}
