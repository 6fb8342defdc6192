package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/neboloop/pilot/internal/agent/ai"
	"github.com/neboloop/pilot/internal/browser"
)

// htmlPreviewRunes bounds the page text echoed back after a screenshot.
const htmlPreviewRunes = 500

// Pacing holds per-action waits.
type Pacing struct {
	Click      time.Duration
	Type       time.Duration
	Navigate   time.Duration
	Screenshot time.Duration // how long to wait for page HTML
}

// DefaultPacing matches what a real page needs to settle.
func DefaultPacing() Pacing {
	return Pacing{
		Click:      time.Second,
		Type:       time.Second,
		Navigate:   3 * time.Second,
		Screenshot: 5 * time.Second,
	}
}

// Step is one translated tool call. A step without an action is fed back
// to the provider as-is.
type Step struct {
	Action  browser.Action
	Await   time.Duration // > 0: wait for the correlated result
	Settle  time.Duration // pause after sending an un-awaited action
	Result  string
	IsError bool
}

// Sends reports whether the step emits a browser action.
func (s Step) Sends() bool {
	return s.Action.Kind != ""
}

// Translator maps computer tool calls to browser actions.
type Translator struct {
	Selectors SelectorStrategy
	Pacing    Pacing
}

// Translate converts one tool call. ok is false for calls to tools other
// than the computer tool; they are ignored.
func (t *Translator) Translate(call ai.ToolCall, task string) (Step, bool) {
	if call.Name != ai.ComputerToolName {
		return Step{}, false
	}

	in, err := ai.ParseComputerInput(call.Input)
	if err != nil {
		return Step{Result: err.Error(), IsError: true}, true
	}

	switch in.Action {
	case ai.ComputerScreenshot:
		return Step{
			Action: browser.GetHTML(),
			Await:  t.Pacing.Screenshot,
		}, true

	case ai.ComputerLeftClick:
		return Step{
			Action: browser.Click(t.Selectors.ClickSelector(task)),
			Settle: t.Pacing.Click,
			Result: "Clicked at coordinates " + in.Point(),
		}, true

	case ai.ComputerType:
		return Step{
			Action: browser.Type(t.Selectors.TypeSelector(task), in.Text),
			Settle: t.Pacing.Type,
			Result: "Typed: " + in.Text,
		}, true

	case ai.ComputerNavigate:
		return Step{
			Action: browser.Navigate(in.URL),
			Settle: t.Pacing.Navigate,
			Result: "Navigated to " + in.URL,
		}, true

	default:
		return Step{
			Result:  "unsupported computer action: " + in.Action,
			IsError: true,
		}, true
	}
}

// ScreenshotResult turns the outcome of a getHTML wait into tool result
// text. A timeout still counts as a capture.
func ScreenshotResult(res browser.Result, err error) (string, bool) {
	switch {
	case errors.Is(err, browser.ErrTimeout):
		return "Screenshot captured successfully", false
	case err != nil:
		return fmt.Sprintf("Page capture failed: %v", err), true
	case res.Err() != nil:
		return "Page capture failed: " + res.Err().Error(), true
	case res.HTML != "":
		return "Screenshot captured. Page contains: " + preview(res.HTML) + "...", false
	default:
		return "Screenshot captured successfully", false
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > htmlPreviewRunes {
		return string(r[:htmlPreviewRunes])
	}
	return s
}
