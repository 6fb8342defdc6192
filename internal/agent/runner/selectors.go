package runner

import "strings"

const (
	PapersLinkSelector = "a[href*='papers'], .papers-link, [data-testid='papers']"
	BodySelector       = "body"
	TextInputSelector  = "input[type=text], input[name=q], textarea, input[placeholder*='search']"
)

// SelectorStrategy picks CSS selectors for coordinate-based tool calls,
// since the extension acts on elements rather than pixels.
type SelectorStrategy interface {
	ClickSelector(task string) string
	TypeSelector(task string) string
}

// KeywordSelectors chooses selectors from keywords in the task text.
type KeywordSelectors struct{}

// ClickSelector targets paper links for paper-related tasks and the page
// body otherwise.
func (KeywordSelectors) ClickSelector(task string) string {
	lower := strings.ToLower(task)
	if strings.Contains(lower, "hugging face") || strings.Contains(lower, "papers") {
		return PapersLinkSelector
	}
	return BodySelector
}

// TypeSelector targets the first plausible text field.
func (KeywordSelectors) TypeSelector(string) string {
	return TextInputSelector
}
