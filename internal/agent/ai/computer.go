package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ComputerToolName is the single tool advertised to the provider.
const ComputerToolName = "computer"

// Computer tool actions
const (
	ComputerScreenshot = "screenshot"
	ComputerLeftClick  = "left_click"
	ComputerType       = "type"
	ComputerNavigate   = "navigate"
)

// ComputerTool returns the definition of the remote-display tool.
func ComputerTool(width, height int) ToolDefinition {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{ComputerScreenshot, ComputerLeftClick, ComputerType, ComputerNavigate},
				"description": "The action to perform on the display.",
			},
			"coordinate": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "number"},
				"minItems":    2,
				"maxItems":    2,
				"description": "[x, y] pixel position for left_click.",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Text to enter for the type action.",
			},
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute URL for the navigate action.",
			},
		},
		"required": []string{"action"},
	}
	data, _ := json.Marshal(schema)

	return ToolDefinition{
		Name: ComputerToolName,
		Description: fmt.Sprintf("Control a remote display of %dx%d pixels showing a web browser. "+
			"Use screenshot to read the current page, left_click to click, type to enter text "+
			"into the focused search field, and navigate to open a URL.", width, height),
		InputSchema: data,
	}
}

// ComputerInput is the decoded input of a computer tool call.
type ComputerInput struct {
	Action     string    `json:"action"`
	Coordinate []float64 `json:"coordinate,omitempty"`
	Text       string    `json:"text,omitempty"`
	URL        string    `json:"url,omitempty"`
}

// ParseComputerInput decodes raw tool input.
func ParseComputerInput(raw json.RawMessage) (ComputerInput, error) {
	var in ComputerInput
	if len(raw) == 0 {
		return in, fmt.Errorf("empty computer input")
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("decode computer input: %w", err)
	}
	return in, nil
}

// Point returns the click coordinate formatted as "(x, y)".
// Missing coordinates are reported as zero.
func (in ComputerInput) Point() string {
	var x, y float64
	if len(in.Coordinate) > 0 {
		x = in.Coordinate[0]
	}
	if len(in.Coordinate) > 1 {
		y = in.Coordinate[1]
	}
	return "(" + strconv.FormatFloat(x, 'f', -1, 64) + ", " + strconv.FormatFloat(y, 'f', -1, 64) + ")"
}
