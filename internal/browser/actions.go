package browser

// Kind is a primitive browser action understood by the extension.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindClick    Kind = "click"
	KindType     Kind = "type"
	KindFind     Kind = "find"
	KindSubmit   Kind = "submit"
	KindGetHTML  Kind = "getHTML"
)

// Valid reports whether k is one of the six known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNavigate, KindClick, KindType, KindFind, KindSubmit, KindGetHTML:
		return true
	}
	return false
}

// Action is one primitive browser step. ID is empty for uncorrelated
// (fallback) actions and is then left out of the wire form.
type Action struct {
	Kind    Kind           `json:"action"`
	Payload map[string]any `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

// Navigate builds a navigate action.
func Navigate(url string) Action {
	return Action{Kind: KindNavigate, Payload: map[string]any{"url": url}}
}

// Click builds a click action.
func Click(selector string) Action {
	return Action{Kind: KindClick, Payload: map[string]any{"selector": selector}}
}

// Type builds a type action.
func Type(selector, text string) Action {
	return Action{Kind: KindType, Payload: map[string]any{"selector": selector, "text": text}}
}

// Find builds a find action.
func Find(selector string) Action {
	return Action{Kind: KindFind, Payload: map[string]any{"selector": selector}}
}

// Submit builds a submit action.
func Submit(selector string) Action {
	return Action{Kind: KindSubmit, Payload: map[string]any{"selector": selector}}
}

// GetHTML builds a getHTML action.
func GetHTML() Action {
	return Action{Kind: KindGetHTML, Payload: map[string]any{}}
}

// WithID returns a copy of a tagged with a correlation id.
func (a Action) WithID(id string) Action {
	a.ID = id
	return a
}

// Selector returns the payload selector, if any.
func (a Action) Selector() string {
	s, _ := a.Payload["selector"].(string)
	return s
}

// Text returns the payload text, if any.
func (a Action) Text() string {
	s, _ := a.Payload["text"].(string)
	return s
}

// URL returns the payload url, if any.
func (a Action) URL() string {
	s, _ := a.Payload["url"].(string)
	return s
}

// Envelope types exchanged with the extension
const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeTask         = "task"
	TypeResult       = "result"
	TypePlan         = "plan"
	TypeTaskComplete = "task_complete"
	TypeError        = "error"
)

// Plan reasons and labels
const (
	ProviderFallback   = "fallback"
	ReasonFallback     = "fallback simple planner"
	ReasonAgentLoop    = "Starting Computer Use agent loop"
	ReasonMaxIteration = "max_iterations_reached"
)

// Inbound is the decoded form of any message the extension sends.
type Inbound struct {
	Type string `json:"type"`
	Task string `json:"task,omitempty"`
	ID   string `json:"id,omitempty"`

	// result fields
	OK    *bool  `json:"ok,omitempty"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// Plan announces how a task will be executed.
type Plan struct {
	Type     string `json:"type"`
	Task     string `json:"task"`
	Provider string `json:"provider"`
	Count    int    `json:"count"`
	Reason   string `json:"reason"`
}

// NewPlan builds a plan envelope.
func NewPlan(task, provider string, count int, reason string) Plan {
	return Plan{Type: TypePlan, Task: task, Provider: provider, Count: count, Reason: reason}
}

// TaskComplete is the single terminal event of a task. Pointer fields
// distinguish "absent" from zero so each variant carries only its own keys.
type TaskComplete struct {
	Type         string `json:"type"`
	ActionsCount *int   `json:"actions_count,omitempty"`
	Iterations   *int   `json:"iterations,omitempty"`
	TotalActions *int   `json:"total_actions,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
}

// FallbackComplete ends a fallback-planned task.
func FallbackComplete(actions int) TaskComplete {
	return TaskComplete{Type: TypeTaskComplete, ActionsCount: &actions}
}

// LoopComplete ends an agent loop that stopped requesting tools.
func LoopComplete(iterations, totalActions int) TaskComplete {
	return TaskComplete{Type: TypeTaskComplete, Iterations: &iterations, TotalActions: &totalActions}
}

// BudgetComplete ends an agent loop that hit its iteration ceiling.
func BudgetComplete(iterations, totalActions int) TaskComplete {
	tc := LoopComplete(iterations, totalActions)
	tc.Reason = ReasonMaxIteration
	return tc
}

// ErrorComplete ends a task whose provider call failed.
func ErrorComplete(err error) TaskComplete {
	return TaskComplete{Type: TypeTaskComplete, Error: err.Error()}
}

// ErrorMessage is sent for envelopes the server could not handle.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewError builds an error envelope.
func NewError(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Error: msg}
}

// Pong answers a ping.
type Pong struct {
	Type string `json:"type"`
}

// NewPong builds a pong envelope.
func NewPong() Pong {
	return Pong{Type: TypePong}
}
