package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/pilot/internal/agent/ai"
	"github.com/neboloop/pilot/internal/agent/planner"
	"github.com/neboloop/pilot/internal/agent/session"
	"github.com/neboloop/pilot/internal/browser"
	"github.com/neboloop/pilot/internal/logging"
)

const DefaultMaxIterations = 10

// Reasoner is one round trip to a reasoning provider.
type Reasoner interface {
	// ID returns the label announced in the plan envelope
	ID() string
	Converse(ctx context.Context, sc *session.Context) (*ai.Reply, error)
}

// Browser is the outbound side of an extension connection.
type Browser interface {
	Send(v any) error
	Expect(id string) *browser.Pending
}

// State is the position of a run in the agent loop.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateConverse
	StateDispatching
	StateAwaitingFeedback
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateConverse:
		return "converse"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingFeedback:
		return "awaiting_feedback"
	case StateTerminal:
		return "terminal"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome reasons
const (
	OutcomeFallback  = "fallback"
	OutcomeCompleted = "completed"
	OutcomeBudget    = browser.ReasonMaxIteration
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Outcome summarizes a finished run.
type Outcome struct {
	RunID      string
	Task       string
	Provider   string
	Iterations int
	Actions    int
	Reason     string
	Err        error
	Started    time.Time
	Finished   time.Time
}

// Options configure limits and pacing.
type Options struct {
	MaxIterations int
	FallbackDelay time.Duration
	Pacing        Pacing
	Selectors     SelectorStrategy
}

// Runner executes browser tasks, either through a reasoning provider or
// through the fallback planner when none is configured.
type Runner struct {
	reasoner   Reasoner
	opts       Options
	translator *Translator
}

// New creates a runner. A nil reasoner selects fallback mode.
func New(reasoner Reasoner, opts Options) *Runner {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Selectors == nil {
		opts.Selectors = KeywordSelectors{}
	}
	return &Runner{
		reasoner: reasoner,
		opts:     opts,
		translator: &Translator{
			Selectors: opts.Selectors,
			Pacing:    opts.Pacing,
		},
	}
}

// Provider returns the plan label of the active mode.
func (r *Runner) Provider() string {
	if r.reasoner == nil {
		return browser.ProviderFallback
	}
	return r.reasoner.ID()
}

// Run executes one task and emits exactly one task_complete, unless the
// connection goes away first.
func (r *Runner) Run(ctx context.Context, b Browser, task string) Outcome {
	t := &run{
		r:       r,
		b:       b,
		log:     logging.WithContext(ctx),
		outcome: Outcome{RunID: uuid.NewString(), Task: task, Provider: r.Provider(), Started: time.Now()},
	}

	if r.reasoner == nil {
		t.fallback(ctx)
	} else {
		t.loop(ctx)
	}

	t.enter(StateTerminal)
	t.outcome.Finished = time.Now()
	return t.outcome
}

// run is the per-task state of one Run call.
type run struct {
	r       *Runner
	b       Browser
	log     logging.Logger
	state   State
	outcome Outcome
}

func (t *run) enter(s State) {
	if t.state != s {
		t.log.Debugf("[Runner] %s -> %s", t.state, s)
		t.state = s
	}
}

func (t *run) send(v any) error {
	if err := t.b.Send(v); err != nil {
		t.abort(fmt.Errorf("send: %w", err))
		return err
	}
	return nil
}

func (t *run) abort(err error) {
	t.outcome.Err = err
	if errors.Is(err, context.Canceled) || errors.Is(err, browser.ErrConnClosed) || errors.Is(err, browser.ErrSendBufferFull) {
		t.outcome.Reason = OutcomeCancelled
		t.log.Infof("[Runner] Task stopped: %v", err)
		return
	}
	t.outcome.Reason = OutcomeError
	t.log.Warnf("[Runner] Task aborted: %v", err)
}

func (t *run) fallback(ctx context.Context) {
	t.enter(StatePlanning)
	plan := planner.Plan(t.outcome.Task)
	t.log.Infof("[Runner] Fallback plan: %d actions", len(plan.Actions))

	if t.send(browser.NewPlan(t.outcome.Task, browser.ProviderFallback, len(plan.Actions), plan.Reason)) != nil {
		return
	}

	t.enter(StateDispatching)
	for _, action := range plan.Actions {
		if t.send(action) != nil {
			return
		}
		t.outcome.Actions++
		if err := sleep(ctx, t.r.opts.FallbackDelay); err != nil {
			t.abort(err)
			return
		}
	}

	if t.send(browser.FallbackComplete(len(plan.Actions))) != nil {
		return
	}
	t.outcome.Reason = OutcomeFallback
}

func (t *run) loop(ctx context.Context) {
	if t.send(browser.NewPlan(t.outcome.Task, t.r.reasoner.ID(), 0, browser.ReasonAgentLoop)) != nil {
		return
	}

	sc := session.NewContext(t.outcome.Task)
	maxIterations := t.r.opts.MaxIterations

	for t.outcome.Iterations < maxIterations {
		t.outcome.Iterations++
		t.enter(StateConverse)
		t.log.Infof("[Runner] === Iteration %d ===", t.outcome.Iterations)

		reply, err := t.r.reasoner.Converse(ctx, sc)
		if err != nil {
			if ctx.Err() != nil {
				t.abort(ctx.Err())
				return
			}
			t.abort(err)
			if sendErr := t.b.Send(browser.ErrorComplete(err)); sendErr != nil {
				t.log.Warnf("[Runner] Error terminal not delivered: %v", sendErr)
				t.outcome.Err = errors.Join(err, fmt.Errorf("deliver task_complete: %w", sendErr))
			}
			return
		}

		calls := make([]session.ToolCall, len(reply.ToolCalls))
		for i, tc := range reply.ToolCalls {
			if tc.ID == "" {
				reply.ToolCalls[i].ID = "act-" + uuid.NewString()[:8]
			}
			calls[i] = session.ToolCall{ID: reply.ToolCalls[i].ID, Name: tc.Name, Input: tc.Input}
		}
		sc.AppendAssistant(reply.Content, calls)

		var results []session.ToolResult
		for _, tc := range reply.ToolCalls {
			step, ok := t.r.translator.Translate(tc, t.outcome.Task)
			if !ok {
				t.log.Warnf("[Runner] Ignoring unknown tool: %s", tc.Name)
				continue
			}
			if !step.Sends() {
				results = append(results, session.ToolResult{ToolCallID: tc.ID, Content: step.Result, IsError: true})
				continue
			}

			t.outcome.Actions++
			content, isErr, err := t.dispatch(ctx, tc.ID, step)
			if err != nil {
				t.abort(err)
				return
			}
			results = append(results, session.ToolResult{ToolCallID: tc.ID, Content: content, IsError: isErr})
		}

		if len(results) == 0 {
			t.log.Infof("[Runner] Task complete after %d iterations, %d actions", t.outcome.Iterations, t.outcome.Actions)
			if t.send(browser.LoopComplete(t.outcome.Iterations, t.outcome.Actions)) == nil {
				t.outcome.Reason = OutcomeCompleted
			}
			return
		}
		sc.AppendToolResults(results)
	}

	t.log.Infof("[Runner] Reached max iterations (%d)", maxIterations)
	if t.send(browser.BudgetComplete(t.outcome.Iterations, t.outcome.Actions)) == nil {
		t.outcome.Reason = OutcomeBudget
	}
}

// dispatch sends one action and produces its tool result. Only a lost
// connection or a failed send is returned as an error.
func (t *run) dispatch(ctx context.Context, id string, step Step) (string, bool, error) {
	t.enter(StateDispatching)
	action := step.Action.WithID(id)
	t.log.Debugf("[Runner] -> %s %v", action.Kind, action.Payload)

	if step.Await > 0 {
		pending := t.b.Expect(id)
		if err := t.b.Send(action); err != nil {
			pending.Cancel()
			return "", false, fmt.Errorf("send %s: %w", action.Kind, err)
		}

		t.enter(StateAwaitingFeedback)
		res, err := pending.Wait(ctx, step.Await)
		if err != nil && !errors.Is(err, browser.ErrTimeout) {
			return "", false, err
		}
		if errors.Is(err, browser.ErrTimeout) {
			t.log.Debugf("[Runner] %s result %s timed out after %s", action.Kind, pending.ID(), step.Await)
		}
		content, isErr := ScreenshotResult(res, err)
		return content, isErr, nil
	}

	if err := t.b.Send(action); err != nil {
		return "", false, fmt.Errorf("send %s: %w", action.Kind, err)
	}
	if err := sleep(ctx, step.Settle); err != nil {
		return "", false, err
	}
	return step.Result, step.IsError, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
