package svc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neboloop/pilot/internal/agent/ai"
	"github.com/neboloop/pilot/internal/agent/runner"
	"github.com/neboloop/pilot/internal/browser"
	"github.com/neboloop/pilot/internal/config"
	"github.com/neboloop/pilot/internal/db"
	"github.com/neboloop/pilot/internal/logging"
)

// Options adjust how the service context is assembled.
type Options struct {
	// ForceFallback skips provider construction even when a key is present
	ForceFallback bool

	// Reasoner overrides the provider-backed bridge (tests)
	Reasoner runner.Reasoner
}

// ServiceContext holds the long-lived dependencies shared by every connection.
type ServiceContext struct {
	Config  *config.Config
	Runner  *runner.Runner
	Journal *db.Store // nil when the journal is disabled
}

// NewServiceContext builds the runner and opens the journal.
func NewServiceContext(cfg *config.Config, opts Options) (*ServiceContext, error) {
	reasoner := opts.Reasoner
	switch {
	case reasoner != nil, opts.ForceFallback:
	case !cfg.HasCredential():
		logging.Warnf("[Pilot] No API key for %q provider; running fallback planner only", cfg.Provider.Type)
	default:
		p, err := ai.NewProvider(cfg.Provider)
		if errors.Is(err, ai.ErrProviderUnavailable) {
			logging.Warnf("[Pilot] %v; running fallback planner only", err)
			break
		}
		if err != nil {
			return nil, err
		}
		model := ai.ResolveModel(cfg.Provider)
		reasoner = ai.NewBridge(p, ai.BridgeOptions{
			Model:         model,
			MaxTokens:     cfg.Provider.MaxTokens,
			DisplayWidth:  cfg.Agent.DisplayWidth,
			DisplayHeight: cfg.Agent.DisplayHeight,
		})
		logging.Infof("[Pilot] Using %s provider (model %s)", p.ID(), model)
	}

	r := runner.New(reasoner, runner.Options{
		MaxIterations: cfg.Agent.MaxIterations,
		FallbackDelay: cfg.Agent.FallbackDelay,
		Pacing: runner.Pacing{
			Click:      cfg.Agent.ClickSettle,
			Type:       cfg.Agent.TypeSettle,
			Navigate:   cfg.Agent.NavigateSettle,
			Screenshot: cfg.Agent.ScreenshotTimeout,
		},
	})

	s := &ServiceContext{Config: cfg, Runner: r}

	if cfg.Journal.Enabled {
		store, err := db.NewSQLite(cfg.JournalPath())
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.Journal = store
	}

	return s, nil
}

// RelayOptions derives listener settings from the config.
func (s *ServiceContext) RelayOptions() browser.Options {
	return browser.Options{
		Host:              s.Config.Server.Host,
		Port:              s.Config.Server.Port,
		PortAttempts:      s.Config.Server.PortAttempts,
		TaskRatePerMinute: s.Config.Server.TaskRatePerMinute,
		TaskBurst:         s.Config.Server.TaskBurst,
		TaskQueue:         s.Config.Server.TaskQueue,
		Provider:          s.Runner.Provider(),
	}
}

// HandleTask runs one task for a connection and journals the outcome.
func (s *ServiceContext) HandleTask(ctx context.Context, conn *browser.Conn, task string) {
	outcome := s.Runner.Run(ctx, conn, task)

	if s.Journal == nil {
		return
	}

	run := db.TaskRun{
		ID:         outcome.RunID,
		ConnID:     conn.ID,
		Task:       outcome.Task,
		Provider:   outcome.Provider,
		Iterations: outcome.Iterations,
		Actions:    outcome.Actions,
		Reason:     outcome.Reason,
		StartedAt:  outcome.Started,
		FinishedAt: outcome.Finished,
	}
	if outcome.Err != nil {
		run.Error = outcome.Err.Error()
	}

	// The connection context may already be gone; the record still belongs in the journal
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Journal.RecordRun(writeCtx, run); err != nil {
		logging.Errorf("[Journal] %v", err)
	}
}

// Close releases the journal.
func (s *ServiceContext) Close() error {
	if s.Journal != nil {
		return s.Journal.Close()
	}
	return nil
}
