package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neboloop/pilot/internal/logging"
	"github.com/neboloop/pilot/internal/server"
	"github.com/neboloop/pilot/internal/svc"
)

// ServeCmd starts the websocket relay
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the websocket relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)
	defer logging.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Infof("[Pilot] Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	svcCtx, err := svc.NewServiceContext(cfg, svc.Options{ForceFallback: fallback})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer svcCtx.Close()

	return server.Run(ctx, svcCtx)
}
