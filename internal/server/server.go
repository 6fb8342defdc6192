package server

import (
	"context"
	"time"

	"github.com/neboloop/pilot/internal/browser"
	"github.com/neboloop/pilot/internal/logging"
	"github.com/neboloop/pilot/internal/svc"
)

const shutdownTimeout = 30 * time.Second

// ServerOptions holds optional hooks for the server
type ServerOptions struct {
	// Ready is called with the bound port once the relay is listening
	Ready func(port int)
}

// Run starts the relay and blocks until ctx is cancelled.
func Run(ctx context.Context, svcCtx *svc.ServiceContext, opts ...ServerOptions) error {
	var o ServerOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	relay := browser.NewRelay(svcCtx.RelayOptions(), svcCtx.HandleTask)
	if err := relay.Start(); err != nil {
		return err
	}

	logging.Infof("[Pilot] Ready on ws://%s:%d (provider: %s)", svcCtx.Config.Server.Host, relay.Port(), svcCtx.Runner.Provider())
	if o.Ready != nil {
		o.Ready(relay.Port())
	}

	<-ctx.Done()

	logging.Infof("[Pilot] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return relay.Stop(shutdownCtx)
}
