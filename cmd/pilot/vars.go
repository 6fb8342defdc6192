package cli

import (
	"github.com/spf13/cobra"

	"github.com/neboloop/pilot/internal/config"
	"github.com/neboloop/pilot/internal/logging"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile  string
	portArg  int
	fallback bool
	verbose  bool
)

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pilot",
		Short: "Pilot - browser task relay",
		Long: `Pilot accepts natural-language browser tasks from the companion extension
over a local websocket and drives the browser with primitive actions.

With an API key it runs a reasoning loop against the configured provider.
Without one it falls back to a keyword planner.

Just type 'pilot' to start the relay.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: platform data directory)")
	rootCmd.PersistentFlags().IntVar(&portArg, "port", 0, "listen port (overrides config and PC_SERVER_PORT)")
	rootCmd.PersistentFlags().BoolVar(&fallback, "fallback", false, "ignore any API key and use the keyword planner")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add commands
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(PlanCmd())
	rootCmd.AddCommand(HistoryCmd())
	rootCmd.AddCommand(ConfigCmd())

	return rootCmd
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if portArg > 0 {
		cfg.Server.Port = portArg
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func initLogging(cfg *config.Config) {
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
}
