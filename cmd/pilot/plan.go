package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neboloop/pilot/internal/agent/planner"
)

// PlanCmd prints the fallback plan for a task without connecting to a browser
func PlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <task>",
		Short: "Show the keyword planner's actions for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := planner.Plan(strings.Join(args, " "))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		},
	}
}
