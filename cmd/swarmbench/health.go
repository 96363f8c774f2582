package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/internal/swarm"
)

var healthThreshold time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every agent's workspace",
	Long: `Probe the workspace of every working or idle agent. Agents with a missing
or unreachable workspace are marked failed. A working agent inactive past
the stale threshold is reclaimed: its current task is timed out and the
agent goes back to idle.

Examples:
  swarmbench health
  swarmbench health --threshold 2m`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().DurationVar(&healthThreshold, "threshold", 0, "Staleness threshold (default: configured stale_threshold)")
}

func runHealth(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := engine.HealthCheck(cmd.Context(), healthThreshold)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No agents to check.")
		return nil
	}

	healthy := 0
	for _, r := range results {
		switch r.Status {
		case swarm.HealthOK:
			healthy++
			printStatus("✓", fmt.Sprintf("%s (%s): %s", r.AgentID, r.Role, r.Detail), color.FgGreen)
		case swarm.HealthStale:
			printStatus("⚠", fmt.Sprintf("%s (%s): %s", r.AgentID, r.Role, r.Detail), color.FgYellow)
		default:
			printStatus("✗", fmt.Sprintf("%s (%s): %s", r.AgentID, r.Role, r.Detail), color.FgRed)
		}
	}
	fmt.Printf("\n%d/%d healthy\n", healthy, len(results))
	return nil
}
