package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the swarm dashboard",
	Long: `Print a dashboard of the whole swarm: system resources, every agent with
its current work, stage progress, task counts, the critical path, shared
memory, and persistence health.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Println(engine.Status())
		return nil
	},
}

var agentsStatus string
var agentsJSON bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents",
	Long: `List agents, optionally filtered by status (idle, working, failed,
retired). Without a filter every non-retired agent is shown.

Examples:
  swarmbench agents
  swarmbench agents --status working
  swarmbench agents --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		agents := engine.ListAgents(agentsStatus)
		if agentsJSON {
			return json.NewEncoder(os.Stdout).Encode(agents)
		}

		if len(agents) == 0 {
			fmt.Println("No agents.")
			return nil
		}
		for _, a := range agents {
			marker := color.CyanString("[%s]", a.Status)
			line := fmt.Sprintf("%s %s %s", marker, a.ID, a.Role)
			if a.CurrentTaskID != "" {
				line += fmt.Sprintf(" ← %s", a.CurrentTaskID)
			}
			line += fmt.Sprintf("  (%d done, active %s ago)",
				a.TasksCompleted, time.Since(a.LastActiveAt).Round(time.Second))
			fmt.Println(line)
		}
		return nil
	},
}

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Show system resources and spawn capacity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		s := engine.Resources()
		fmt.Printf("CPUs:             %d\n", s.CPUs)
		fmt.Printf("Memory:           %.1f/%.1f GB used (%.0f%%)\n", s.UsedMemGB, s.TotalMemGB, s.UsedPercent)
		fmt.Printf("Active agents:    %d\n", s.ActiveAgents)
		fmt.Printf("Max parallel:     %d (at %.1f GB per agent)\n", s.MaxParallelAgents, s.PerAgentMemGB)
		if s.CanSpawnMore {
			printStatus("✓", fmt.Sprintf("Room for ~%d more agents", s.EstimatedCapacity), color.FgGreen)
		} else {
			printStatus("⚠", "At estimated capacity", color.FgYellow)
		}
		return nil
	},
}

func init() {
	agentsCmd.Flags().StringVar(&agentsStatus, "status", "", "Filter by status (idle, working, failed, retired, all)")
	agentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "Output as JSON")
}
