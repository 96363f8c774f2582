package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var metricsJSON bool

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show swarm performance metrics",
	Long: `Compute throughput, latency, error rate, stage progress, and parallel
efficiency across the whole swarm.

Parallel efficiency is the speedup multiplier versus running every
completed task sequentially: total task time divided by the critical
path. 4.0x means the swarm did four hours of work in one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		m := engine.Metrics()
		if metricsJSON {
			return json.NewEncoder(os.Stdout).Encode(m)
		}

		fmt.Printf("Uptime: %s\n\n", m.Uptime)
		fmt.Printf("Agents:  %d total (%d working, %d idle, %d failed, %d retired)\n",
			m.Agents.Total, m.Agents.Working, m.Agents.Idle, m.Agents.Failed, m.Agents.Retired)
		fmt.Printf("Tasks:   %d total, %d running, %d completed, %d failed\n",
			m.Tasks.Total, m.Tasks.Running, m.Tasks.Completed, m.Tasks.Failed)
		fmt.Printf("         %.2f/min throughput, %s error rate\n", m.Tasks.ThroughputPerMin, m.Tasks.ErrorRate)
		fmt.Printf("Latency: avg %dms, min %dms, max %dms\n", m.Latency.AvgMs, m.Latency.MinMs, m.Latency.MaxMs)
		fmt.Printf("Stages:  %d total, %d completed, %d running\n", m.Stages.Total, m.Stages.Completed, m.Stages.Running)
		fmt.Printf("Critical path: %dms, %sx parallel efficiency\n",
			m.CriticalPath.TotalMs, color.CyanString("%.2f", m.CriticalPath.ParallelEfficiency))
		fmt.Printf("Resources: %d CPUs, %.1f GB free, capacity for %d more agents\n",
			m.Resources.CPUs, m.Resources.FreeMemGB, m.Resources.EstimatedCapacity)
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent swarm events",
	Long: `Show the most recent journal events: spawns, dispatches, completions,
retries, retirements. The journal is append-only and survives resets.

Examples:
  swarmbench history
  swarmbench history --limit 100`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		events, err := engine.History(historyLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No history recorded.")
			return nil
		}
		for _, e := range events {
			line := fmt.Sprintf("%s  %s %s %s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.EntityType, e.EntityID, color.CyanString(e.Event))
			if e.Detail != "" {
				line += fmt.Sprintf(" (%s)", truncateLine(e.Detail, 60))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output as JSON")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum events to show")
}
