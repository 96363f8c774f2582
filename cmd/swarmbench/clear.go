package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop finished work from the swarm state",
	Long: `Drop terminal tasks, retired agents, and concluded stages. Running tasks,
active agents, shared memory, and the ID counters are kept, so history
stays linear.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		stats := engine.Clear()
		printStatus("✓", fmt.Sprintf("cleared %d tasks, %d agents, %d stages",
			stats.ClearedTasks, stats.ClearedAgents, stats.ClearedStages), color.FgGreen)
		fmt.Printf("  remaining: %d tasks, %d agents, %d stages\n",
			stats.RemainingTasks, stats.RemainingAgents, stats.RemainingStages)
		return nil
	},
}

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all swarm state",
	Long: `Wipe everything: agents, tasks, stages, shared memory, retry counters,
dead letters, and the ID counters. Workspaces owned by the workbench are
not touched. The history journal survives.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce && !confirm("Wipe all swarm state?") {
			fmt.Println("Aborted.")
			return nil
		}

		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		stats := engine.Reset()
		printStatus("✓", fmt.Sprintf("reset dropped %d agents, %d tasks, %d stages, %d memory entries",
			stats.Agents, stats.Tasks, stats.Stages, stats.MemoryEntries), color.FgGreen)
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip the confirmation prompt")
}

// confirm asks a yes/no question on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
