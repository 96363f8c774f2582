package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/pkg/models"
)

var (
	collectStage   string
	collectTasks   []string
	collectTimeout time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Wait for tasks to finish and gather results",
	Long: `Block until the targeted tasks reach a terminal state, then print their
results. Targets a stage, an explicit task list, or with neither flag
every task currently in flight. Tasks still unresolved when the timeout
elapses are force-marked as timed out.

Examples:
  swarmbench collect                       # everything in flight
  swarmbench collect --stage stage-2
  swarmbench collect --tasks task-4,task-7 --timeout 5m`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVar(&collectStage, "stage", "", "Collect the tasks of one stage")
	collectCmd.Flags().StringSliceVar(&collectTasks, "tasks", nil, "Collect specific task IDs")
	collectCmd.Flags().DurationVar(&collectTimeout, "timeout", 0, "Collection budget (default: task timeout)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.Collect(cmd.Context(), collectStage, collectTasks, collectTimeout)
	if err != nil {
		return err
	}

	if len(result.Tasks) == 0 {
		fmt.Println("Nothing to collect.")
		return nil
	}

	for _, t := range result.Tasks {
		switch t.Status {
		case models.TaskStatusCompleted:
			printStatus("✓", fmt.Sprintf("%s (%s): %s", t.ID, t.AgentID, truncateLine(t.Result, 100)), color.FgGreen)
		case models.TaskStatusTimeout:
			printStatus("⏱", fmt.Sprintf("%s (%s): %s", t.ID, t.AgentID, t.Error), color.FgYellow)
		default:
			printStatus("✗", fmt.Sprintf("%s (%s): %s", t.ID, t.AgentID, t.Error), color.FgRed)
		}
	}
	fmt.Printf("\n%d/%d completed\n", result.Completed, len(result.Tasks))
	return nil
}

// truncateLine shortens a result for one-line display.
func truncateLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
