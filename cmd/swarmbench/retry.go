package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/pkg/models"
)

var (
	retryAgent      string
	retryMaxRetries int
)

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Retry a failed or timed-out task",
	Long: `Re-dispatch a terminal task as a brand-new task, on the same agent or a
different one. Each retry of the same original task increments a counter;
once the budget is exhausted the task moves to the dead-letter queue and
is not retried again.

Examples:
  swarmbench retry task-4
  swarmbench retry task-4 --agent agent-2
  swarmbench retry task-4 --max-retries 5`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().StringVar(&retryAgent, "agent", "", "Dispatch the retry to this agent instead of the original")
	retryCmd.Flags().IntVar(&retryMaxRetries, "max-retries", 0, "Override the retry budget for this task")
}

func runRetry(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.RetryTask(cmd.Context(), args[0], retryAgent, retryMaxRetries)
	if err != nil {
		return err
	}

	if result.DeadLettered {
		printStatus("✗", fmt.Sprintf("%s exhausted its retry budget (%d) and was dead-lettered", args[0], result.MaxRetries), color.FgRed)
		fmt.Println("  inspect with: swarmbench deadletters")
		return nil
	}
	if result.Status == models.TaskStatusFailed {
		printStatus("✗", fmt.Sprintf("retry %d/%d as %s failed to dispatch: %s", result.Attempt, result.MaxRetries, result.NewTaskID, result.Error), color.FgRed)
		return nil
	}
	printStatus("✓", fmt.Sprintf("retry %d/%d dispatched as %s to %s (%s)", result.Attempt, result.MaxRetries, result.NewTaskID, result.AgentID, result.Role), color.FgGreen)
	return nil
}

var deadLettersJSON bool

var deadLettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "List dead-lettered tasks",
	Long: `List tasks that exhausted their retry budget. Each entry keeps the
original instruction, the target role, the final error, and the retry
count, so the work can be re-dispatched by hand if wanted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		letters := engine.ListDeadLetters()
		if deadLettersJSON {
			return json.NewEncoder(os.Stdout).Encode(letters)
		}
		if len(letters) == 0 {
			fmt.Println("Dead-letter queue is empty.")
			return nil
		}
		for _, dl := range letters {
			printStatus("✗", fmt.Sprintf("%s (%s) after %d retries: %s", dl.TaskID, dl.Role, dl.Retries, dl.Error), color.FgRed)
			fmt.Printf("    %s\n", truncateLine(dl.Instruction, 120))
		}
		return nil
	},
}

func init() {
	deadLettersCmd.Flags().BoolVar(&deadLettersJSON, "json", false, "Output as JSON")
}
