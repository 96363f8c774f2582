package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/pkg/models"
)

var dispatchPriority int

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <agent-id> <instruction>...",
	Short: "Send a task to an agent",
	Long: `Dispatch one instruction to an agent and return immediately. A background
watcher tracks the agent's response and settles the task as completed or
timed out. Shared memory entries are injected ahead of the instruction as
a context block.

Examples:
  swarmbench dispatch agent-1 "implement the login endpoint"
  swarmbench dispatch agent-2 "write the audit report" --priority 1`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().IntVarP(&dispatchPriority, "priority", "p", 5, "Task priority, 1 is highest")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	instruction := strings.Join(args[1:], " ")

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.Dispatch(cmd.Context(), args[0], instruction, dispatchPriority)
	if err != nil {
		return err
	}

	if result.Status == models.TaskStatusFailed {
		printStatus("✗", fmt.Sprintf("%s failed to dispatch to %s (%s): %s", result.TaskID, result.AgentID, result.Role, result.Error), color.FgRed)
		return nil
	}
	printStatus("✓", fmt.Sprintf("%s dispatched to %s (%s)", result.TaskID, result.AgentID, result.Role), color.FgGreen)
	fmt.Printf("  collect with: swarmbench collect --tasks %s\n", result.TaskID)
	return nil
}
