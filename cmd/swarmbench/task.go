package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var taskJSON bool

var taskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Show one task in full",
	Long: `Show a single task record: instruction, status, result or error, timing,
stage membership, and elapsed wall time.

Examples:
  swarmbench task task-3
  swarmbench task task-3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		detail, err := engine.GetTask(args[0])
		if err != nil {
			return err
		}
		if taskJSON {
			return json.NewEncoder(os.Stdout).Encode(detail)
		}

		fmt.Printf("Task:        %s\n", detail.ID)
		fmt.Printf("Agent:       %s\n", detail.AgentID)
		fmt.Printf("Status:      %s\n", detail.Status)
		fmt.Printf("Priority:    %d\n", detail.Priority)
		if detail.StageID != "" {
			fmt.Printf("Stage:       %s\n", detail.StageID)
		}
		fmt.Printf("Elapsed:     %s\n", detail.Elapsed)
		fmt.Printf("Instruction: %s\n", detail.Instruction)
		if detail.Result != "" {
			fmt.Printf("\nResult:\n%s\n", detail.Result)
		}
		if detail.Error != "" {
			fmt.Printf("\nError: %s\n", color.RedString(detail.Error))
		}
		return nil
	},
}

func init() {
	taskCmd.Flags().BoolVar(&taskJSON, "json", false, "Output as JSON")
}
