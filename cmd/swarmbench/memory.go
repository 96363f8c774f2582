package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage shared swarm memory",
	Long: `Shared memory is a key-value context store injected into every dispatched
task as a [SHARED CONTEXT] block. Use it for decisions every agent must
see: schema versions, API contracts, style rulings.`,
}

var memorySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a shared memory entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := engine.MemorySet(args[0], args[1]); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s = %s", args[0], args[1]), color.FgGreen)
		return nil
	},
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one shared memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		value, err := engine.MemoryGet(args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a shared memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		deleted, err := engine.MemoryDelete(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			printStatus("⚠", fmt.Sprintf("%s did not exist", args[0]), color.FgYellow)
			return nil
		}
		printStatus("✓", fmt.Sprintf("%s deleted", args[0]), color.FgGreen)
		return nil
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all shared memory entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		entries := engine.MemoryList()
		if len(entries) == 0 {
			fmt.Println("Shared memory is empty.")
			return nil
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %s\n", color.CyanString(k), entries[k])
		}
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memorySetCmd)
	memoryCmd.AddCommand(memoryGetCmd)
	memoryCmd.AddCommand(memoryDeleteCmd)
	memoryCmd.AddCommand(memoryListCmd)
}
