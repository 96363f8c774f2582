package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/internal/config"
	"github.com/swarmbench/swarmbench/internal/workbench"
)

var (
	initForce    bool
	initSkipPing bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a swarmbench project",
	Long: `Initialize a directory for use with swarmbench.

This command sets up everything needed to run a swarm:
  - Creates the data directory for persisted state
  - Creates a .swarmbench.yaml project config template
  - Verifies the workbench service is reachable

The directory argument is optional and defaults to the current directory.

Examples:
  swarmbench init              # Initialize current directory
  swarmbench init ./myproject  # Initialize specific directory
  swarmbench init --force      # Rewrite the project config template
  swarmbench init --skip-ping  # Skip the workbench reachability check`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .swarmbench.yaml")
	initCmd.Flags().BoolVar(&initSkipPing, "skip-ping", false, "Skip the workbench reachability check")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing swarmbench in %s...\n\n", absPath)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Swarm.DataDir, 0755); err != nil {
		printStatus("✗", "Could not create data directory", color.FgRed)
		return fmt.Errorf("creating data directory: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Data directory ready: %s", cfg.Swarm.DataDir), color.FgGreen)

	if err := writeProjectConfig(absPath, initForce); err != nil {
		return err
	}

	if !initSkipPing {
		client := workbench.NewHTTPClient(cfg.Workbench.BaseURL, cfg.Workbench.AuthToken, cfg.Workbench.RequestTimeout)
		if client.Ping(cmd.Context()) {
			printStatus("✓", fmt.Sprintf("Workbench reachable at %s", cfg.Workbench.BaseURL), color.FgGreen)
		} else {
			printStatus("⚠", fmt.Sprintf("Workbench not reachable at %s (set workbench.base_url or WORKBENCH_URL)", cfg.Workbench.BaseURL), color.FgYellow)
		}
	}

	fmt.Printf("\n%s swarmbench initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Spawn some specialists:")
	fmt.Println("     swarmbench spawn backend-api-specialist react-ui-specialist")
	fmt.Println()
	fmt.Println("  2. Dispatch work:")
	fmt.Println("     swarmbench dispatch agent-1 \"implement the login endpoint\"")
	fmt.Println()
	fmt.Println("  3. Watch the swarm:")
	fmt.Println("     swarmbench status")

	return nil
}

// writeProjectConfig creates the .swarmbench.yaml template.
func writeProjectConfig(dir string, force bool) error {
	configPath := projectConfigPath(dir)

	if _, err := os.Stat(configPath); err == nil && !force {
		printStatus("✓", ".swarmbench.yaml exists (use --force to rewrite)", color.FgGreen)
		return nil
	}

	template := `# Swarmbench Project Configuration
# This file overrides defaults from ~/.config/swarmbench/config.yaml

# workbench:
#   base_url: http://127.0.0.1:3030
#   auth_token: ${WORKBENCH_TOKEN}
#   request_timeout: 30s

# swarm:
#   data_dir: ~/.swarmbench
#   task_timeout: 10m
#   poll_interval: 3s
#   stale_threshold: 5m
#   per_agent_mem_gb: 3.0
#   max_retries: 3
#   debug_log: false
`

	if err := os.WriteFile(configPath, []byte(template), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	printStatus("✓", "Created .swarmbench.yaml template", color.FgGreen)
	return nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
