package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/internal/swarm"
	"gopkg.in/yaml.v3"
)

var (
	spawnPrompt  string
	spawnFile    string
	spawnProject string
	spawnTrunk   string
)

var spawnCmd = &cobra.Command{
	Use:   "spawn [role]...",
	Short: "Spawn role-specialized agents",
	Long: `Spawn one workspace-backed agent per role. Roles are free-form labels;
any specialist the task needs can be spawned on the fly.

Each agent gets its own isolated workspace branched from the trunk. A
system prompt, when given, is sent as a priming instruction so the agent
acknowledges its role before receiving work.

Agents can also be described in a YAML file for richer specs:

  agents:
    - role: react-ui-specialist
      prompt: You build accessible React components.
    - role: backend-api-specialist
      prompt: You own the REST API layer.

Examples:
  swarmbench spawn security-auditor
  swarmbench spawn frontend backend qa
  swarmbench spawn rustacean --prompt "You are a Rust performance expert"
  swarmbench spawn --file team.yaml`,
	RunE: runSpawn,
}

func init() {
	spawnCmd.Flags().StringVar(&spawnPrompt, "prompt", "", "System prompt (single role only)")
	spawnCmd.Flags().StringVarP(&spawnFile, "file", "f", "", "YAML file describing the agents to spawn")
	spawnCmd.Flags().StringVar(&spawnProject, "project", ".", "Project path the workspaces are created for")
	spawnCmd.Flags().StringVar(&spawnTrunk, "trunk", "", "Trunk branch to branch workspaces from (default: resolved from the workbench)")
}

// spawnFileSpec mirrors the YAML agent spec layout.
type spawnFileSpec struct {
	Agents []struct {
		Role   string `yaml:"role"`
		Prompt string `yaml:"prompt"`
		Title  string `yaml:"title"`
	} `yaml:"agents"`
}

func runSpawn(cmd *cobra.Command, args []string) error {
	specs, err := buildSpawnSpecs(args)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("nothing to spawn: give roles as arguments or --file")
	}

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.Spawn(cmd.Context(), spawnProject, specs, spawnTrunk)
	if err != nil {
		return err
	}

	if result.Warning != "" {
		printStatus("⚠", result.Warning, color.FgYellow)
	}

	for _, o := range result.Outcomes {
		if o.Ready() {
			printStatus("✓", fmt.Sprintf("%s (%s) ready in workspace %s", o.AgentID, o.Role, o.WorkspaceID), color.FgGreen)
		} else {
			printStatus("✗", fmt.Sprintf("%s (%s): %s", o.AgentID, o.Role, o.Status), color.FgRed)
		}
	}

	snap := result.Capacity
	fmt.Printf("\nCapacity: %d active, room for ~%d more (%.1f GB free)\n",
		snap.ActiveAgents, snap.EstimatedCapacity, snap.FreeMemGB)
	return nil
}

// buildSpawnSpecs assembles agent specs from args, --prompt, and --file.
func buildSpawnSpecs(roles []string) ([]swarm.AgentSpec, error) {
	var specs []swarm.AgentSpec

	if spawnPrompt != "" && len(roles) > 1 {
		return nil, fmt.Errorf("--prompt applies to a single role, got %d", len(roles))
	}
	for _, role := range roles {
		specs = append(specs, swarm.AgentSpec{Role: role, SystemPrompt: spawnPrompt})
	}

	if spawnFile != "" {
		data, err := os.ReadFile(spawnFile)
		if err != nil {
			return nil, fmt.Errorf("reading spec file: %w", err)
		}
		var file spawnFileSpec
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing spec file: %w", err)
		}
		for _, a := range file.Agents {
			if a.Role == "" {
				return nil, fmt.Errorf("spec file: agent with empty role")
			}
			specs = append(specs, swarm.AgentSpec{Role: a.Role, SystemPrompt: a.Prompt, Title: a.Title})
		}
	}

	return specs, nil
}

var specializeCmd = &cobra.Command{
	Use:   "specialize <agent-id> <new-role>",
	Short: "Change an idle agent's role",
	Long: `Re-specialize an existing idle agent into a new role, keeping its
workspace. The agent is told about the role change and asked to
acknowledge it. A busy agent cannot be re-specialized.

Examples:
  swarmbench specialize agent-2 database-migration-specialist
  swarmbench specialize agent-2 qa --prompt "You write property-based tests"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := engine.Specialize(cmd.Context(), args[0], args[1], specializePrompt); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s is now %s", args[0], args[1]), color.FgGreen)
		return nil
	},
}

var specializePrompt string

func init() {
	specializeCmd.Flags().StringVar(&specializePrompt, "prompt", "", "System prompt for the new role")
}

var retireArchive bool

var retireCmd = &cobra.Command{
	Use:   "retire <agent-id>",
	Short: "Retire an agent and delete its workspace",
	Long: `Retire an agent. Its workspace is deleted through the workbench and the
agent record is kept with retired status until the next clear.

Examples:
  swarmbench retire agent-3
  swarmbench retire agent-3 --archive  # keep the workspace branch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		agent, err := engine.Retire(cmd.Context(), args[0], retireArchive)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s (%s) retired after %d completed tasks", agent.ID, agent.Role, agent.TasksCompleted), color.FgGreen)
		return nil
	},
}

func init() {
	retireCmd.Flags().BoolVar(&retireArchive, "archive", false, "Archive the workspace instead of discarding it")
}
