package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/internal/swarm"
	"gopkg.in/yaml.v3"
)

var (
	stageTasks     []string
	stageDependsOn []string
	stageFile      string
)

var stageCmd = &cobra.Command{
	Use:   "stage <name>",
	Short: "Launch a parallel stage of tasks",
	Long: `Launch a named stage: a batch of tasks dispatched to different agents in
parallel. A stage may depend on earlier stages; it is refused until every
dependency has completed. Dependency cycles are rejected.

Tasks are given inline as agent:instruction pairs, or in a YAML plan:

  name: build
  depends_on: [stage-1]
  tasks:
    - agent: agent-1
      instruction: implement the API endpoints
    - agent: agent-2
      instruction: build the dashboard UI

Examples:
  swarmbench stage build -t 'agent-1:implement the API' -t 'agent-2:build the UI'
  swarmbench stage qa -t 'agent-3:run the test suite' --depends-on stage-1
  swarmbench stage --file plan.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStage,
}

func init() {
	stageCmd.Flags().StringArrayVarP(&stageTasks, "task", "t", nil, "Task as 'agent-id:instruction' (repeatable)")
	stageCmd.Flags().StringSliceVar(&stageDependsOn, "depends-on", nil, "Stage IDs that must complete first")
	stageCmd.Flags().StringVarP(&stageFile, "file", "f", "", "YAML plan file describing the stage")
}

// stagePlan mirrors the YAML plan layout.
type stagePlan struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
	Tasks     []struct {
		Agent       string `yaml:"agent"`
		Instruction string `yaml:"instruction"`
	} `yaml:"tasks"`
}

func runStage(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	dependsOn := stageDependsOn

	var specs []swarm.StageTaskSpec
	for _, raw := range stageTasks {
		agentID, instruction, ok := strings.Cut(raw, ":")
		if !ok || agentID == "" || instruction == "" {
			return fmt.Errorf("invalid --task %q, want 'agent-id:instruction'", raw)
		}
		specs = append(specs, swarm.StageTaskSpec{AgentID: agentID, Instruction: instruction})
	}

	if stageFile != "" {
		data, err := os.ReadFile(stageFile)
		if err != nil {
			return fmt.Errorf("reading plan file: %w", err)
		}
		var plan stagePlan
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return fmt.Errorf("parsing plan file: %w", err)
		}
		if name == "" {
			name = plan.Name
		}
		dependsOn = append(dependsOn, plan.DependsOn...)
		for _, t := range plan.Tasks {
			if t.Agent == "" || t.Instruction == "" {
				return fmt.Errorf("plan file: task needs both agent and instruction")
			}
			specs = append(specs, swarm.StageTaskSpec{AgentID: t.Agent, Instruction: t.Instruction})
		}
	}

	if name == "" {
		return fmt.Errorf("stage needs a name (argument or plan file)")
	}
	if len(specs) == 0 {
		return fmt.Errorf("stage %q has no tasks: use --task or --file", name)
	}

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.ExecuteStage(cmd.Context(), name, specs, dependsOn)
	if err != nil {
		return err
	}

	fmt.Printf("Stage %s (%s) launched %d/%d tasks\n", result.StageID, result.Name, result.Launched(), len(result.Launches))
	for _, l := range result.Launches {
		if l.TaskID != "" && l.Status == "running" {
			printStatus("✓", fmt.Sprintf("%s → %s (%s)", l.TaskID, l.AgentID, l.Role), color.FgGreen)
		} else {
			printStatus("✗", fmt.Sprintf("%s (%s): %s", l.AgentID, l.Role, l.Status), color.FgRed)
		}
	}
	fmt.Printf("\n  collect with: swarmbench collect --stage %s\n", result.StageID)
	return nil
}
