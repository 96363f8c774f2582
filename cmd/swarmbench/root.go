package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/internal/config"
	"github.com/swarmbench/swarmbench/internal/history"
	"github.com/swarmbench/swarmbench/internal/store"
	"github.com/swarmbench/swarmbench/internal/swarm"
	"github.com/swarmbench/swarmbench/internal/workbench"
)

var rootCmd = &cobra.Command{
	Use:   "swarmbench",
	Short: "Swarm orchestration for workbench agents",
	Long: `Swarmbench coordinates a swarm of role-specialized agents, each bound
to an isolated workspace owned by an external workbench service.

Spawn specialists on the fly, dispatch tasks to them individually or as
dependency-gated parallel stages, and track completion, retries, and the
critical path across the whole run.

Core capabilities:
- Dynamic agent roles: no predefined specialist list
- Parallel stages with dependency ordering between them
- Crash-safe local state: every mutation is persisted immediately
- Retry with a dead-letter queue after the budget is exhausted
- Resource-aware capacity estimation before spawning`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(spawnCmd)
	rootCmd.AddCommand(specializeCmd)
	rootCmd.AddCommand(retireCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(deadLettersCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// newEngine wires up the engine from configuration. The returned cleanup
// closes the engine (draining watchers) and the journal.
func newEngine() (*swarm.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	st := store.Open(cfg.Swarm.DataDir)
	client := workbench.NewHTTPClient(cfg.Workbench.BaseURL, cfg.Workbench.AuthToken, cfg.Workbench.RequestTimeout)

	// The journal is an audit trail; a broken one must not stop the swarm.
	journal, err := history.Open(history.DefaultPath(cfg.Swarm.DataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history journal unavailable: %v\n", err)
		journal = nil
	}

	logger := swarm.NopLogger()
	if cfg.Swarm.DebugLog {
		logger = swarm.NewDebugLoggerForDataDir(cfg.Swarm.DataDir)
	}

	engine := swarm.New(st, client, swarm.Options{
		TaskTimeout:    cfg.Swarm.TaskTimeout,
		PollInterval:   cfg.Swarm.PollInterval,
		StaleThreshold: cfg.Swarm.StaleThreshold,
		MaxRetries:     cfg.Swarm.MaxRetries,
		PerAgentMemGB:  cfg.Swarm.PerAgentMemGB,
		Journal:        journal,
		Logger:         logger,
	})

	cleanup := func() {
		engine.Close()
		journal.Close()
		logger.Close()
	}
	return engine, cleanup, nil
}

// projectConfigPath returns the project override file in the given directory.
func projectConfigPath(dir string) string {
	return filepath.Join(dir, ".swarmbench.yaml")
}
