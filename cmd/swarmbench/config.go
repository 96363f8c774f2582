package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/swarmbench/swarmbench/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify swarmbench configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/swarmbench/config.yaml
Project-specific overrides can be placed in .swarmbench.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask the token if set
	tokenDisplay := "(not set)"
	if cfg.Workbench.AuthToken != "" {
		tokenDisplay = "****"
	}

	fmt.Printf("workbench.base_url: %s\n", cfg.Workbench.BaseURL)
	fmt.Printf("workbench.auth_token: %s\n", tokenDisplay)
	fmt.Printf("workbench.request_timeout: %s\n", cfg.Workbench.RequestTimeout)
	fmt.Printf("swarm.data_dir: %s\n", cfg.Swarm.DataDir)
	fmt.Printf("swarm.task_timeout: %s\n", cfg.Swarm.TaskTimeout)
	fmt.Printf("swarm.poll_interval: %s\n", cfg.Swarm.PollInterval)
	fmt.Printf("swarm.stale_threshold: %s\n", cfg.Swarm.StaleThreshold)
	fmt.Printf("swarm.per_agent_mem_gb: %.1f\n", cfg.Swarm.PerAgentMemGB)
	fmt.Printf("swarm.max_retries: %d\n", cfg.Swarm.MaxRetries)
	fmt.Printf("swarm.debug_log: %t\n", cfg.Swarm.DebugLog)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "workbench.base_url":
		return cfg.Workbench.BaseURL, nil
	case "workbench.auth_token":
		if cfg.Workbench.AuthToken == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "workbench.request_timeout":
		return cfg.Workbench.RequestTimeout.String(), nil
	case "swarm.data_dir":
		return cfg.Swarm.DataDir, nil
	case "swarm.task_timeout":
		return cfg.Swarm.TaskTimeout.String(), nil
	case "swarm.poll_interval":
		return cfg.Swarm.PollInterval.String(), nil
	case "swarm.stale_threshold":
		return cfg.Swarm.StaleThreshold.String(), nil
	case "swarm.per_agent_mem_gb":
		return strconv.FormatFloat(cfg.Swarm.PerAgentMemGB, 'f', 1, 64), nil
	case "swarm.max_retries":
		return strconv.Itoa(cfg.Swarm.MaxRetries), nil
	case "swarm.debug_log":
		return strconv.FormatBool(cfg.Swarm.DebugLog), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "workbench.base_url":
		cfg.Workbench.BaseURL = value
	case "workbench.auth_token":
		cfg.Workbench.AuthToken = value
	case "workbench.request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for request_timeout: %w", err)
		}
		cfg.Workbench.RequestTimeout = d
	case "swarm.data_dir":
		cfg.Swarm.DataDir = value
	case "swarm.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_timeout: %w", err)
		}
		cfg.Swarm.TaskTimeout = d
	case "swarm.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for poll_interval: %w", err)
		}
		cfg.Swarm.PollInterval = d
	case "swarm.stale_threshold":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for stale_threshold: %w", err)
		}
		cfg.Swarm.StaleThreshold = d
	case "swarm.per_agent_mem_gb":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for per_agent_mem_gb: %w", err)
		}
		cfg.Swarm.PerAgentMemGB = f
	case "swarm.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_retries: %w", err)
		}
		cfg.Swarm.MaxRetries = n
	case "swarm.debug_log":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for debug_log: %w", err)
		}
		cfg.Swarm.DebugLog = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
