// Package config handles configuration loading for swarmbench.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for swarmbench.
type Config struct {
	Workbench WorkbenchConfig `mapstructure:"workbench"`
	Swarm     SwarmConfig     `mapstructure:"swarm"`
}

// WorkbenchConfig holds settings for the external workbench service.
type WorkbenchConfig struct {
	// BaseURL is the workbench API endpoint.
	BaseURL string `mapstructure:"base_url"`
	// AuthToken is the bearer token sent on every request, if set.
	AuthToken string `mapstructure:"auth_token"`
	// RequestTimeout bounds a single HTTP call to the workbench.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SwarmConfig holds orchestration settings.
type SwarmConfig struct {
	// DataDir is where state.json and memory.json are persisted.
	DataDir string `mapstructure:"data_dir"`
	// TaskTimeout is the ceiling a completion watcher waits for a response.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// PollInterval is the collect polling interval.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// StaleThreshold is how long a working agent may be inactive before a
	// health check reclaims it.
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
	// PerAgentMemGB is the estimated memory cost of one agent workspace.
	PerAgentMemGB float64 `mapstructure:"per_agent_mem_gb"`
	// MaxRetries is the default retry budget before a task is dead-lettered.
	MaxRetries int `mapstructure:"max_retries"`
	// DebugLog enables the file-backed engine debug log under DataDir.
	DebugLog bool `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (WORKBENCH_URL, WORKBENCH_TOKEN)
// 2. Project config (.swarmbench.yaml in current directory or a parent)
// 3. User config (~/.config/swarmbench/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("workbench.base_url", "WORKBENCH_URL")
	v.BindEnv("workbench.auth_token", "WORKBENCH_TOKEN")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Workbench.AuthToken = expandEnv(cfg.Workbench.AuthToken)
	cfg.Swarm.DataDir = expandHome(cfg.Swarm.DataDir)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Workbench.AuthToken = expandEnv(cfg.Workbench.AuthToken)
	cfg.Swarm.DataDir = expandHome(cfg.Swarm.DataDir)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("workbench.base_url", cfg.Workbench.BaseURL)
	v.Set("workbench.auth_token", cfg.Workbench.AuthToken)
	v.Set("workbench.request_timeout", cfg.Workbench.RequestTimeout.String())
	v.Set("swarm.data_dir", cfg.Swarm.DataDir)
	v.Set("swarm.task_timeout", cfg.Swarm.TaskTimeout.String())
	v.Set("swarm.poll_interval", cfg.Swarm.PollInterval.String())
	v.Set("swarm.stale_threshold", cfg.Swarm.StaleThreshold.String())
	v.Set("swarm.per_agent_mem_gb", cfg.Swarm.PerAgentMemGB)
	v.Set("swarm.max_retries", cfg.Swarm.MaxRetries)
	v.Set("swarm.debug_log", cfg.Swarm.DebugLog)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures built-in default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("workbench.base_url", "http://127.0.0.1:3030")
	v.SetDefault("workbench.request_timeout", "30s")
	v.SetDefault("swarm.data_dir", defaultDataDir())
	v.SetDefault("swarm.task_timeout", "10m")
	v.SetDefault("swarm.poll_interval", "3s")
	v.SetDefault("swarm.stale_threshold", "5m")
	v.SetDefault("swarm.per_agent_mem_gb", 3.0)
	v.SetDefault("swarm.max_retries", 3)
	v.SetDefault("swarm.debug_log", false)
}

// getUserConfigDir returns the XDG config directory for swarmbench.
func getUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swarmbench")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "swarmbench")
}

// defaultDataDir returns the default persistence directory.
func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".swarmbench")
}

// findProjectConfig walks up from the current directory looking for .swarmbench.yaml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".swarmbench.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnv expands ${VAR} references in a config value.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// expandHome expands a leading ~ in a path.
func expandHome(p string) string {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
