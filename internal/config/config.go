// Package config handles configuration loading and management for Tasuke.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Tasuke.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BedrockConfig holds AWS Bedrock settings. When Enabled, API calls go
// through Bedrock instead of the Anthropic API.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// ExecutorConfig holds execution loop settings.
type ExecutorConfig struct {
	// MaxWorkers caps the number of concurrently running tasks.
	MaxWorkers int `mapstructure:"max_workers"`
	// WorkerTimeout bounds a single task dispatch.
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
	// MaxRetries is the number of automatic re-runs after a task fails.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBackoff is the pause before re-dispatching a failed task.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// PollInterval paces the loop when tasks are running but none are ready.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// PlannerConfig holds plan generation settings.
type PlannerConfig struct {
	// Replanning enables follow-up task generation from completed results.
	Replanning bool `mapstructure:"replanning"`
}

// WorkspaceConfig holds filesystem locations.
type WorkspaceConfig struct {
	// DataDir overrides the default database location.
	DataDir string `mapstructure:"data_dir"`
	// FileRoot confines the file worker's reads.
	FileRoot string `mapstructure:"file_root"`
	// WorkersFile points at an optional workers.yaml.
	WorkersFile string `mapstructure:"workers_file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, TASUKE_*)
// 2. Project config (.tasuke.yaml in current directory or parent)
// 3. User config (~/.config/tasuke/config.yaml)
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

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TASUKE")
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("bedrock.enabled", "TASUKE_BEDROCK")
	v.BindEnv("bedrock.region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
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

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

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

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("bedrock.enabled", cfg.Bedrock.Enabled)
	v.Set("bedrock.region", cfg.Bedrock.Region)
	v.Set("bedrock.profile", cfg.Bedrock.Profile)
	v.Set("executor.max_workers", cfg.Executor.MaxWorkers)
	v.Set("executor.worker_timeout", cfg.Executor.WorkerTimeout.String())
	v.Set("executor.max_retries", cfg.Executor.MaxRetries)
	v.Set("executor.retry_backoff", cfg.Executor.RetryBackoff.String())
	v.Set("executor.poll_interval", cfg.Executor.PollInterval.String())
	v.Set("planner.replanning", cfg.Planner.Replanning)
	v.Set("workspace.data_dir", cfg.Workspace.DataDir)
	v.Set("workspace.file_root", cfg.Workspace.FileRoot)
	v.Set("workspace.workers_file", cfg.Workspace.WorkersFile)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	v.SetDefault("bedrock.enabled", false)
	v.SetDefault("bedrock.region", "")
	v.SetDefault("bedrock.profile", "")

	v.SetDefault("executor.max_workers", 4)
	v.SetDefault("executor.worker_timeout", "2m")
	v.SetDefault("executor.max_retries", 2)
	v.SetDefault("executor.retry_backoff", "1s")
	v.SetDefault("executor.poll_interval", "100ms")

	v.SetDefault("planner.replanning", true)

	v.SetDefault("workspace.data_dir", "")
	v.SetDefault("workspace.file_root", ".")
	v.SetDefault("workspace.workers_file", "workers.yaml")
}

// getUserConfigDir returns the XDG config directory for Tasuke.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tasuke")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "tasuke")
	}
	return filepath.Join(home, ".config", "tasuke")
}

// findProjectConfig searches for .tasuke.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".tasuke.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			MaxWorkers:    4,
			WorkerTimeout: 2 * time.Minute,
			MaxRetries:    2,
			RetryBackoff:  time.Second,
			PollInterval:  100 * time.Millisecond,
		},
		Planner: PlannerConfig{
			Replanning: true,
		},
		Workspace: WorkspaceConfig{
			FileRoot:    ".",
			WorkersFile: "workers.yaml",
		},
	}
}
