package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Tasuke configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/tasuke/config.yaml
Project-specific overrides can be placed in .tasuke.yaml`,
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
	_, src, _ := cfg.Credentials()
	fmt.Printf("anthropic.api_key: %s (source: %s)\n", config.MaskKey(cfg.Anthropic.APIKey), src)
	fmt.Printf("anthropic.model: %s\n", orUnset(cfg.Anthropic.Model))
	fmt.Printf("bedrock.enabled: %t\n", cfg.Bedrock.Enabled)
	fmt.Printf("bedrock.region: %s\n", orUnset(cfg.Bedrock.Region))
	fmt.Printf("bedrock.profile: %s\n", orUnset(cfg.Bedrock.Profile))
	fmt.Printf("executor.max_workers: %d\n", cfg.Executor.MaxWorkers)
	fmt.Printf("executor.worker_timeout: %s\n", cfg.Executor.WorkerTimeout)
	fmt.Printf("executor.max_retries: %d\n", cfg.Executor.MaxRetries)
	fmt.Printf("executor.retry_backoff: %s\n", cfg.Executor.RetryBackoff)
	fmt.Printf("executor.poll_interval: %s\n", cfg.Executor.PollInterval)
	fmt.Printf("planner.replanning: %t\n", cfg.Planner.Replanning)
	fmt.Printf("workspace.data_dir: %s\n", orUnset(cfg.Workspace.DataDir))
	fmt.Printf("workspace.file_root: %s\n", cfg.Workspace.FileRoot)
	fmt.Printf("workspace.workers_file: %s\n", cfg.Workspace.WorkersFile)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
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
	case "anthropic.api_key":
		return config.MaskKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return orUnset(cfg.Anthropic.Model), nil
	case "bedrock.enabled":
		return strconv.FormatBool(cfg.Bedrock.Enabled), nil
	case "bedrock.region":
		return orUnset(cfg.Bedrock.Region), nil
	case "bedrock.profile":
		return orUnset(cfg.Bedrock.Profile), nil
	case "executor.max_workers":
		return strconv.Itoa(cfg.Executor.MaxWorkers), nil
	case "executor.worker_timeout":
		return cfg.Executor.WorkerTimeout.String(), nil
	case "executor.max_retries":
		return strconv.Itoa(cfg.Executor.MaxRetries), nil
	case "executor.retry_backoff":
		return cfg.Executor.RetryBackoff.String(), nil
	case "executor.poll_interval":
		return cfg.Executor.PollInterval.String(), nil
	case "planner.replanning":
		return strconv.FormatBool(cfg.Planner.Replanning), nil
	case "workspace.data_dir":
		return orUnset(cfg.Workspace.DataDir), nil
	case "workspace.file_root":
		return cfg.Workspace.FileRoot, nil
	case "workspace.workers_file":
		return cfg.Workspace.WorkersFile, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateKeyFormat(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "bedrock.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for bedrock.enabled: %w", err)
		}
		cfg.Bedrock.Enabled = b
	case "bedrock.region":
		cfg.Bedrock.Region = value
	case "bedrock.profile":
		cfg.Bedrock.Profile = value
	case "executor.max_workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_workers: %w", err)
		}
		cfg.Executor.MaxWorkers = n
	case "executor.worker_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for worker_timeout: %w", err)
		}
		cfg.Executor.WorkerTimeout = d
	case "executor.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_retries: %w", err)
		}
		cfg.Executor.MaxRetries = n
	case "executor.retry_backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for retry_backoff: %w", err)
		}
		cfg.Executor.RetryBackoff = d
	case "executor.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for poll_interval: %w", err)
		}
		cfg.Executor.PollInterval = d
	case "planner.replanning":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for planner.replanning: %w", err)
		}
		cfg.Planner.Replanning = b
	case "workspace.data_dir":
		cfg.Workspace.DataDir = value
	case "workspace.file_root":
		cfg.Workspace.FileRoot = value
	case "workspace.workers_file":
		cfg.Workspace.WorkersFile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
