package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/internal/journal"
	"github.com/sotaru/tasuke/internal/llm"
	"github.com/sotaru/tasuke/internal/planner"
	"github.com/sotaru/tasuke/internal/store"
	"github.com/sotaru/tasuke/internal/worker"
)

var rootCmd = &cobra.Command{
	Use:   "tasuke",
	Short: "Task planning and dependency-resolution engine",
	Long: `Tasuke decomposes a free-form instruction into a plan of interdependent
tasks, persists the plan, and drives it through execution by delegating
each task to a specialized worker once its prerequisites are satisfied.

Typical flow:

  tasuke plan "research the market and write a report"
  tasuke run --session <id>
  tasuke status --session <id>`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens the sqlite plan store at the configured location and
// ensures the schema is current.
func openStore(cfg *config.Config) (*store.DB, error) {
	path := store.DefaultDBPath()
	if cfg.Workspace.DataDir != "" {
		path = filepath.Join(cfg.Workspace.DataDir, "tasuke.db")
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate plan store: %w", err)
	}
	return db, nil
}

// dataDir resolves the directory holding the plan store, journal, and
// debug logs: the configured data dir, or the store's default location.
func dataDir(cfg *config.Config) string {
	if cfg.Workspace.DataDir != "" {
		return cfg.Workspace.DataDir
	}
	return filepath.Dir(store.DefaultDBPath())
}

// openJournal opens the transition journal next to the plan store. A
// journal failure is not fatal; callers run without audit history.
func openJournal(cfg *config.Config) *journal.Journal {
	j, err := journal.Open(journal.DefaultPath(dataDir(cfg)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: journal unavailable: %v\n", err)
		return nil
	}
	return j
}

// buildCompleter returns an LLM client when an API key or Bedrock is
// configured, nil otherwise. Nil degrades gracefully: planning falls back
// to rules and the LLM workers use canned responses.
func buildCompleter(cfg *config.Config) llm.Completer {
	apiKey, _, err := cfg.Credentials()
	if err != nil {
		return nil
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         cfg.Anthropic.Model,
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Bedrock.Enabled,
		AWSRegion:     cfg.Bedrock.Region,
		AWSProfile:    cfg.Bedrock.Profile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM client unavailable: %v\n", err)
		return nil
	}
	return client
}

// buildRegistry assembles the worker registry from workers.yaml and config.
func buildRegistry(cfg *config.Config, completer llm.Completer) (*worker.Registry, error) {
	defs, err := worker.LoadDefinitions(cfg.Workspace.WorkersFile)
	if err != nil {
		return nil, fmt.Errorf("load worker definitions: %w", err)
	}
	if defs.Workers.File.Root == "" {
		defs.Workers.File.Root = cfg.Workspace.FileRoot
	}
	return defs.BuildRegistry(completer)
}

// buildGenerator picks the plan generator: Claude when a completer is
// available, keyword rules otherwise.
func buildGenerator(completer llm.Completer) planner.Generator {
	if completer != nil {
		return planner.NewClaudeGenerator(completer)
	}
	return planner.NewRuleGenerator()
}
