package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/internal/executor"
	"github.com/sotaru/tasuke/internal/planner"
	"github.com/sotaru/tasuke/pkg/models"
)

var runSession string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a session's plan until it completes or gets stuck",
	Long: `Drive the session's plan: dispatch every task whose dependencies are
satisfied, in parallel up to the worker cap, until no task is pending,
ready, or running.

A failed task is retried automatically up to executor.max_retries times.
When retries are exhausted, its dependents are marked blocked and the run
finishes as "stuck"; use 'tasuke retry' to try again after fixing the
cause.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSession, "session", "", "session id (required)")
	runCmd.MarkFlagRequired("session")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	j := openJournal(cfg)
	if j != nil {
		defer j.Close()
	}

	completer := buildCompleter(cfg)
	registry, err := buildRegistry(cfg, completer)
	if err != nil {
		return err
	}

	var replanner planner.Replanner
	if completer != nil {
		replanner = planner.NewClaudeGenerator(completer)
	}

	logger := executor.NewDebugLoggerForData(dataDir(cfg))
	defer logger.Close()

	o := executor.New(st, registry, executor.Options{
		Replanner:  replanner,
		Journal:    j,
		Logger:     logger,
		Config:     cfg.Executor,
		Replanning: cfg.Planner.Replanning,
	})

	fmt.Printf("Executing plan for session %s...\n", runSession)
	out, err := o.ExecuteAll(cmd.Context(), runSession)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	fmt.Println()
	for _, s := range []models.TaskStatus{models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusBlocked} {
		if n := out.Counts[s]; n > 0 {
			fmt.Printf("  %s: %d\n", s, n)
		}
	}
	if out.State == executor.PlanCompleted {
		color.Green("\nPlan completed.")
	} else {
		color.Red("\nPlan is stuck; inspect failures with 'tasuke status --session %s'.", runSession)
	}
	return nil
}
