package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/pkg/models"
)

var retrySession string

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Reset a failed task to pending",
	Long: `Move a failed task back to pending, clearing its error and attempt
counter. Dependents that were blocked by the failure are reset to pending
as well, so the next 'tasuke run' picks the whole subtree up again.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().StringVar(&retrySession, "session", "", "session id (required)")
	retryCmd.MarkFlagRequired("session")
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	taskID, err := resolveTaskID(st, retrySession, args[0])
	if err != nil {
		return err
	}

	task, err := st.RetryTask(retrySession, taskID)
	if err != nil {
		return fmt.Errorf("retry task: %w", err)
	}

	if j := openJournal(cfg); j != nil {
		defer j.Close()
		if err := j.Record(retrySession, taskID, models.TaskStatusFailed, models.TaskStatusPending, "manual retry"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: journal write failed: %v\n", err)
		}
	}

	fmt.Printf("Task [%s] reset to %s. Run the plan again with: tasuke run --session %s\n",
		shortID(task.ID), task.Status, retrySession)
	return nil
}
