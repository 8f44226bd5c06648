package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/internal/store"
	"github.com/sotaru/tasuke/pkg/models"
)

var (
	updateSession  string
	updateStatus   string
	updateResult   string
	updateError    string
	updateObsolete bool
)

var updateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Manually override a task's status, result, or obsolete flag",
	Long: `Apply an operator override to a task. Status changes must follow the
task state machine; an illegal transition is rejected. Marking a task
obsolete removes it from scheduling while preserving it for audit.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateSession, "session", "", "session id (required)")
	updateCmd.MarkFlagRequired("session")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "new status (pending|ready|running|completed|failed|blocked)")
	updateCmd.Flags().StringVar(&updateResult, "result", "", "set the task result")
	updateCmd.Flags().StringVar(&updateError, "error", "", "set the task error text")
	updateCmd.Flags().BoolVar(&updateObsolete, "obsolete", false, "mark the task obsolete")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if updateStatus == "" && updateResult == "" && updateError == "" && !cmd.Flags().Changed("obsolete") {
		return fmt.Errorf("nothing to update: pass --status, --result, --error, or --obsolete")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	taskID, err := resolveTaskID(st, updateSession, args[0])
	if err != nil {
		return err
	}

	var patch store.TaskPatch
	var from models.TaskStatus
	if updateStatus != "" {
		s := models.TaskStatus(updateStatus)
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", updateStatus)
		}
		plan, err := st.GetPlan(updateSession)
		if err != nil {
			return fmt.Errorf("get plan: %w", err)
		}
		if t := plan.Task(taskID); t != nil {
			from = t.Status
		}
		patch.Status = &s
	}
	if cmd.Flags().Changed("result") {
		patch.Result = &updateResult
	}
	if cmd.Flags().Changed("error") {
		patch.Error = &updateError
	}
	if cmd.Flags().Changed("obsolete") {
		patch.Obsolete = &updateObsolete
	}

	task, err := st.UpdateTask(updateSession, taskID, patch)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if patch.Status != nil {
		if j := openJournal(cfg); j != nil {
			defer j.Close()
			if err := j.Record(updateSession, taskID, from, *patch.Status, "manual override"); err != nil {
				fmt.Fprintf(os.Stderr, "warning: journal write failed: %v\n", err)
			}
		}
	}

	fmt.Printf("Task [%s] updated: status=%s", shortID(task.ID), task.Status)
	if task.Obsolete {
		fmt.Print(" (obsolete)")
	}
	fmt.Println()
	return nil
}
