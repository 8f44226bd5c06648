package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/internal/status"
	"github.com/sotaru/tasuke/pkg/models"
)

var (
	statusSession string
	statusVerbose bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a session's plan state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusSession, "session", "", "session id (required)")
	statusCmd.MarkFlagRequired("session")
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "include task results and errors")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := status.NewReporter(st).Report(statusSession)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	fmt.Printf("Session %s: %s\n\n", report.SessionID, colorState(report.State))
	for _, t := range report.Tasks {
		marker := statusMarker(t.Status)
		fmt.Printf("  %s [%s] %-6s %s", marker, shortID(t.ID), t.AgentType, t.Description)
		if t.Attempts > 1 {
			fmt.Printf("  (attempt %d)", t.Attempts)
		}
		fmt.Println()
		if statusVerbose {
			if t.Result != "" {
				fmt.Printf("      result: %s\n", firstLine(t.Result))
			}
			if t.Error != "" {
				color.Red("      error: %s", firstLine(t.Error))
			}
		}
	}

	fmt.Println()
	parts := make([]string, 0, len(report.Counts))
	for _, s := range []models.TaskStatus{
		models.TaskStatusPending, models.TaskStatusReady, models.TaskStatusRunning,
		models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusBlocked,
	} {
		if n := report.Counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	fmt.Println(strings.Join(parts, ", "))
	return nil
}

func colorState(s status.PlanState) string {
	switch s {
	case status.StateCompleted:
		return color.GreenString(string(s))
	case status.StateStuck:
		return color.RedString(string(s))
	case status.StateActive:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func statusMarker(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return color.GreenString("✓")
	case models.TaskStatusFailed:
		return color.RedString("✗")
	case models.TaskStatusBlocked:
		return color.RedString("⊘")
	case models.TaskStatusRunning:
		return color.YellowString("▸")
	case models.TaskStatusReady:
		return color.YellowString("•")
	default:
		return "·"
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
