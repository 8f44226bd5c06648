package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
)

var deleteSession string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a session's plan and all its tasks",
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deleteSession, "session", "", "session id (required)")
	deleteCmd.MarkFlagRequired("session")
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeletePlan(deleteSession); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}

	fmt.Printf("Deleted plan for session %s\n", deleteSession)
	return nil
}
