package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/internal/planner"
	"github.com/sotaru/tasuke/pkg/models"
)

var (
	planSession  string
	planFromFile string
)

var planCmd = &cobra.Command{
	Use:   "plan [instruction]",
	Short: "Create a task plan from an instruction",
	Long: `Decompose an instruction into a plan of interdependent tasks and store
it under a session.

With an API key configured, plan generation uses Claude; otherwise a
keyword-based fallback produces a simple plan. Alternatively, -f imports
task drafts from a YAML file instead of generating them:

  tasks:
    - ref: gather
      agent_type: web
      description: research the topic
      category: reference
      reference_type: web_search
    - ref: draft
      agent_type: casual
      description: write the report
      needs: [gather]`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planSession, "session", "", "session id (generated when omitted)")
	planCmd.Flags().StringVarP(&planFromFile, "file", "f", "", "import task drafts from a YAML file")
}

// draftFile is the YAML layout accepted by --file.
type draftFile struct {
	Context string          `yaml:"context"`
	Tasks   []planner.Draft `yaml:"tasks"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && planFromFile == "" {
		return fmt.Errorf("an instruction argument or --file is required")
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

	var drafts []planner.Draft
	sessionContext := ""
	if planFromFile != "" {
		drafts, sessionContext, err = loadDraftFile(planFromFile)
		if err != nil {
			return err
		}
	} else {
		instruction := strings.TrimSpace(args[0])
		sessionContext = instruction
		gen := buildGenerator(buildCompleter(cfg))
		drafts, err = gen.Generate(cmd.Context(), instruction, "")
		if err != nil {
			return fmt.Errorf("generate plan: %w", err)
		}
	}

	tasks, err := planner.ResolveDrafts(drafts)
	if err != nil {
		return fmt.Errorf("resolve drafts: %w", err)
	}

	sessionID := planSession
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	now := time.Now()
	if err := st.SaveSession(&models.Session{ID: sessionID, Context: sessionContext, CreatedAt: now, UpdatedAt: now}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	plan, err := st.CreatePlan(sessionID, tasks)
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}

	fmt.Printf("Created plan for session %s with %d tasks:\n\n", sessionID, len(plan.Tasks))
	for _, t := range plan.Tasks {
		deps := ""
		if len(t.DependsOn) > 0 {
			deps = fmt.Sprintf("  (after %s)", strings.Join(shortIDs(t.DependsOn), ", "))
		}
		fmt.Printf("  [%s] %-6s %s%s\n", shortID(t.ID), t.AgentType, t.Description, deps)
	}
	fmt.Printf("\nRun it with: tasuke run --session %s\n", sessionID)
	return nil
}

// loadDraftFile reads task drafts from a YAML file.
func loadDraftFile(path string) ([]planner.Draft, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read draft file: %w", err)
	}
	var f draftFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parse draft file: %w", err)
	}
	if len(f.Tasks) == 0 {
		return nil, "", fmt.Errorf("draft file %s contains no tasks", path)
	}
	return f.Tasks, f.Context, nil
}

// shortID abbreviates a uuid for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = shortID(id)
	}
	return out
}
