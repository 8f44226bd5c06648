package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/internal/executor"
	"github.com/sotaru/tasuke/internal/planner"
	"github.com/sotaru/tasuke/internal/store"
	"github.com/sotaru/tasuke/pkg/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory for instruction files and execute them",
	Long: `Watch a directory. Whenever a .md or .txt file is created or written,
its contents become the instruction for a new plan, which is executed
immediately under a fresh session. Useful as a drop-folder integration.

Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
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

	j := openJournal(cfg)
	if j != nil {
		defer j.Close()
	}

	completer := buildCompleter(cfg)
	registry, err := buildRegistry(cfg, completer)
	if err != nil {
		return err
	}
	gen := buildGenerator(completer)

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

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	fmt.Printf("Watching %s for instruction files...\n", dir)

	// seen debounces the create-then-write event pairs editors produce.
	seen := make(map[string]time.Time)

	for {
		select {
		case <-cmd.Context().Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if ext != ".md" && ext != ".txt" {
				continue
			}
			if last, ok := seen[event.Name]; ok && time.Since(last) < 2*time.Second {
				continue
			}
			seen[event.Name] = time.Now()

			if err := executeInstructionFile(cmd, st, gen, o, event.Name); err != nil {
				fmt.Fprintf(os.Stderr, "error: %s: %v\n", filepath.Base(event.Name), err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

// executeInstructionFile plans and runs the instruction in one shot.
func executeInstructionFile(cmd *cobra.Command, st store.PlanStore, gen planner.Generator, o *executor.Orchestrator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	instruction := strings.TrimSpace(string(data))
	if instruction == "" {
		return nil
	}

	sessionID := uuid.New().String()
	fmt.Printf("\n%s -> session %s\n", filepath.Base(path), sessionID)

	drafts, err := gen.Generate(cmd.Context(), instruction, "")
	if err != nil {
		return err
	}
	tasks, err := planner.ResolveDrafts(drafts)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := st.SaveSession(&models.Session{ID: sessionID, Context: instruction, CreatedAt: now, UpdatedAt: now}); err != nil {
		return err
	}
	if _, err := st.CreatePlan(sessionID, tasks); err != nil {
		return err
	}

	out, err := o.ExecuteAll(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("session %s: %s\n", sessionID, out.State)
	return nil
}
