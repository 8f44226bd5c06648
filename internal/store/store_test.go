package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sotaru/tasuke/pkg/models"
)

// stores returns both PlanStore implementations so every behavior test
// runs against each.
func stores(t *testing.T) map[string]PlanStore {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "tasuke.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]PlanStore{
		"memory": NewMemoryStore(),
		"sqlite": db,
	}
}

func samplePlanTasks() []*models.Task {
	return []*models.Task{
		{
			ID:          "research",
			AgentType:   models.AgentTypeWeb,
			Description: "gather market data",
			Category:    models.CategoryReference,
			ReferenceType: models.ReferenceWebSearch,
			Status:      models.TaskStatusPending,
			Tags:        []string{"research"},
		},
		{
			ID:          "draft",
			AgentType:   models.AgentTypeCasual,
			Description: "write the report draft",
			DependsOn:   []string{"research"},
			Category:    models.CategoryActionable,
			Status:      models.TaskStatusPending,
		},
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			created, err := s.CreatePlan("sess-1", samplePlanTasks())
			if err != nil {
				t.Fatalf("create plan: %v", err)
			}
			if len(created.Tasks) != 2 {
				t.Fatalf("expected 2 tasks, got %d", len(created.Tasks))
			}

			got, err := s.GetPlan("sess-1")
			if err != nil {
				t.Fatalf("get plan: %v", err)
			}
			if got.SessionID != "sess-1" {
				t.Errorf("expected session sess-1, got %s", got.SessionID)
			}
			if got.Task("draft") == nil || got.Task("research") == nil {
				t.Error("expected both tasks present")
			}
			if !reflect.DeepEqual(got.Task("draft").DependsOn, []string{"research"}) {
				t.Errorf("depends_on not preserved: %v", got.Task("draft").DependsOn)
			}
		})
	}
}

func TestGetPlanNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetPlan("missing")
			if !errors.Is(err, models.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestCreatePlanDuplicate(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}
			_, err := s.CreatePlan("sess-1", samplePlanTasks())
			if !errors.Is(err, models.ErrDuplicatePlan) {
				t.Errorf("expected ErrDuplicatePlan, got %v", err)
			}
		})
	}
}

func TestCreatePlanInvalidGraph(t *testing.T) {
	cyclic := []*models.Task{
		{ID: "a", Status: models.TaskStatusPending, DependsOn: []string{"b"}},
		{ID: "b", Status: models.TaskStatusPending, DependsOn: []string{"a"}},
	}
	dangling := []*models.Task{
		{ID: "a", Status: models.TaskStatusPending, DependsOn: []string{"ghost"}},
	}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", cyclic); !errors.Is(err, models.ErrInvalidGraph) {
				t.Errorf("cycle: expected ErrInvalidGraph, got %v", err)
			}
			if _, err := s.CreatePlan("sess-1", dangling); !errors.Is(err, models.ErrInvalidGraph) {
				t.Errorf("dangling: expected ErrInvalidGraph, got %v", err)
			}
			// Neither failed create may leave a partial plan behind.
			if _, err := s.GetPlan("sess-1"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("expected no plan after rejected creates, got %v", err)
			}
		})
	}
}

func TestAppendTasks(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}

			plan, err := s.AppendTasks("sess-1", []*models.Task{
				{
					ID:          "review",
					AgentType:   models.AgentTypeCasual,
					Description: "review the draft",
					DependsOn:   []string{"draft"},
					Category:    models.CategoryActionable,
					Status:      models.TaskStatusPending,
				},
			})
			if err != nil {
				t.Fatalf("append tasks: %v", err)
			}
			if len(plan.Tasks) != 3 {
				t.Fatalf("expected 3 tasks, got %d", len(plan.Tasks))
			}
			// Insertion order is preserved.
			if plan.Tasks[2].ID != "review" {
				t.Errorf("expected review appended last, got %s", plan.Tasks[2].ID)
			}
		})
	}
}

func TestAppendTasksRevalidatesUnion(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}

			_, err := s.AppendTasks("sess-1", []*models.Task{
				{ID: "bad", Status: models.TaskStatusPending, DependsOn: []string{"nope"}},
			})
			if !errors.Is(err, models.ErrInvalidGraph) {
				t.Errorf("expected ErrInvalidGraph, got %v", err)
			}

			plan, err := s.GetPlan("sess-1")
			if err != nil {
				t.Fatalf("get plan: %v", err)
			}
			if len(plan.Tasks) != 2 {
				t.Errorf("rejected append mutated the plan: %d tasks", len(plan.Tasks))
			}
		})
	}
}

func TestUpdateTaskTransitions(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}

			ready := models.TaskStatusReady
			task, err := s.UpdateTask("sess-1", "research", TaskPatch{Status: &ready})
			if err != nil {
				t.Fatalf("pending -> ready: %v", err)
			}
			if task.Status != models.TaskStatusReady {
				t.Errorf("expected ready, got %s", task.Status)
			}

			completed := models.TaskStatusCompleted
			if _, err := s.UpdateTask("sess-1", "research", TaskPatch{Status: &completed}); !errors.Is(err, models.ErrInvalidTransition) {
				t.Errorf("ready -> completed: expected ErrInvalidTransition, got %v", err)
			}

			if _, err := s.UpdateTask("sess-1", "ghost", TaskPatch{Status: &ready}); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("expected ErrNotFound for missing task, got %v", err)
			}
			if _, err := s.UpdateTask("missing", "research", TaskPatch{Status: &ready}); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("expected ErrNotFound for missing plan, got %v", err)
			}
		})
	}
}

func TestUpdateTaskResultAndError(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}

			result := "search output"
			task, err := s.UpdateTask("sess-1", "research", TaskPatch{Result: &result})
			if err != nil {
				t.Fatalf("update result: %v", err)
			}
			if task.Result != "search output" {
				t.Errorf("result not stored: %q", task.Result)
			}

			obsolete := true
			task, err = s.UpdateTask("sess-1", "research", TaskPatch{Obsolete: &obsolete})
			if err != nil {
				t.Fatalf("mark obsolete: %v", err)
			}
			if !task.Obsolete {
				t.Error("obsolete flag not stored")
			}
		})
	}
}

func TestClaimTask(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}

			// Claiming a pending task must not succeed.
			claimed, err := s.ClaimTask("sess-1", "research")
			if err != nil {
				t.Fatalf("claim pending: %v", err)
			}
			if claimed {
				t.Error("claimed a task that was not ready")
			}

			ready := models.TaskStatusReady
			if _, err := s.UpdateTask("sess-1", "research", TaskPatch{Status: &ready}); err != nil {
				t.Fatalf("mark ready: %v", err)
			}

			claimed, err = s.ClaimTask("sess-1", "research")
			if err != nil {
				t.Fatalf("claim ready: %v", err)
			}
			if !claimed {
				t.Fatal("expected claim to succeed")
			}

			task, err := s.UpdateTask("sess-1", "research", TaskPatch{})
			if err != nil {
				t.Fatalf("read back: %v", err)
			}
			if task.Status != models.TaskStatusRunning {
				t.Errorf("expected running, got %s", task.Status)
			}
			if task.Attempts != 1 {
				t.Errorf("expected 1 attempt, got %d", task.Attempts)
			}

			// Second claim loses.
			claimed, err = s.ClaimTask("sess-1", "research")
			if err != nil {
				t.Fatalf("second claim: %v", err)
			}
			if claimed {
				t.Error("task claimed twice")
			}
		})
	}
}

func TestClaimTaskExclusiveUnderConcurrency(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}
			ready := models.TaskStatusReady
			if _, err := s.UpdateTask("sess-1", "research", TaskPatch{Status: &ready}); err != nil {
				t.Fatalf("mark ready: %v", err)
			}

			const callers = 16
			var wg sync.WaitGroup
			wins := make(chan bool, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					claimed, err := s.ClaimTask("sess-1", "research")
					if err != nil {
						t.Errorf("claim: %v", err)
						return
					}
					wins <- claimed
				}()
			}
			wg.Wait()
			close(wins)

			var winners int
			for w := range wins {
				if w {
					winners++
				}
			}
			if winners != 1 {
				t.Errorf("expected exactly 1 winner, got %d", winners)
			}
		})
	}
}

func TestRetryTaskResetsBlockedDependents(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}

			// Drive research to failed and draft to blocked.
			for _, status := range []models.TaskStatus{models.TaskStatusReady, models.TaskStatusRunning, models.TaskStatusFailed} {
				st := status
				if _, err := s.UpdateTask("sess-1", "research", TaskPatch{Status: &st}); err != nil {
					t.Fatalf("transition research to %s: %v", st, err)
				}
			}
			blocked := models.TaskStatusBlocked
			if _, err := s.UpdateTask("sess-1", "draft", TaskPatch{Status: &blocked}); err != nil {
				t.Fatalf("block draft: %v", err)
			}

			task, err := s.RetryTask("sess-1", "research")
			if err != nil {
				t.Fatalf("retry: %v", err)
			}
			if task.Status != models.TaskStatusPending {
				t.Errorf("expected pending after retry, got %s", task.Status)
			}
			if task.Error != "" || task.Attempts != 0 {
				t.Errorf("retry did not clear error/attempts: %q / %d", task.Error, task.Attempts)
			}

			plan, err := s.GetPlan("sess-1")
			if err != nil {
				t.Fatalf("get plan: %v", err)
			}
			if got := plan.Task("draft").Status; got != models.TaskStatusPending {
				t.Errorf("expected blocked dependent reset to pending, got %s", got)
			}
		})
	}
}

func TestRetryTaskRequiresFailed(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}
			_, err := s.RetryTask("sess-1", "research")
			if !errors.Is(err, models.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestDeletePlanIdempotent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}

			if err := s.DeletePlan("sess-1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.GetPlan("sess-1"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
			// Deleting again is a no-op.
			if err := s.DeletePlan("sess-1"); err != nil {
				t.Errorf("second delete: %v", err)
			}
		})
	}
}

func TestSessionRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SaveSession(&models.Session{ID: "sess-1", Context: "# Interview notes"}); err != nil {
				t.Fatalf("save session: %v", err)
			}
			got, err := s.GetSession("sess-1")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.Context != "# Interview notes" {
				t.Errorf("context not preserved: %q", got.Context)
			}

			if _, err := s.GetSession("missing"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestUpdatedAtMonotonic(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePlan("sess-1", samplePlanTasks()); err != nil {
				t.Fatalf("create plan: %v", err)
			}
			before, err := s.GetPlan("sess-1")
			if err != nil {
				t.Fatalf("get plan: %v", err)
			}

			time.Sleep(5 * time.Millisecond)
			ready := models.TaskStatusReady
			if _, err := s.UpdateTask("sess-1", "research", TaskPatch{Status: &ready}); err != nil {
				t.Fatalf("update: %v", err)
			}

			after, err := s.GetPlan("sess-1")
			if err != nil {
				t.Fatalf("get plan: %v", err)
			}
			if after.UpdatedAt.Before(before.UpdatedAt) {
				t.Error("plan updated_at moved backwards")
			}
			if after.Task("research").UpdatedAt.Before(before.Task("research").UpdatedAt) {
				t.Error("task updated_at moved backwards")
			}
		})
	}
}
