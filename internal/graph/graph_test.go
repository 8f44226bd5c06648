package graph

import (
	"errors"
	"sort"
	"testing"

	"github.com/sotaru/tasuke/pkg/models"
)

func TestBuildSimple(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Status: models.TaskStatusPending},
		{ID: "task-2", Status: models.TaskStatusPending},
		{ID: "task-3", Status: models.TaskStatusPending},
	}

	g, err := Build(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
}

func TestBuildWithDependencies(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Status: models.TaskStatusPending},
		{ID: "task-2", Status: models.TaskStatusPending, DependsOn: []string{"task-1"}},
		{ID: "task-3", Status: models.TaskStatusPending, DependsOn: []string{"task-1", "task-2"}},
	}

	g, err := Build(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := g.Dependencies("task-3"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for task-3, got %d", len(deps))
	}
	if dependents := g.Dependents("task-1"); len(dependents) != 2 {
		t.Errorf("expected 2 dependents of task-1, got %d", len(dependents))
	}
}

func TestBuildDanglingReference(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Status: models.TaskStatusPending, DependsOn: []string{"ghost"}},
	}

	_, err := Build(tasks)
	if err == nil {
		t.Fatal("expected error for dangling reference")
	}
	if !errors.Is(err, models.ErrInvalidGraph) {
		t.Errorf("expected ErrInvalidGraph, got %v", err)
	}
}

func TestBuildDuplicateID(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Status: models.TaskStatusPending},
		{ID: "task-1", Status: models.TaskStatusPending},
	}

	if _, err := Build(tasks); !errors.Is(err, models.ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph for duplicate id, got %v", err)
	}
}

func TestCycleDetection(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
	}{
		{
			name: "direct cycle",
			tasks: []*models.Task{
				{ID: "a", DependsOn: []string{"b"}},
				{ID: "b", DependsOn: []string{"a"}},
			},
		},
		{
			name: "self cycle",
			tasks: []*models.Task{
				{ID: "a", DependsOn: []string{"a"}},
			},
		},
		{
			name: "long cycle",
			tasks: []*models.Task{
				{ID: "a", DependsOn: []string{"c"}},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"b"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.tasks)
			if !errors.Is(err, models.ErrInvalidGraph) {
				t.Fatalf("expected ErrInvalidGraph, got %v", err)
			}
		})
	}
}

func TestValidateRejectsEdgeThatClosesCycle(t *testing.T) {
	// Existing valid chain a <- b; appending c with an edge back into the
	// chain that would close a cycle must be rejected over the union.
	existing := []*models.Task{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
	}
	if err := Validate(existing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	appended := append(existing,
		&models.Task{ID: "c", DependsOn: []string{"b"}})
	// Simulate the cycle by mutating a to depend on c.
	existing[0].DependsOn = []string{"c"}

	if err := Validate(appended); !errors.Is(err, models.ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph on union, got %v", err)
	}
	existing[0].DependsOn = nil
}

func TestTopologicalSort(t *testing.T) {
	tasks := []*models.Task{
		{ID: "c", DependsOn: []string{"a", "b"}},
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
	}

	g, err := Build(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] || pos["a"] > pos["c"] {
		t.Errorf("topological order violated: %v", order)
	}
}

func TestTransitiveDependents(t *testing.T) {
	tasks := []*models.Task{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
		{ID: "d"},
	}

	g, err := Build(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := g.TransitiveDependents("a")
	sort.Strings(got)
	want := []string{"b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}
