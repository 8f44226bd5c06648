// Package graph provides the dependency graph and readiness resolver for
// task plans.
package graph

import (
	"errors"
	"fmt"

	"github.com/sotaru/tasuke/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
// The graph is a point-in-time view; it is rebuilt from the plan on each
// resolver pass and holds no state between invocations.
type DependencyGraph struct {
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
}

// Build constructs a dependency graph from a slice of tasks.
// Returns an error wrapping models.ErrInvalidGraph if a cycle is detected
// or a dependency references a task outside the set.
func Build(tasks []*models.Task) (*DependencyGraph, error) {
	g := &DependencyGraph{
		nodes: make(map[string]*models.Task, len(tasks)),
		edges: make(map[string][]string, len(tasks)),
	}

	for _, task := range tasks {
		if _, dup := g.nodes[task.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task id %s", models.ErrInvalidGraph, task.ID)
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return nil, fmt.Errorf("%w: task %s depends on unknown task %s",
					models.ErrInvalidGraph, task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycle() {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidGraph, ErrCycleDetected)
	}

	return g, nil
}

// Validate checks the DAG invariant over a set of tasks without returning
// the graph. Used by the plan store at insertion and append time.
func Validate(tasks []*models.Task) error {
	_, err := Build(tasks)
	return err
}

// hasCycle reports whether the graph contains a circular dependency.
// Depth-first search with coloring to detect back edges.
func (g *DependencyGraph) hasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns task IDs in an order where all dependencies come
// before the tasks that depend on them.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if g.hasCycle() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for id := range g.nodes {
		visit(id)
	}

	return result, nil
}

// Task returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) Task(id string) *models.Task {
	return g.nodes[id]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	return g.edges[id]
}

// Dependents returns the IDs of tasks that depend on the given task.
func (g *DependencyGraph) Dependents(id string) []string {
	var dependents []string
	for node, deps := range g.edges {
		for _, depID := range deps {
			if depID == id {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

// TransitiveDependents returns every task that directly or indirectly
// depends on the given task. Used when a retry resets blocked dependents.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	seen := make(map[string]bool)
	var out []string

	var walk func(id string)
	walk = func(id string) {
		for _, dep := range g.Dependents(id) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			walk(dep)
		}
	}
	walk(id)
	return out
}
