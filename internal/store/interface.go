// Package store provides durable keyed storage of plans and their tasks,
// grouped under a session. The store is the single source of truth for
// task state: every status transition is funneled through UpdateTask,
// ClaimTask, or RetryTask, which are the engine's only synchronization
// points.
package store

import (
	"io"

	"github.com/sotaru/tasuke/pkg/models"
)

// TaskPatch is a partial mutation applied to a task. Nil fields are left
// untouched.
type TaskPatch struct {
	Status   *models.TaskStatus
	Result   *string
	Error    *string
	Obsolete *bool
	Tags     []string
}

// PlanStore handles plan and task persistence.
//
// Structural guarantees: every operation either fully succeeds or has no
// effect. CreatePlan and AppendTasks validate the DAG invariant (no cycles,
// no dangling references) before any write; UpdateTask enforces the status
// state machine.
type PlanStore interface {
	// CreatePlan stores a new plan for the session. Fails with
	// models.ErrDuplicatePlan if the session already holds a plan and with
	// models.ErrInvalidGraph if the tasks violate the DAG invariant.
	CreatePlan(sessionID string, tasks []*models.Task) (*models.Plan, error)

	// GetPlan returns the session's plan or models.ErrNotFound.
	GetPlan(sessionID string) (*models.Plan, error)

	// AppendTasks adds tasks to an existing plan, re-validating the DAG
	// invariant over the union of existing and new tasks.
	AppendTasks(sessionID string, tasks []*models.Task) (*models.Plan, error)

	// UpdateTask applies a patch. Fails with models.ErrNotFound if the plan
	// or task is absent and models.ErrInvalidTransition if the patch
	// requests a disallowed status change.
	UpdateTask(sessionID, taskID string, patch TaskPatch) (*models.Task, error)

	// ClaimTask atomically moves a task from ready to running and bumps its
	// attempt counter. Returns false without error when another caller won
	// the claim; at most one concurrent claim per task id succeeds.
	ClaimTask(sessionID, taskID string) (bool, error)

	// RetryTask moves a failed task back to pending, clears its error,
	// resets its attempt counter, and resets the task's transitively
	// blocked dependents to pending so the resolver can pick the subtree
	// up again.
	RetryTask(sessionID, taskID string) (*models.Task, error)

	// DeletePlan removes the plan and all its tasks. Idempotent.
	DeletePlan(sessionID string) error

	// SaveSession upserts a session record.
	SaveSession(s *models.Session) error

	// GetSession returns the session or models.ErrNotFound.
	GetSession(id string) (*models.Session, error)

	io.Closer
}

// Compile-time interface checks.
var (
	_ PlanStore = (*MemoryStore)(nil)
	_ PlanStore = (*DB)(nil)
)
