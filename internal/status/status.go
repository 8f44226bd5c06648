// Package status is a read-only projection over the plan store for
// external status queries.
package status

import (
	"sort"
	"time"

	"github.com/sotaru/tasuke/internal/store"
	"github.com/sotaru/tasuke/pkg/models"
)

// PlanState summarizes a plan for callers that only want one word.
type PlanState string

const (
	// StateIdle means every live task is waiting; nothing has run yet and
	// nothing is dispatchable until an executor picks the plan up.
	StateIdle PlanState = "idle"
	// StateActive means at least one task is ready or running.
	StateActive PlanState = "active"
	// StateCompleted means every live task completed.
	StateCompleted PlanState = "completed"
	// StateStuck means no task can make progress and at least one is
	// failed or blocked.
	StateStuck PlanState = "stuck"
)

// TaskView is the externally visible slice of a task.
type TaskView struct {
	ID          string            `json:"id"`
	AgentType   models.AgentType  `json:"agent_type"`
	Description string            `json:"description"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	Status      models.TaskStatus `json:"status"`
	Result      string            `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attempts    int               `json:"attempts,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// PlanReport is the full status projection for one session.
type PlanReport struct {
	SessionID string                    `json:"session_id"`
	State     PlanState                 `json:"state"`
	Counts    map[models.TaskStatus]int `json:"counts"`
	Tasks     []TaskView                `json:"tasks"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Reporter produces plan reports.
type Reporter struct {
	store store.PlanStore
}

// NewReporter creates a reporter over the given store.
func NewReporter(st store.PlanStore) *Reporter {
	return &Reporter{store: st}
}

// Report builds the status projection for a session. Obsolete tasks are
// excluded from counts and state classification but kept in the task list
// for audit visibility. Task order is deterministic: ascending CreatedAt,
// then ID.
func (r *Reporter) Report(sessionID string) (*PlanReport, error) {
	plan, err := r.store.GetPlan(sessionID)
	if err != nil {
		return nil, err
	}

	report := &PlanReport{
		SessionID: sessionID,
		Counts:    make(map[models.TaskStatus]int),
		CreatedAt: plan.CreatedAt,
		UpdatedAt: plan.UpdatedAt,
	}

	tasks := append([]*models.Task(nil), plan.Tasks...)
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})

	for _, t := range tasks {
		report.Tasks = append(report.Tasks, TaskView{
			ID:          t.ID,
			AgentType:   t.AgentType,
			Description: t.Description,
			DependsOn:   append([]string(nil), t.DependsOn...),
			Status:      t.Status,
			Result:      t.Result,
			Error:       t.Error,
			Attempts:    t.Attempts,
			UpdatedAt:   t.UpdatedAt,
		})
		if !t.Obsolete {
			report.Counts[t.Status]++
		}
	}

	report.State = classify(report.Counts)
	return report, nil
}

// classify maps status counts to a plan state. A plan with no pending,
// ready, or running task is terminal: stuck if anything failed or blocked,
// completed otherwise. A non-terminal plan is active once anything is
// ready, running, or already resolved, and idle while all tasks are still
// pending.
func classify(counts map[models.TaskStatus]int) PlanState {
	live := 0
	for _, n := range counts {
		live += n
	}
	pending := counts[models.TaskStatusPending]
	inMotion := counts[models.TaskStatusReady] + counts[models.TaskStatusRunning]
	troubled := counts[models.TaskStatusFailed] + counts[models.TaskStatusBlocked]

	if pending+inMotion == 0 {
		if troubled > 0 {
			return StateStuck
		}
		return StateCompleted
	}
	if inMotion > 0 || live > pending {
		return StateActive
	}
	return StateIdle
}
