package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/sotaru/tasuke/internal/graph"
	"github.com/sotaru/tasuke/pkg/models"
)

// MemoryStore is an in-memory PlanStore. It mirrors the semantics of the
// SQLite store and is used in tests and for ephemeral sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	plans    map[string]*models.Plan
	sessions map[string]*models.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:    make(map[string]*models.Plan),
		sessions: make(map[string]*models.Session),
	}
}

// CreatePlan stores a new plan for the session.
func (m *MemoryStore) CreatePlan(sessionID string, tasks []*models.Task) (*models.Plan, error) {
	if err := graph.Validate(tasks); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plans[sessionID]; exists {
		return nil, fmt.Errorf("%w: session %s", models.ErrDuplicatePlan, sessionID)
	}

	now := time.Now()
	plan := &models.Plan{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
		Tasks:     make([]*models.Task, len(tasks)),
	}
	for i, t := range tasks {
		c := t.Clone()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.Touch(now)
		plan.Tasks[i] = c
	}

	m.plans[sessionID] = plan
	return plan.Clone(), nil
}

// GetPlan returns the session's plan.
func (m *MemoryStore) GetPlan(sessionID string) (*models.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan, exists := m.plans[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: plan for session %s", models.ErrNotFound, sessionID)
	}
	return plan.Clone(), nil
}

// AppendTasks adds tasks to an existing plan after re-validating the union.
func (m *MemoryStore) AppendTasks(sessionID string, tasks []*models.Task) (*models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan, exists := m.plans[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: plan for session %s", models.ErrNotFound, sessionID)
	}

	union := make([]*models.Task, 0, len(plan.Tasks)+len(tasks))
	union = append(union, plan.Tasks...)
	union = append(union, tasks...)
	if err := graph.Validate(union); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, t := range tasks {
		c := t.Clone()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.Touch(now)
		plan.Tasks = append(plan.Tasks, c)
	}
	plan.Touch(now)

	return plan.Clone(), nil
}

// UpdateTask applies a patch to a task.
func (m *MemoryStore) UpdateTask(sessionID, taskID string, patch TaskPatch) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan, task, err := m.lookup(sessionID, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, *patch.Status)
		}
		if !task.Status.CanTransition(*patch.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, task.Status, *patch.Status)
		}
		task.Status = *patch.Status
	}
	if patch.Result != nil {
		task.Result = *patch.Result
	}
	if patch.Error != nil {
		task.Error = *patch.Error
	}
	if patch.Obsolete != nil {
		task.Obsolete = *patch.Obsolete
	}
	if patch.Tags != nil {
		task.Tags = append([]string(nil), patch.Tags...)
	}

	now := time.Now()
	task.Touch(now)
	plan.Touch(now)

	return task.Clone(), nil
}

// ClaimTask atomically moves a task from ready to running.
func (m *MemoryStore) ClaimTask(sessionID, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan, task, err := m.lookup(sessionID, taskID)
	if err != nil {
		return false, err
	}

	if task.Status != models.TaskStatusReady {
		return false, nil
	}

	task.Status = models.TaskStatusRunning
	task.Attempts++
	now := time.Now()
	task.Touch(now)
	plan.Touch(now)
	return true, nil
}

// RetryTask resets a failed task and its blocked dependents to pending.
func (m *MemoryStore) RetryTask(sessionID, taskID string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan, task, err := m.lookup(sessionID, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status != models.TaskStatusFailed {
		return nil, fmt.Errorf("%w: retry requires failed, task %s is %s",
			models.ErrInvalidTransition, taskID, task.Status)
	}

	now := time.Now()
	task.Status = models.TaskStatusPending
	task.Error = ""
	task.Attempts = 0
	task.Touch(now)

	resetBlockedDependents(plan, taskID, now)
	plan.Touch(now)

	return task.Clone(), nil
}

// DeletePlan removes the plan and all its tasks.
func (m *MemoryStore) DeletePlan(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, sessionID)
	return nil
}

// SaveSession upserts a session record.
func (m *MemoryStore) SaveSession(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	c := *s
	if c.CreatedAt.IsZero() {
		if existing, ok := m.sessions[s.ID]; ok {
			c.CreatedAt = existing.CreatedAt
		} else {
			c.CreatedAt = now
		}
	}
	c.UpdatedAt = now
	m.sessions[s.ID] = &c
	return nil
}

// GetSession returns the session record.
func (m *MemoryStore) GetSession(id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	c := *s
	return &c, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// lookup finds a plan and task under the store lock.
func (m *MemoryStore) lookup(sessionID, taskID string) (*models.Plan, *models.Task, error) {
	plan, exists := m.plans[sessionID]
	if !exists {
		return nil, nil, fmt.Errorf("%w: plan for session %s", models.ErrNotFound, sessionID)
	}
	task := plan.Task(taskID)
	if task == nil {
		return nil, nil, fmt.Errorf("%w: task %s", models.ErrNotFound, taskID)
	}
	return plan, task, nil
}

// resetBlockedDependents moves blocked transitive dependents of taskID back
// to pending after a retry. Graph build over a stored plan cannot fail:
// the DAG invariant was enforced at insert time.
func resetBlockedDependents(plan *models.Plan, taskID string, now time.Time) {
	g, err := graph.Build(plan.Tasks)
	if err != nil {
		return
	}
	for _, depID := range g.TransitiveDependents(taskID) {
		t := plan.Task(depID)
		if t != nil && t.Status == models.TaskStatusBlocked {
			t.Status = models.TaskStatusPending
			t.Touch(now)
		}
	}
}
