package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on its dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates all dependencies are satisfied and the task
	// is eligible for dispatch.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusRunning indicates the task has been dispatched to a worker.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusBlocked indicates a direct or transitive dependency failed
	// permanently, so the task can never become ready without intervention.
	TaskStatusBlocked TaskStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is completed or failed.
// Blocked is terminal-for-now but can be reset by retrying the failed
// dependency, so it is not reported as terminal here.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether a status change from s to next is allowed.
// The edge set:
//
//	pending  -> ready | blocked
//	ready    -> running | blocked
//	running  -> completed | failed
//	failed   -> pending   (explicit retry)
//	blocked  -> pending   (retry of the failed dependency resets dependents)
//
// A no-op transition (s == next) is always allowed so that re-running the
// resolver over an unchanged task set stays idempotent.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case TaskStatusPending:
		return next == TaskStatusReady || next == TaskStatusBlocked
	case TaskStatusReady:
		return next == TaskStatusRunning || next == TaskStatusBlocked
	case TaskStatusRunning:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	case TaskStatusFailed:
		return next == TaskStatusPending
	case TaskStatusBlocked:
		return next == TaskStatusPending
	default:
		return false
	}
}

// AgentType selects which registered worker executes a task.
type AgentType string

const (
	// AgentTypeWeb performs web searches and information gathering.
	AgentTypeWeb AgentType = "web"
	// AgentTypeCoder writes or runs code for data-processing tasks.
	AgentTypeCoder AgentType = "coder"
	// AgentTypeCasual handles general writing and summarization tasks.
	AgentTypeCasual AgentType = "casual"
	// AgentTypeFile reads documents from the local workspace.
	AgentTypeFile AgentType = "file"
)

// Valid reports whether a is one of the known agent types.
func (a AgentType) Valid() bool {
	switch a {
	case AgentTypeWeb, AgentTypeCoder, AgentTypeCasual, AgentTypeFile:
		return true
	}
	return false
}

// TaskCategory distinguishes actionable work from information references.
type TaskCategory string

const (
	// CategoryActionable is a unit of work whose result stands on its own.
	CategoryActionable TaskCategory = "actionable"
	// CategoryReference is an information-reference task: its result is
	// injected verbatim into the input of tasks that depend on it.
	CategoryReference TaskCategory = "reference"
)

// ReferenceType describes where a reference task sources its information.
type ReferenceType string

const (
	ReferenceWebSearch   ReferenceType = "web_search"
	ReferenceKVSDocument ReferenceType = "kvs_document"
	ReferenceFileRead    ReferenceType = "file_read"
)

// Task is a unit of work within a plan.
type Task struct {
	// ID is unique within a session and stable once assigned.
	ID string `json:"id"`
	// AgentType selects the worker that executes this task.
	AgentType AgentType `json:"agent_type"`
	// Description is the instruction text for this task.
	Description string `json:"description"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Category is actionable or reference.
	Category TaskCategory `json:"category"`
	// ReferenceType is set for reference tasks only.
	ReferenceType ReferenceType `json:"reference_type,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result is the worker output, set on completion.
	Result string `json:"result,omitempty"`
	// Error is the failure payload, set when the task fails.
	Error string `json:"error,omitempty"`
	// Tags are free-form labels with no scheduling effect.
	Tags []string `json:"tags,omitempty"`
	// Attempts counts how many times the task has been dispatched.
	Attempts int `json:"attempts,omitempty"`
	// Obsolete marks a task that replanning superseded. Obsolete tasks are
	// kept for audit history and skipped by the resolver.
	Obsolete bool `json:"obsolete,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped on every mutation, never backwards.
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.DependsOn != nil {
		c.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}

// Touch advances UpdatedAt to now, keeping it monotonically non-decreasing.
func (t *Task) Touch(now time.Time) {
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
}
