package models

import "time"

// Plan is the ordered set of tasks derived from one user instruction
// within a session. Tasks may be appended after creation (dynamic
// replanning) but are never removed; superseded tasks are marked obsolete.
type Plan struct {
	// SessionID identifies the owning session. A session holds at most
	// one plan at a time.
	SessionID string `json:"session_id"`
	// Tasks in insertion order.
	Tasks []*Task `json:"tasks"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped whenever the plan or any of its tasks changes.
	UpdatedAt time.Time `json:"updated_at"`
}

// Task returns the task with the given ID, or nil if not present.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	c := &Plan{
		SessionID: p.SessionID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Tasks:     make([]*Task, len(p.Tasks)),
	}
	for i, t := range p.Tasks {
		c.Tasks[i] = t.Clone()
	}
	return c
}

// Touch advances UpdatedAt to now, keeping it monotonically non-decreasing.
func (p *Plan) Touch(now time.Time) {
	if now.After(p.UpdatedAt) {
		p.UpdatedAt = now
	}
}

// Session is a logical unit of work. It owns zero or one active plan and
// optionally carries free-form context (the interview result in the
// original workflow) that the plan generator folds into its prompt.
type Session struct {
	// ID is the opaque session identifier.
	ID string `json:"id"`
	// Context is free-form Markdown fed to the plan generator.
	Context string `json:"context,omitempty"`
	// CreatedAt is when the session was first seen.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time `json:"updated_at"`
}
