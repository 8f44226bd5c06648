package models

import "errors"

// Engine error kinds. Callers match these with errors.Is; call sites wrap
// them with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrNotFound indicates a session, plan, or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePlan indicates the session already holds an active plan.
	ErrDuplicatePlan = errors.New("plan already exists for session")
	// ErrInvalidGraph indicates a dependency cycle or a dangling reference.
	ErrInvalidGraph = errors.New("invalid task graph")
	// ErrInvalidTransition indicates a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDuplicateAgentType indicates a worker is already registered for
	// the agent type.
	ErrDuplicateAgentType = errors.New("agent type already registered")
	// ErrUnknownAgentType indicates no worker is registered for the agent type.
	ErrUnknownAgentType = errors.New("unknown agent type")
	// ErrGeneration indicates the plan generator failed.
	ErrGeneration = errors.New("plan generation failed")
	// ErrWorker wraps a worker's own failure.
	ErrWorker = errors.New("worker execution failed")
	// ErrTimeout indicates a worker dispatch exceeded its timeout.
	ErrTimeout = errors.New("worker dispatch timed out")
)
