package worker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sotaru/tasuke/pkg/models"
)

// Registry maps agent types to workers. Registration is expected at startup;
// lookups happen concurrently from dispatch goroutines.
type Registry struct {
	mu      sync.RWMutex
	workers map[models.AgentType]Worker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[models.AgentType]Worker)}
}

// Register binds a worker to an agent type. Registering the same type twice
// is an error; replace a worker by building a fresh registry.
func (r *Registry) Register(agentType models.AgentType, w Worker) error {
	if !agentType.Valid() {
		return fmt.Errorf("register %q: %w", agentType, models.ErrUnknownAgentType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[agentType]; ok {
		return fmt.Errorf("register %q: %w", agentType, models.ErrDuplicateAgentType)
	}
	r.workers[agentType] = w
	return nil
}

// Get returns the worker bound to an agent type.
func (r *Registry) Get(agentType models.AgentType) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[agentType]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", agentType, models.ErrUnknownAgentType)
	}
	return w, nil
}

// Types lists the registered agent types in sorted order.
func (r *Registry) Types() []models.AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]models.AgentType, 0, len(r.workers))
	for t := range r.workers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
