package graph

import (
	"sort"

	"github.com/sotaru/tasuke/pkg/models"
)

// Resolution partitions a plan's tasks by what the next scheduling step
// should do with them.
type Resolution struct {
	// Ready holds task IDs eligible for dispatch: pending tasks whose
	// dependencies are all completed, plus tasks already marked ready but
	// not yet claimed. Dispatch order: ascending CreatedAt, then ID.
	Ready []string
	// Blocked holds pending or ready task IDs that can never become ready
	// because a direct or transitive dependency failed permanently.
	Blocked []string
	// Unblocked holds blocked task IDs whose dependencies are no longer
	// poisoned, typically because a failed dependency was retried. They
	// should transition back to pending.
	Unblocked []string
}

// Resolve computes the ready/blocked partition for the given task set.
// It is a pure function: a single pass over the tasks, no side effects,
// and repeated invocation on an unchanged set yields identical output.
//
// A task is poisoned if it is failed or blocked, or if any of its
// dependencies is poisoned. Pending tasks with a poisoned dependency are
// reported blocked; pending tasks whose dependencies are all completed are
// reported ready. Obsolete tasks are skipped entirely.
func Resolve(tasks []*models.Task) Resolution {
	index := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		index[t.ID] = t
	}

	// poisoned memoizes transitive permanent failure per task ID.
	poisoned := make(map[string]bool, len(tasks))
	var isPoisoned func(id string) bool
	isPoisoned = func(id string) bool {
		if v, ok := poisoned[id]; ok {
			return v
		}
		t, ok := index[id]
		if !ok {
			// Dangling reference. Plan validation rejects these at insert
			// time; if one slips through it must not count as satisfied.
			poisoned[id] = true
			return true
		}
		// Mark in-progress as clean to terminate on any residual cycle.
		poisoned[id] = false

		result := t.Status == models.TaskStatusFailed || t.Status == models.TaskStatusBlocked
		if !result {
			for _, dep := range t.DependsOn {
				if isPoisoned(dep) {
					result = true
					break
				}
			}
		}
		poisoned[id] = result
		return result
	}

	var res Resolution
	for _, t := range tasks {
		if t.Obsolete {
			continue
		}
		switch t.Status {
		case models.TaskStatusPending:
			blocked := false
			for _, dep := range t.DependsOn {
				if isPoisoned(dep) {
					blocked = true
					break
				}
			}
			if blocked {
				res.Blocked = append(res.Blocked, t.ID)
				continue
			}
			allDone := true
			for _, dep := range t.DependsOn {
				depTask, ok := index[dep]
				if !ok || depTask.Status != models.TaskStatusCompleted {
					allDone = false
					break
				}
			}
			if allDone {
				res.Ready = append(res.Ready, t.ID)
			}
		case models.TaskStatusReady:
			// A task already marked ready goes back to blocked if a
			// dependency was failed between passes (manual override);
			// otherwise it stays eligible for dispatch.
			blocked := false
			for _, dep := range t.DependsOn {
				if isPoisoned(dep) {
					blocked = true
					break
				}
			}
			if blocked {
				res.Blocked = append(res.Blocked, t.ID)
			} else {
				res.Ready = append(res.Ready, t.ID)
			}
		case models.TaskStatusBlocked:
			// A blocked task whose dependencies have all been un-poisoned
			// (a failed dependency was retried) goes back to pending.
			// Stale-blocked chains converge over successive passes: each
			// pass unblocks the tasks whose direct dependencies are clean.
			stale := true
			for _, dep := range t.DependsOn {
				if isPoisoned(dep) {
					stale = false
					break
				}
			}
			if stale {
				res.Unblocked = append(res.Unblocked, t.ID)
			}
		}
	}

	sort.Slice(res.Ready, func(i, j int) bool {
		a, b := index[res.Ready[i]], index[res.Ready[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	sort.Strings(res.Blocked)
	sort.Strings(res.Unblocked)

	return res
}
