package main

import (
	"fmt"
	"strings"

	"github.com/sotaru/tasuke/internal/store"
)

// resolveTaskID accepts a full task id or a unique prefix (the short form
// the other commands print).
func resolveTaskID(st store.PlanStore, sessionID, ref string) (string, error) {
	plan, err := st.GetPlan(sessionID)
	if err != nil {
		return "", fmt.Errorf("get plan: %w", err)
	}

	var matches []string
	for _, t := range plan.Tasks {
		if t.ID == ref {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no task matches %q in session %s", ref, sessionID)
	default:
		return "", fmt.Errorf("task id %q is ambiguous (%d matches)", ref, len(matches))
	}
}
