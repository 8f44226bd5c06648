// Package planner turns a free-form user instruction into a task graph.
//
// The engine treats plan generation as a pluggable capability: the Claude
// generator produces graphs for arbitrary instructions, and the rule-based
// generator covers common instruction shapes without an API key. Both emit
// Drafts with draft-local references that ResolveDrafts rewrites into
// stable task IDs.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sotaru/tasuke/internal/graph"
	"github.com/sotaru/tasuke/pkg/models"
)

// Draft is a generator-produced task before IDs are assigned.
// Needs refers to other drafts in the same batch by their Ref.
type Draft struct {
	Ref           string   `json:"ref" yaml:"ref"`
	AgentType     string   `json:"agent_type" yaml:"agent_type"`
	Description   string   `json:"description" yaml:"description"`
	Needs         []string `json:"needs,omitempty" yaml:"needs,omitempty"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty"`
	ReferenceType string   `json:"reference_type,omitempty" yaml:"reference_type,omitempty"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Generator produces task drafts from a natural-language instruction.
// prior carries optional context: session interview notes on initial
// generation, or the completed task's result during replanning.
type Generator interface {
	Generate(ctx context.Context, instruction, prior string) ([]Draft, error)
}

// ResolveDrafts assigns stable task IDs, rewrites draft-local Needs
// references into DependsOn IDs, and validates the resulting graph.
func ResolveDrafts(drafts []Draft) ([]*models.Task, error) {
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: empty draft list", models.ErrGeneration)
	}

	refToID := make(map[string]string, len(drafts))
	for _, d := range drafts {
		if d.Ref == "" {
			return nil, fmt.Errorf("%w: draft with empty ref", models.ErrGeneration)
		}
		if _, dup := refToID[d.Ref]; dup {
			return nil, fmt.Errorf("%w: duplicate draft ref %q", models.ErrGeneration, d.Ref)
		}
		refToID[d.Ref] = uuid.New().String()
	}

	now := time.Now()
	tasks := make([]*models.Task, len(drafts))
	for i, d := range drafts {
		agentType := models.AgentType(d.AgentType)
		if agentType == "" {
			agentType = models.AgentTypeCasual
		}

		category := models.TaskCategory(d.Category)
		switch category {
		case models.CategoryActionable, models.CategoryReference:
		case "":
			category = models.CategoryActionable
		default:
			return nil, fmt.Errorf("%w: unknown category %q for draft %q",
				models.ErrGeneration, d.Category, d.Ref)
		}

		task := &models.Task{
			ID:            refToID[d.Ref],
			AgentType:     agentType,
			Description:   d.Description,
			Category:      category,
			ReferenceType: models.ReferenceType(d.ReferenceType),
			Status:        models.TaskStatusPending,
			Tags:          append([]string(nil), d.Tags...),
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		for _, need := range d.Needs {
			depID, ok := refToID[need]
			if !ok {
				return nil, fmt.Errorf("%w: draft %q needs unknown draft %q",
					models.ErrGeneration, d.Ref, need)
			}
			task.DependsOn = append(task.DependsOn, depID)
		}

		tasks[i] = task
	}

	if err := graph.Validate(tasks); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}

	return tasks, nil
}
