package planner

import (
	"context"
	"fmt"

	"github.com/sotaru/tasuke/pkg/models"
)

// Replanner proposes follow-up tasks from a completed task's result. An
// empty draft list means no follow-ups are needed; the executor appends
// nothing and moves on.
type Replanner interface {
	Replan(ctx context.Context, description, result string) ([]Draft, error)
}

const replanSystemPrompt = `You are a task planner reviewing the result of a completed task. Decide
whether the result calls for follow-up tasks. Almost always it does not:
respond with an empty JSON array [] unless the result explicitly surfaces
new work that the original plan could not have anticipated.`

const replanPrompt = `A task just completed.

Task: %s

Result:
%s

If, and only if, this result reveals necessary follow-up work, respond with
a JSON array of new task objects in the same schema used for planning
(ref, agent_type, description, needs, category, reference_type). The needs
field may only reference refs within this new batch. Otherwise respond
with [].`

// Replan asks the model whether the completed task's result warrants
// follow-up tasks.
func (g *ClaudeGenerator) Replan(ctx context.Context, description, result string) ([]Draft, error) {
	prompt := fmt.Sprintf(replanPrompt, description, result)
	response, err := g.completer.Complete(ctx, replanSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	return parseDraftArray(response)
}

var _ Replanner = (*ClaudeGenerator)(nil)
