package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sotaru/tasuke/internal/llm"
	"github.com/sotaru/tasuke/pkg/models"
)

// ClaudeGenerator asks Claude to decompose an instruction into a task graph.
type ClaudeGenerator struct {
	completer llm.Completer
}

// NewClaudeGenerator creates a generator backed by the given completer.
func NewClaudeGenerator(completer llm.Completer) *ClaudeGenerator {
	return &ClaudeGenerator{completer: completer}
}

// Generate produces drafts for the instruction.
func (g *ClaudeGenerator) Generate(ctx context.Context, instruction, prior string) ([]Draft, error) {
	prompt := fmt.Sprintf(generationPrompt, instruction)
	if prior != "" {
		prompt += fmt.Sprintf(priorContextSection, prior)
	}

	response, err := g.completer.Complete(ctx, generationSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}

	drafts, err := ParseDraftResponse(response)
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

// ParseDraftResponse extracts the first JSON array from a model response
// and decodes it into drafts. Models occasionally wrap the array in prose
// or a code fence, so everything outside the brackets is discarded.
func ParseDraftResponse(response string) ([]Draft, error) {
	drafts, err := parseDraftArray(response)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: empty task list returned", models.ErrGeneration)
	}
	return drafts, nil
}

// parseDraftArray is the lenient variant used during replanning, where an
// empty array is a valid "nothing to add" answer.
func parseDraftArray(response string) ([]Draft, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("%w: no JSON array in response (%d chars): %q",
			models.ErrGeneration, len(response), preview)
	}

	var drafts []Draft
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &drafts); err != nil {
		return nil, fmt.Errorf("%w: unmarshal drafts: %v", models.ErrGeneration, err)
	}
	return drafts, nil
}

const generationSystemPrompt = `You are a task planner. You break user instructions into small, independently executable tasks with explicit dependencies. You respond with JSON only.`

// generationPrompt is the prompt template for plan generation.
const generationPrompt = `Break this instruction into tasks that specialized workers can execute. Workers: "web" (web search and information gathering), "coder" (data processing and code), "casual" (writing, summarization, general work), "file" (reading local documents).

Instruction:
%s

Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "ref": "short-local-name",
    "agent_type": "web|coder|casual|file",
    "description": "What this task should do",
    "needs": ["ref of a prerequisite task"],
    "category": "actionable|reference",
    "reference_type": "web_search|kvs_document|file_read",
    "tags": ["label"]
  }
]

Rules:
- "needs" lists refs of tasks whose output this task requires; omit when none.
- Dependencies must not form a cycle.
- Use category "reference" for tasks that only gather information for later
  tasks; their result is passed verbatim to dependents. Set reference_type
  for those tasks only.
- Prefer few tasks; tasks with no dependency between them run in parallel.`

const priorContextSection = `

Additional context from earlier work:
%s`
