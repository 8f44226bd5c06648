package planner

import (
	"errors"
	"testing"

	"github.com/sotaru/tasuke/pkg/models"
)

func TestResolveDrafts(t *testing.T) {
	drafts := []Draft{
		{Ref: "gather", AgentType: "web", Description: "find data", Category: "reference", ReferenceType: "web_search"},
		{Ref: "write", AgentType: "casual", Description: "write it up", Needs: []string{"gather"}},
	}

	tasks, err := ResolveDrafts(drafts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	gather, write := tasks[0], tasks[1]
	if gather.ID == "" || write.ID == "" {
		t.Fatal("expected generated IDs")
	}
	if gather.ID == write.ID {
		t.Fatal("IDs must be unique")
	}
	if len(write.DependsOn) != 1 || write.DependsOn[0] != gather.ID {
		t.Errorf("needs not rewritten to depends_on: %v", write.DependsOn)
	}
	if gather.Category != models.CategoryReference || gather.ReferenceType != models.ReferenceWebSearch {
		t.Errorf("reference metadata lost: %+v", gather)
	}
	if write.Category != models.CategoryActionable {
		t.Errorf("expected default category actionable, got %s", write.Category)
	}
	for _, task := range tasks {
		if task.Status != models.TaskStatusPending {
			t.Errorf("task %s should start pending, got %s", task.ID, task.Status)
		}
	}
}

func TestResolveDraftsErrors(t *testing.T) {
	tests := []struct {
		name   string
		drafts []Draft
	}{
		{"empty list", nil},
		{"empty ref", []Draft{{Ref: "", Description: "x"}}},
		{"duplicate ref", []Draft{{Ref: "a"}, {Ref: "a"}}},
		{"unknown need", []Draft{{Ref: "a", Needs: []string{"ghost"}}}},
		{"cycle", []Draft{
			{Ref: "a", Needs: []string{"b"}},
			{Ref: "b", Needs: []string{"a"}},
		}},
		{"bad category", []Draft{{Ref: "a", Category: "urgent"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveDrafts(tt.drafts)
			if !errors.Is(err, models.ErrGeneration) {
				t.Errorf("expected ErrGeneration, got %v", err)
			}
		})
	}
}

func TestParseDraftResponse(t *testing.T) {
	response := `Here is the plan:
[
  {"ref": "gather", "agent_type": "web", "description": "search", "category": "reference", "reference_type": "web_search"},
  {"ref": "write", "agent_type": "casual", "description": "draft", "needs": ["gather"]}
]
Let me know if you need changes.`

	drafts, err := ParseDraftResponse(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Ref != "gather" || drafts[1].Needs[0] != "gather" {
		t.Errorf("drafts not parsed correctly: %+v", drafts)
	}
}

func TestParseDraftResponseErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no json", "I could not produce a plan."},
		{"empty array", "[]"},
		{"malformed", "[{]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDraftResponse(tt.response)
			if !errors.Is(err, models.ErrGeneration) {
				t.Errorf("expected ErrGeneration, got %v", err)
			}
		})
	}
}
