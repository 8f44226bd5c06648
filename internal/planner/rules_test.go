package planner

import (
	"context"
	"testing"
)

func TestRuleGeneratorPatterns(t *testing.T) {
	g := NewRuleGenerator()

	tests := []struct {
		name        string
		instruction string
		wantRefs    []string
		wantAgents  []string
	}{
		{
			name:        "report with research",
			instruction: "Write a report on market trends for wearables",
			wantRefs:    []string{"gather", "draft"},
			wantAgents:  []string{"web", "casual"},
		},
		{
			name:        "plain report",
			instruction: "Write a weekly report",
			wantRefs:    []string{"report"},
			wantAgents:  []string{"casual"},
		},
		{
			name:        "data analysis",
			instruction: "Run a data analysis over last month's sales",
			wantRefs:    []string{"process", "summary"},
			wantAgents:  []string{"coder", "casual"},
		},
		{
			name:        "project planning",
			instruction: "Plan the development of a new web service",
			wantRefs:    []string{"research", "plan"},
			wantAgents:  []string{"web", "casual"},
		},
		{
			name:        "fallback",
			instruction: "Order more coffee beans",
			wantRefs:    []string{"work"},
			wantAgents:  []string{"casual"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := g.Generate(context.Background(), tt.instruction, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(drafts) != len(tt.wantRefs) {
				t.Fatalf("expected %d drafts, got %d", len(tt.wantRefs), len(drafts))
			}
			for i := range drafts {
				if drafts[i].Ref != tt.wantRefs[i] {
					t.Errorf("draft %d ref = %q, want %q", i, drafts[i].Ref, tt.wantRefs[i])
				}
				if drafts[i].AgentType != tt.wantAgents[i] {
					t.Errorf("draft %d agent = %q, want %q", i, drafts[i].AgentType, tt.wantAgents[i])
				}
			}

			// Every rule-generated plan must resolve cleanly.
			if _, err := ResolveDrafts(drafts); err != nil {
				t.Errorf("generated drafts do not resolve: %v", err)
			}
		})
	}
}

func TestRuleGeneratorDependencyShape(t *testing.T) {
	g := NewRuleGenerator()

	drafts, err := g.Generate(context.Background(), "Write a report on competitor pricing", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Category != "reference" {
		t.Errorf("gather step should be a reference task, got %q", drafts[0].Category)
	}
	if len(drafts[1].Needs) != 1 || drafts[1].Needs[0] != "gather" {
		t.Errorf("draft step should need gather, got %v", drafts[1].Needs)
	}
}
