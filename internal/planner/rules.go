package planner

import (
	"context"
	"strings"
)

// RuleGenerator produces plans for common instruction shapes with keyword
// matching. It is the fallback when no LLM client is configured and keeps
// the engine usable offline.
type RuleGenerator struct{}

// NewRuleGenerator creates a rule-based generator.
func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{}
}

var (
	infoKeywords = []string{
		"research", "investigate", "search", "analyze", "market",
		"trends", "competitor",
	}
	analysisKeywords = []string{
		"data analysis", "forecast", "model", "python", "code",
	}
	projectKeywords = []string{
		"project", "development", "web service", "system", "design",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Generate maps the instruction onto one of the known plan shapes.
func (g *RuleGenerator) Generate(_ context.Context, instruction, _ string) ([]Draft, error) {
	lower := strings.ToLower(instruction)

	switch {
	case strings.Contains(lower, "report"):
		if containsAny(lower, infoKeywords) {
			return []Draft{
				{
					Ref:           "gather",
					AgentType:     "web",
					Description:   "Search for information needed for: " + instruction,
					Category:      "reference",
					ReferenceType: "web_search",
					Tags:          []string{"research"},
				},
				{
					Ref:         "draft",
					AgentType:   "casual",
					Description: "Write a report draft based on the gathered information",
					Needs:       []string{"gather"},
					Tags:        []string{"report"},
				},
			}, nil
		}
		return []Draft{
			{
				Ref:         "report",
				AgentType:   "casual",
				Description: "Write a report: " + instruction,
				Tags:        []string{"report"},
			},
		}, nil

	case containsAny(lower, analysisKeywords):
		return []Draft{
			{
				Ref:         "process",
				AgentType:   "coder",
				Description: "Process and analyze the data: " + instruction,
				Tags:        []string{"analysis"},
			},
			{
				Ref:         "summary",
				AgentType:   "casual",
				Description: "Summarize the analysis results into a report",
				Needs:       []string{"process"},
				Tags:        []string{"report", "analysis"},
			},
		}, nil

	case containsAny(lower, projectKeywords):
		return []Draft{
			{
				Ref:           "research",
				AgentType:     "web",
				Description:   "Research background for the project: " + instruction,
				Category:      "reference",
				ReferenceType: "web_search",
				Tags:          []string{"research", "planning"},
			},
			{
				Ref:         "plan",
				AgentType:   "casual",
				Description: "Write a planning and design document",
				Needs:       []string{"research"},
				Tags:        []string{"planning", "design"},
			},
		}, nil

	default:
		return []Draft{
			{
				Ref:         "work",
				AgentType:   "casual",
				Description: instruction,
				Tags:        []string{"general"},
			},
		}, nil
	}
}
