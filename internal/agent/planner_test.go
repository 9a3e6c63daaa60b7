package agent

import (
	"context"
	"reflect"
	"testing"

	"github.com/nkoretz/sage/internal/llm"
)

// staticClient returns canned responses for planner tests.
type staticClient struct {
	response string
	err      error
}

func (c *staticClient) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	return c.response, c.err
}

func (c *staticClient) SelectTools(_ context.Context, _ llm.ToolSelectionRequest) ([]llm.ToolCall, error) {
	return nil, nil
}

func TestShouldUseTools(t *testing.T) {
	p := NewPlanner(&staticClient{}, 0, nil)

	tests := []struct {
		query string
		want  bool
	}{
		{"Calculate 15% of 250", true},
		{"What is today's date?", true},
		{"Format this as a table", true},
		{"Find the section on embeddings", true},
		{"Why do transformers use attention?", false},
		{"Explain retrieval augmented generation", false},
	}
	for _, tt := range tests {
		if got := p.ShouldUseTools(tt.query); got != tt.want {
			t.Errorf("ShouldUseTools(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestIdentifyCollections(t *testing.T) {
	p := NewPlanner(&staticClient{}, 0, nil)

	tests := []struct {
		query string
		want  []string
	}{
		{"What did week 3 of the course cover?", []string{"course"}},
		{"Summarize the video recording", []string{"transcripts"}},
		{"What did the lecture say about RAG?", []string{"course", "transcripts"}},
		{"Tell me about embeddings", []string{"course"}},
	}
	for _, tt := range tests {
		if got := p.IdentifyCollections(tt.query); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("IdentifyCollections(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestPlanParsesStructuredResponse(t *testing.T) {
	c := &staticClient{response: `{"main_goal":"explain RAG","sub_tasks":["define","motivate"],"required_information":["definition"],"complexity":"simple"}`}
	p := NewPlanner(c, 0, nil)

	plan, err := p.Plan(context.Background(), "What is RAG?")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.MainGoal != "explain RAG" {
		t.Errorf("MainGoal = %q", plan.MainGoal)
	}
	if len(plan.SubTasks) != 2 {
		t.Errorf("SubTasks = %v", plan.SubTasks)
	}
	if plan.Complexity != "simple" {
		t.Errorf("Complexity = %q", plan.Complexity)
	}
}

func TestPlanDefaultsOnMalformedResponse(t *testing.T) {
	c := &staticClient{response: "sorry, I can't produce JSON today"}
	p := NewPlanner(c, 0, nil)

	plan, err := p.Plan(context.Background(), "What is RAG?")
	if err != nil {
		t.Fatalf("Plan should not fail on malformed output: %v", err)
	}
	if plan.MainGoal != "What is RAG?" {
		t.Errorf("MainGoal should default to the query, got %q", plan.MainGoal)
	}
	if plan.SubTasks == nil || plan.RequiredInformation == nil {
		t.Error("list fields should default to empty, not nil")
	}
	if plan.Complexity != "moderate" {
		t.Errorf("Complexity should default to moderate, got %q", plan.Complexity)
	}
}

func TestPlanStripsCodeFences(t *testing.T) {
	c := &staticClient{response: "```json\n{\"main_goal\":\"g\",\"complexity\":\"complex\"}\n```"}
	p := NewPlanner(c, 0, nil)

	plan, err := p.Plan(context.Background(), "q")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.MainGoal != "g" || plan.Complexity != "complex" {
		t.Errorf("unexpected plan: %+v", plan)
	}
}
