package evaluation

import (
	"context"
	"testing"

	"github.com/nkoretz/sage/internal/agent"
	"github.com/nkoretz/sage/internal/llm"
)

type fakeJudge struct {
	response string
}

func (f *fakeJudge) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	return f.response, nil
}

func (f *fakeJudge) SelectTools(_ context.Context, _ llm.ToolSelectionRequest) ([]llm.ToolCall, error) {
	return nil, nil
}

func TestTopicCoverage(t *testing.T) {
	tests := []struct {
		answer string
		topics []string
		want   float64
	}{
		{"RAG combines retrieval with generation", []string{"RAG", "retrieval", "generation"}, 1.0},
		{"RAG combines retrieval with generation", []string{"RAG", "transformers"}, 0.5},
		{"nothing relevant here", []string{"RAG"}, 0.0},
		{"anything", nil, 1.0},
		{"Case Insensitive Matching", []string{"case insensitive"}, 1.0},
	}
	for _, tt := range tests {
		if got := TopicCoverage(tt.answer, tt.topics); got != tt.want {
			t.Errorf("TopicCoverage(%q, %v) = %v, want %v", tt.answer, tt.topics, got, tt.want)
		}
	}
}

func TestEvaluateAnswerParsesScores(t *testing.T) {
	e := NewEvaluator(&fakeJudge{response: `{
		"relevance_score": 0.9,
		"accuracy_score": 0.8,
		"completeness_score": 0.7,
		"coherence_score": 0.85,
		"overall_score": 0.81,
		"reasoning": "solid answer"
	}`}, nil)

	eval, err := e.EvaluateAnswer(context.Background(), "q", "a", []string{"RAG"})
	if err != nil {
		t.Fatalf("EvaluateAnswer failed: %v", err)
	}
	if eval.Overall != 0.81 || eval.Relevance != 0.9 {
		t.Errorf("unexpected evaluation: %+v", eval)
	}
	if eval.Reasoning != "solid answer" {
		t.Errorf("reasoning = %q", eval.Reasoning)
	}
}

func TestEvaluateAnswerNeutralOnMalformedOutput(t *testing.T) {
	e := NewEvaluator(&fakeJudge{response: "I refuse to emit JSON"}, nil)

	eval, err := e.EvaluateAnswer(context.Background(), "q", "a", nil)
	if err != nil {
		t.Fatalf("EvaluateAnswer should not fail on malformed output: %v", err)
	}
	if eval.Overall != 0.5 || eval.Relevance != 0.5 {
		t.Errorf("scores should default to 0.5, got %+v", eval)
	}
}

func TestEvaluateToolUsage(t *testing.T) {
	e := NewEvaluator(&fakeJudge{}, nil)

	state, _ := agent.NewState("q", 3)
	usage := e.EvaluateToolUsage(state)
	if usage.ToolsUsed != 0 || usage.ToolCalls != 0 {
		t.Errorf("empty state usage = %+v", usage)
	}

	state.AddStep(agent.StepToolCall, "Called 2 tools", map[string]any{
		"tools": []string{"calculator", "current_date"},
	})
	state.AddStep(agent.StepToolCall, "Called 1 tools", map[string]any{
		"tools": []string{"calculator"},
	})

	usage = e.EvaluateToolUsage(state)
	if usage.ToolsUsed != 2 {
		t.Errorf("distinct tools = %d, want 2", usage.ToolsUsed)
	}
	if usage.ToolCalls != 2 {
		t.Errorf("tool call phases = %d, want 2", usage.ToolCalls)
	}
	if len(usage.ToolList) != 3 {
		t.Errorf("tool list = %v", usage.ToolList)
	}
}

func TestEvaluateReasoning(t *testing.T) {
	e := NewEvaluator(&fakeJudge{}, nil)

	state, _ := agent.NewState("q", 4)
	state.Iteration = 1
	state.Confidence = 0.8
	state.IsComplete = true
	state.AddStep(agent.StepPlan, "p", nil)
	state.AddStep(agent.StepReflect, "r", nil)

	eff := e.EvaluateReasoning(state)
	if eff.Iterations != 1 || eff.StepsTaken != 2 || eff.ReflectionCount != 1 {
		t.Errorf("efficiency = %+v", eff)
	}
	if eff.EfficiencyScore != 0.75 {
		t.Errorf("efficiency score = %v, want 0.75", eff.EfficiencyScore)
	}
	if !eff.Completed {
		t.Error("completed should mirror the state")
	}
}
