// Package evaluation measures agent performance: LLM-as-judge answer
// scoring, tool usage and reasoning efficiency extracted from run traces,
// and aggregate reports over a test dataset.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nkoretz/sage/internal/agent"
	"github.com/nkoretz/sage/internal/llm"
)

const judgeTemperature = 0.2

// AnswerEvaluation is the judge's scoring of one answer. Scores the judge
// omits default to the neutral 0.5.
type AnswerEvaluation struct {
	Relevance    float64 `json:"relevance_score"`
	Accuracy     float64 `json:"accuracy_score"`
	Completeness float64 `json:"completeness_score"`
	Coherence    float64 `json:"coherence_score"`
	Overall      float64 `json:"overall_score"`
	Reasoning    string  `json:"reasoning"`
}

// ToolUsage summarizes tool activity observed in one run trace.
type ToolUsage struct {
	ToolsUsed   int      `json:"tools_used"` // distinct tools
	ToolCalls   int      `json:"tool_calls"` // dispatch phases entered
	SuccessRate float64  `json:"success_rate"`
	ToolList    []string `json:"tool_list"`
}

// ReasoningEfficiency summarizes how the revision loop spent its budget.
type ReasoningEfficiency struct {
	Iterations      int     `json:"iterations"`
	StepsTaken      int     `json:"steps_taken"`
	FinalConfidence float64 `json:"confidence_final"`
	ReflectionCount int     `json:"reflection_count"`
	EfficiencyScore float64 `json:"efficiency_score"` // 1 - iterations/max
	Completed       bool    `json:"completed"`
}

const judgeSystemPrompt = `You are an expert evaluator assessing AI-generated answers.

Evaluate based on:
1. Relevance: Does it directly address the query?
2. Accuracy: Is the information correct and factual?
3. Completeness: Are all aspects of the query covered?
4. Coherence: Is it well-structured, clear, and logically organized?

Respond with a JSON object with these keys:
- relevance_score: float (0.0-1.0)
- accuracy_score: float (0.0-1.0)
- completeness_score: float (0.0-1.0)
- coherence_score: float (0.0-1.0)
- overall_score: float (0.0-1.0, weighted average)
- reasoning: string explaining the scores`

// Evaluator scores answers and extracts metrics from finished agent states.
type Evaluator struct {
	client llm.Client
	log    *zap.Logger
}

func NewEvaluator(client llm.Client, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{client: client, log: log}
}

// EvaluateAnswer runs the LLM judge over one query/answer pair. A malformed
// judge response degrades to neutral scores instead of failing the dataset
// run.
func (e *Evaluator) EvaluateAnswer(ctx context.Context, query, answer string, expectedTopics []string) (AnswerEvaluation, error) {
	var topics string
	if len(expectedTopics) > 0 {
		topics = "\nExpected topics: " + strings.Join(expectedTopics, ", ")
	}
	user := fmt.Sprintf("Query: %s\n\nAnswer: %s\n%s\nEvaluate this answer.", query, answer, topics)

	raw, err := e.client.Complete(ctx, llm.CompletionRequest{
		System:      judgeSystemPrompt,
		User:        user,
		Temperature: judgeTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return AnswerEvaluation{}, fmt.Errorf("failed to run judge: %w", err)
	}

	eval := AnswerEvaluation{Relevance: 0.5, Accuracy: 0.5, Completeness: 0.5, Coherence: 0.5, Overall: 0.5}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &eval); err != nil {
		e.log.Warn("judge response was not valid JSON, using neutral scores", zap.Error(err))
	}
	return eval, nil
}

// EvaluateToolUsage reads tool activity out of a finished state's trace.
func (e *Evaluator) EvaluateToolUsage(state *agent.State) ToolUsage {
	toolSteps := state.StepsByKind(agent.StepToolCall)
	if len(toolSteps) == 0 {
		return ToolUsage{ToolList: []string{}}
	}

	var all []string
	successful := 0
	for _, step := range toolSteps {
		if tools, ok := step.Metadata["tools"].([]string); ok && len(tools) > 0 {
			all = append(all, tools...)
			successful += len(tools)
		}
	}

	distinct := map[string]bool{}
	for _, t := range all {
		distinct[t] = true
	}
	return ToolUsage{
		ToolsUsed:   len(distinct),
		ToolCalls:   len(toolSteps),
		SuccessRate: float64(successful) / float64(len(toolSteps)),
		ToolList:    all,
	}
}

// EvaluateReasoning summarizes loop efficiency from a finished state.
func (e *Evaluator) EvaluateReasoning(state *agent.State) ReasoningEfficiency {
	return ReasoningEfficiency{
		Iterations:      state.Iteration,
		StepsTaken:      len(state.Steps),
		FinalConfidence: state.Confidence,
		ReflectionCount: len(state.StepsByKind(agent.StepReflect)),
		EfficiencyScore: 1.0 - float64(state.Iteration)/float64(state.MaxIterations),
		Completed:       state.IsComplete,
	}
}

// TopicCoverage reports the fraction of expected topics mentioned in the
// answer, case-insensitively. No expected topics means full coverage.
func TopicCoverage(answer string, expectedTopics []string) float64 {
	if len(expectedTopics) == 0 {
		return 1.0
	}
	lower := strings.ToLower(answer)
	covered := 0
	for _, topic := range expectedTopics {
		if strings.Contains(lower, strings.ToLower(topic)) {
			covered++
		}
	}
	return float64(covered) / float64(len(expectedTopics))
}

func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
