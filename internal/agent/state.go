// Package agent implements the reasoning core: the per-query state machine,
// the planner, the self-reflection critic, and the orchestrator that drives
// plan -> retrieve -> tool dispatch -> generate -> reflect -> revise cycles.
package agent

import (
	"fmt"
	"time"
)

// StepKind tags a reasoning step with the phase that produced it.
type StepKind string

const (
	StepPlan     StepKind = "plan"
	StepRetrieve StepKind = "retrieve"
	StepToolCall StepKind = "tool_call"
	StepGenerate StepKind = "generate"
	StepReflect  StepKind = "reflect"
)

// ReasoningStep is one record in the reasoning trace. Steps are immutable
// once appended; the step number is 1-based and monotonic.
type ReasoningStep struct {
	Number    int            `json:"number"`
	Kind      StepKind       `json:"kind"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// State tracks one query's execution: the full reasoning trace, the current
// best answer, and the iteration budget. A State is owned by a single
// Orchestrator.Run call and must not be shared across goroutines; after the
// run finishes it is handed to logging and reporting as read-only.
type State struct {
	RunID         string          `json:"run_id,omitempty"`
	Query         string          `json:"query"`
	Steps         []ReasoningStep `json:"steps"`
	CurrentAnswer string          `json:"current_answer,omitempty"`
	Confidence    float64         `json:"confidence"`
	Iteration     int             `json:"iteration"`
	MaxIterations int             `json:"max_iterations"`
	IsComplete    bool            `json:"is_complete"`
	Feedback      []string        `json:"feedback,omitempty"`
}

// NewState creates a State for one query. maxIterations must be at least 1.
func NewState(query string, maxIterations int) (*State, error) {
	if maxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be >= 1, got %d", maxIterations)
	}
	return &State{
		Query:         query,
		MaxIterations: maxIterations,
	}, nil
}

// AddStep appends a reasoning step. Prior steps are never touched.
func (s *State) AddStep(kind StepKind, content string, metadata map[string]any) {
	s.Steps = append(s.Steps, ReasoningStep{
		Number:    len(s.Steps) + 1,
		Kind:      kind,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now(),
	})
}

// IncrementIteration advances the iteration counter. Reaching the configured
// bound marks the state complete: the bound is inclusive, hitting it exactly
// terminates the loop.
func (s *State) IncrementIteration() {
	s.Iteration++
	if s.Iteration >= s.MaxIterations {
		s.IsComplete = true
	}
}

// IterationsUsed reports how many generation passes a finished run took.
// The counter saturates at the bound: an exhausted budget ran exactly
// MaxIterations passes, not one more.
func (s *State) IterationsUsed() int {
	if s.Iteration >= s.MaxIterations {
		return s.MaxIterations
	}
	return s.Iteration + 1
}

// ShouldContinue reports whether another iteration may run. It is false once
// the state is complete, regardless of the iteration count.
func (s *State) ShouldContinue() bool {
	if s.IsComplete {
		return false
	}
	return s.Iteration < s.MaxIterations
}

// StepsByKind returns all steps of the given kind, in trace order.
func (s *State) StepsByKind(kind StepKind) []ReasoningStep {
	var out []ReasoningStep
	for _, step := range s.Steps {
		if step.Kind == kind {
			out = append(out, step)
		}
	}
	return out
}

// TraceSummary is the compact serialization of a run used for trace files
// and the evaluation report.
type TraceSummary struct {
	Query      string         `json:"query"`
	Iterations int            `json:"iterations"`
	Confidence float64        `json:"confidence"`
	IsComplete bool           `json:"is_complete"`
	Steps      []StepSummary  `json:"steps"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// StepSummary is one trace entry with long content truncated for logs.
type StepSummary struct {
	Number  int      `json:"number"`
	Kind    StepKind `json:"kind"`
	Content string   `json:"content"`
}

// Summary builds a TraceSummary from the state, truncating step content to
// 200 characters the way the full-trace log expects.
func (s *State) Summary() TraceSummary {
	steps := make([]StepSummary, 0, len(s.Steps))
	for _, step := range s.Steps {
		content := step.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		steps = append(steps, StepSummary{Number: step.Number, Kind: step.Kind, Content: content})
	}
	return TraceSummary{
		Query:      s.Query,
		Iterations: s.Iteration,
		Confidence: s.Confidence,
		IsComplete: s.IsComplete,
		Steps:      steps,
	}
}
