package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nkoretz/sage/internal/agent"
)

// TestQuery is one entry of the evaluation dataset.
type TestQuery struct {
	Query          string   `json:"query"`
	ExpectedTopics []string `json:"expected_topics,omitempty"`
}

// QueryResult is the detailed outcome for one dataset query.
type QueryResult struct {
	Query         string              `json:"query"`
	Answer        string              `json:"answer"`
	AnswerEval    AnswerEvaluation    `json:"answer_eval"`
	Tools         ToolUsage           `json:"tools"`
	Reasoning     ReasoningEfficiency `json:"reasoning"`
	TopicCoverage float64             `json:"topic_coverage"`
	Error         string              `json:"error,omitempty"`
}

// Summary holds the aggregate statistics over one dataset run.
type Summary struct {
	TotalQueries  int       `json:"total_queries"`
	Failed        int       `json:"failed"`
	AnswerQuality Averages  `json:"answer_quality"`
	AvgIterations float64   `json:"avg_iterations"`
	AvgConfidence float64   `json:"avg_confidence"`
	AvgEfficiency float64   `json:"avg_efficiency"`
	QueriesTooled int       `json:"queries_with_tools"`
	AvgToolRate   float64   `json:"avg_tool_success_rate"`
	AvgCoverage   float64   `json:"avg_topic_coverage"`
	Timestamp     time.Time `json:"timestamp"`
}

// Averages are mean judge scores across the dataset.
type Averages struct {
	Relevance    float64 `json:"relevance"`
	Accuracy     float64 `json:"accuracy"`
	Completeness float64 `json:"completeness"`
	Coherence    float64 `json:"coherence"`
	Overall      float64 `json:"overall"`
}

// Report bundles the summary with per-query detail for the output file.
type Report struct {
	Summary Summary       `json:"summary"`
	Results []QueryResult `json:"results"`
}

// LoadDataset reads a test-query dataset from a JSON file. The file holds
// either a bare array of queries or an object with a "queries" key.
func LoadDataset(path string) ([]TestQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var queries []TestQuery
	if err := json.Unmarshal(data, &queries); err == nil && len(queries) > 0 {
		return queries, nil
	}

	var wrapped struct {
		Queries []TestQuery `json:"queries"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(wrapped.Queries) == 0 {
		return nil, fmt.Errorf("dataset %q contains no queries", path)
	}
	return wrapped.Queries, nil
}

// Runner drives the agent over a dataset and judges every answer.
type Runner struct {
	orchestrator *agent.Orchestrator
	evaluator    *Evaluator
	log          *zap.Logger
}

func NewRunner(orchestrator *agent.Orchestrator, evaluator *Evaluator, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{orchestrator: orchestrator, evaluator: evaluator, log: log}
}

// Run executes every dataset query through the agent and scores the result.
// A failed run is recorded with its error and zeroed scores; it never stops
// the dataset.
func (r *Runner) Run(ctx context.Context, queries []TestQuery) Report {
	results := make([]QueryResult, 0, len(queries))

	for i, tq := range queries {
		r.log.Info("evaluating query",
			zap.Int("n", i+1), zap.Int("total", len(queries)), zap.String("query", tq.Query))

		res := QueryResult{Query: tq.Query}

		state, err := r.orchestrator.Run(ctx, tq.Query)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.Answer = state.CurrentAnswer
		res.Tools = r.evaluator.EvaluateToolUsage(state)
		res.Reasoning = r.evaluator.EvaluateReasoning(state)
		res.TopicCoverage = TopicCoverage(state.CurrentAnswer, tq.ExpectedTopics)

		eval, err := r.evaluator.EvaluateAnswer(ctx, tq.Query, state.CurrentAnswer, tq.ExpectedTopics)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.AnswerEval = eval
		}
		results = append(results, res)
	}

	return Report{Summary: summarize(results), Results: results}
}

// WriteReport persists a report as pretty JSON, creating parent directories
// as needed.
func WriteReport(path string, report Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func summarize(results []QueryResult) Summary {
	s := Summary{TotalQueries: len(results), Timestamp: time.Now()}
	if len(results) == 0 {
		return s
	}

	var ok int
	for _, r := range results {
		if r.Error != "" {
			s.Failed++
			continue
		}
		ok++
		s.AnswerQuality.Relevance += r.AnswerEval.Relevance
		s.AnswerQuality.Accuracy += r.AnswerEval.Accuracy
		s.AnswerQuality.Completeness += r.AnswerEval.Completeness
		s.AnswerQuality.Coherence += r.AnswerEval.Coherence
		s.AnswerQuality.Overall += r.AnswerEval.Overall
		s.AvgIterations += float64(r.Reasoning.Iterations)
		s.AvgConfidence += r.Reasoning.FinalConfidence
		s.AvgEfficiency += r.Reasoning.EfficiencyScore
		s.AvgToolRate += r.Tools.SuccessRate
		s.AvgCoverage += r.TopicCoverage
		if r.Tools.ToolsUsed > 0 {
			s.QueriesTooled++
		}
	}
	if ok == 0 {
		return s
	}

	n := float64(ok)
	s.AnswerQuality.Relevance = round3(s.AnswerQuality.Relevance / n)
	s.AnswerQuality.Accuracy = round3(s.AnswerQuality.Accuracy / n)
	s.AnswerQuality.Completeness = round3(s.AnswerQuality.Completeness / n)
	s.AnswerQuality.Coherence = round3(s.AnswerQuality.Coherence / n)
	s.AnswerQuality.Overall = round3(s.AnswerQuality.Overall / n)
	s.AvgIterations = round3(s.AvgIterations / n)
	s.AvgConfidence = round3(s.AvgConfidence / n)
	s.AvgEfficiency = round3(s.AvgEfficiency / n)
	s.AvgToolRate = round3(s.AvgToolRate / n)
	s.AvgCoverage = round3(s.AvgCoverage / n)
	return s
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
