package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/nkoretz/sage/internal/llm"
)

// TaskDecomposition is the planner's structured view of a query. It is
// summarized into the trace and then discarded.
type TaskDecomposition struct {
	MainGoal            string   `json:"main_goal"`
	SubTasks            []string `json:"sub_tasks"`
	RequiredInformation []string `json:"required_information"`
	Complexity          string   `json:"complexity"` // simple, moderate, or complex
}

// Keyword tables for the planner's heuristics. Matching is case-insensitive
// substring membership over the raw query.
var (
	toolKeywords = []string{
		"calculate", "compute", "math",
		"search", "find", "lookup",
		"date", "time", "today",
		"format", "table", "list",
	}

	courseKeywords     = []string{"academy", "course", "lesson", "week", "homework", "lecture", "material"}
	transcriptKeywords = []string{"video", "transcript", "lecture", "recording"}
)

// Planner decomposes a query into a plan and decides which collections and
// tools are relevant. The heuristics are pure functions of the query text;
// only Plan touches the model.
type Planner struct {
	client      llm.Client
	temperature float32
	log         *zap.Logger
}

func NewPlanner(client llm.Client, temperature float32, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{client: client, temperature: temperature, log: log}
}

// Plan asks the model for a task decomposition. A malformed response is not
// an error: absent fields fall back to documented defaults so the workflow
// can always proceed.
func (p *Planner) Plan(ctx context.Context, query string) (TaskDecomposition, error) {
	raw, err := p.client.Complete(ctx, llm.CompletionRequest{
		System:      planSystemPrompt,
		User:        "Query: " + query,
		Temperature: p.temperature,
		JSONMode:    true,
	})
	if err != nil {
		return TaskDecomposition{}, err
	}

	var plan TaskDecomposition
	if err := json.Unmarshal([]byte(extractJSON(raw)), &plan); err != nil {
		p.log.Warn("plan response was not valid JSON, using defaults", zap.Error(err))
	}
	if plan.MainGoal == "" {
		plan.MainGoal = query
	}
	if plan.SubTasks == nil {
		plan.SubTasks = []string{}
	}
	if plan.RequiredInformation == nil {
		plan.RequiredInformation = []string{}
	}
	switch plan.Complexity {
	case "simple", "moderate", "complex":
	default:
		plan.Complexity = "moderate"
	}
	return plan, nil
}

// ShouldUseTools reports whether the query looks like it needs tool calls.
func (p *Planner) ShouldUseTools(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range toolKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// IdentifyCollections picks which knowledge collections to search. Falls
// back to the course collection when no keyword matches.
func (p *Planner) IdentifyCollections(query string) []string {
	q := strings.ToLower(query)
	var collections []string

	if containsAny(q, courseKeywords) {
		collections = append(collections, "course")
	}
	if containsAny(q, transcriptKeywords) {
		collections = append(collections, "transcripts")
	}
	if len(collections) == 0 {
		collections = []string{"course"}
	}
	return collections
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// extractJSON trims any prose around the first top-level JSON object. Some
// providers wrap JSON-mode answers in code fences or commentary.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
