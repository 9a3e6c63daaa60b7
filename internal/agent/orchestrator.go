package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nkoretz/sage/internal/llm"
	"github.com/nkoretz/sage/internal/tools"
	"github.com/nkoretz/sage/internal/tracelog"
)

// ContextChunk is what the retrieval collaborator hands back: a passage of
// text with its provenance.
type ContextChunk struct {
	Text       string
	Source     string
	Collection string
}

// ContextRetriever is the retrieval collaborator contract. A failed
// collection is skipped, never fatal to a run.
type ContextRetriever interface {
	Search(ctx context.Context, query, collection string, topK int) ([]ContextChunk, error)
}

// Options bound and tune one orchestrator instance.
type Options struct {
	MaxIterations     int     // revision loop bound, >= 1
	TopK              int     // global context cap after aggregation
	PerCollectionTopK int     // per-collection retrieval depth
	Temperature       float32 // generation temperature
	ReflectionEnabled bool
	MinConfidence     float64 // revision threshold for the critic
}

// Orchestrator drives the plan / retrieve / tool / generate / reflect loop
// for one query at a time. It owns the State for the duration of Run; the
// returned state is read-only afterward.
type Orchestrator struct {
	client    llm.Client
	planner   *Planner
	critic    *Critic
	registry  *tools.Registry
	retriever ContextRetriever
	tracer    *tracelog.Logger
	opts      Options
	log       *zap.Logger
}

func NewOrchestrator(
	client llm.Client,
	retriever ContextRetriever,
	registry *tools.Registry,
	tracer *tracelog.Logger,
	opts Options,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.PerCollectionTopK <= 0 {
		opts.PerCollectionTopK = 3
	}
	return &Orchestrator{
		client:    client,
		planner:   NewPlanner(client, opts.Temperature, log),
		critic:    NewCritic(client, opts.MinConfidence, log),
		registry:  registry,
		retriever: retriever,
		tracer:    tracer,
		opts:      opts,
		log:       log,
	}
}

// Run executes the full workflow for one query and returns the finished
// state. Transient collaborator failures (a collection down, a tool erroring
// out) degrade the answer, never the run; only completion-service failures
// in the plan, generate, and reflect phases surface as errors.
func (o *Orchestrator) Run(ctx context.Context, query string) (*State, error) {
	state, err := NewState(query, o.opts.MaxIterations)
	if err != nil {
		return nil, err
	}
	runID := tracelog.NewRunID()
	state.RunID = runID
	start := time.Now()

	o.log.Info("agent run started", zap.String("run_id", runID), zap.String("query", query))

	plan, err := o.plan(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("failed to plan query: %w", err)
	}

	collections := o.planner.IdentifyCollections(query)
	needsTools := o.planner.ShouldUseTools(query)
	o.log.Debug("plan ready",
		zap.String("goal", plan.MainGoal),
		zap.String("complexity", plan.Complexity),
		zap.Strings("collections", collections),
		zap.Bool("needs_tools", needsTools))

	for state.ShouldContinue() {
		o.log.Debug("iteration",
			zap.Int("n", state.Iteration+1),
			zap.Int("max", state.MaxIterations))

		chunks := o.retrieve(ctx, query, collections, state)

		var toolResults []toolOutcome
		if needsTools {
			toolResults = o.callTools(ctx, runID, query, chunks, state)
		}

		answer, err := o.generate(ctx, query, chunks, toolResults, state)
		if err != nil {
			return nil, fmt.Errorf("failed to generate answer: %w", err)
		}
		state.CurrentAnswer = answer

		if !o.opts.ReflectionEnabled {
			state.IsComplete = true
			break
		}

		reflection, err := o.reflect(ctx, query, answer, chunks, state)
		if err != nil {
			return nil, fmt.Errorf("failed to reflect on answer: %w", err)
		}

		if o.critic.ShouldRevise(reflection) && state.ShouldContinue() {
			state.Feedback = append(state.Feedback, o.critic.FormatFeedback(reflection))
			state.IncrementIteration()
			continue
		}
		state.IsComplete = true
		break
	}

	o.log.Info("agent run finished",
		zap.String("run_id", runID),
		zap.Int("iterations", state.Iteration),
		zap.Float64("confidence", state.Confidence),
		zap.Int("steps", len(state.Steps)),
		zap.Duration("elapsed", time.Since(start)))

	if o.tracer != nil {
		if err := o.tracer.LogRun(tracelog.RunRecord{
			RunID:      runID,
			Query:      query,
			Answer:     state.CurrentAnswer,
			Confidence: state.Confidence,
			Iterations: state.Iteration,
			Steps:      len(state.Steps),
			DurationMS: time.Since(start).Milliseconds(),
		}); err != nil {
			o.log.Warn("failed to log run record", zap.Error(err))
		}
	}

	return state, nil
}

// SaveTrace persists the full state of a finished run and returns the file
// path.
func (o *Orchestrator) SaveTrace(state *State) (string, error) {
	if o.tracer == nil {
		return "", fmt.Errorf("trace logging is not configured")
	}
	runID := state.RunID
	if runID == "" {
		runID = tracelog.NewRunID()
	}
	trace := struct {
		TraceSummary
		FinalAnswer string    `json:"final_answer"`
		Timestamp   time.Time `json:"timestamp"`
	}{
		TraceSummary: state.Summary(),
		FinalAnswer:  state.CurrentAnswer,
		Timestamp:    time.Now(),
	}
	return o.tracer.SaveTrace(runID, trace)
}

func (o *Orchestrator) plan(ctx context.Context, query string, state *State) (TaskDecomposition, error) {
	plan, err := o.planner.Plan(ctx, query)
	if err != nil {
		return TaskDecomposition{}, err
	}
	state.AddStep(StepPlan, "Main goal: "+plan.MainGoal, map[string]any{
		"sub_tasks":            plan.SubTasks,
		"complexity":           plan.Complexity,
		"required_information": plan.RequiredInformation,
	})
	return plan, nil
}

// retrieve gathers context from each target collection in order, skipping
// collections that error, then truncates the aggregate to the global cap.
func (o *Orchestrator) retrieve(ctx context.Context, query string, collections []string, state *State) []ContextChunk {
	var all []ContextChunk
	for _, collection := range collections {
		results, err := o.retriever.Search(ctx, query, collection, o.opts.PerCollectionTopK)
		if err != nil {
			o.log.Warn("collection unavailable, skipping",
				zap.String("collection", collection), zap.Error(err))
			continue
		}
		all = append(all, results...)
	}
	if len(all) > o.opts.TopK {
		all = all[:o.opts.TopK]
	}

	state.AddStep(StepRetrieve, fmt.Sprintf("Retrieved %d documents", len(all)), map[string]any{
		"collections": collections,
		"doc_count":   len(all),
	})
	return all
}

type toolOutcome struct {
	Tool   string
	Result tools.Result
}

// callTools lets the model pick tools via function calling, then executes
// the picks sequentially through the registry. Selection failures yield an
// empty outcome list; they never abort the run.
func (o *Orchestrator) callTools(ctx context.Context, runID, query string, chunks []ContextChunk, state *State) []toolOutcome {
	schemas := o.registry.Schemas()
	if len(schemas) == 0 {
		return nil
	}

	var preview []string
	for _, c := range chunks {
		if len(preview) == 2 {
			break
		}
		text := c.Text
		if len(text) > 200 {
			text = text[:200]
		}
		preview = append(preview, text)
	}

	calls, err := o.client.SelectTools(ctx, llm.ToolSelectionRequest{
		System:      toolSelectSystemPrompt,
		User:        formatToolSelectionPrompt(query, strings.Join(preview, "\n")),
		Tools:       schemas,
		Temperature: 0.3,
	})
	if err != nil {
		o.log.Warn("tool selection failed, continuing without tools", zap.Error(err))
		calls = nil
	}

	var outcomes []toolOutcome
	for _, call := range calls {
		o.log.Debug("calling tool", zap.String("tool", call.Name))
		result := o.registry.Execute(ctx, call.Name, call.Args)
		outcomes = append(outcomes, toolOutcome{Tool: call.Name, Result: result})

		if o.tracer != nil {
			args, _ := json.Marshal(call.Args)
			if err := o.tracer.LogToolCall(tracelog.ToolCallRecord{
				RunID:      runID,
				Tool:       call.Name,
				Args:       string(args),
				Success:    result.Success,
				Output:     fmt.Sprint(result.Value),
				Error:      result.Err,
				DurationMS: result.Duration.Milliseconds(),
			}); err != nil {
				o.log.Warn("failed to log tool call", zap.Error(err))
			}
		}
	}

	names := make([]string, len(outcomes))
	for i, out := range outcomes {
		names[i] = out.Tool
	}
	state.AddStep(StepToolCall, fmt.Sprintf("Called %d tools", len(outcomes)), map[string]any{
		"tools": names,
	})
	return outcomes
}

// generate produces the answer for this iteration, choosing the revision
// prompt once reflection feedback has accumulated. The revision prompt sees
// only the latest feedback entry, not the full history.
func (o *Orchestrator) generate(ctx context.Context, query string, chunks []ContextChunk, toolResults []toolOutcome, state *State) (string, error) {
	contextTexts := make([]string, 0, len(chunks)+1)
	for _, c := range chunks {
		contextTexts = append(contextTexts, c.Text)
	}
	if len(toolResults) > 0 {
		contextTexts = append(contextTexts, "Tool Results:\n"+formatToolOutcomes(toolResults))
	}

	var prompt string
	if len(state.Feedback) > 0 {
		prompt = formatRevisionPrompt(query, state.CurrentAnswer, state.Feedback[len(state.Feedback)-1], contextTexts)
	} else {
		prompt = formatAnswerPrompt(query, contextTexts)
	}

	answer, err := o.client.Complete(ctx, llm.CompletionRequest{
		System:      systemPrompt,
		User:        prompt,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	summary := answer
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}
	state.AddStep(StepGenerate, summary, map[string]any{
		"context_count":      len(chunks),
		"tool_results_count": len(toolResults),
	})
	return answer, nil
}

func (o *Orchestrator) reflect(ctx context.Context, query, answer string, chunks []ContextChunk, state *State) (Reflection, error) {
	var contextTexts []string
	for _, c := range chunks {
		if len(contextTexts) == 3 {
			break
		}
		text := c.Text
		if len(text) > 300 {
			text = text[:300]
		}
		contextTexts = append(contextTexts, text)
	}

	reflection, err := o.critic.Reflect(ctx, query, answer, contextTexts)
	if err != nil {
		return Reflection{}, err
	}
	state.Confidence = reflection.Confidence

	state.AddStep(StepReflect, fmt.Sprintf("Confidence: %.2f", reflection.Confidence), map[string]any{
		"satisfactory": reflection.Satisfactory,
		"strengths":    reflection.Strengths,
		"weaknesses":   reflection.Weaknesses,
		"suggestions":  reflection.Suggestions,
	})
	return reflection, nil
}

// formatToolOutcomes folds tool results into generation context. Failures
// are reported inline so the model can acknowledge them.
func formatToolOutcomes(outcomes []toolOutcome) string {
	lines := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		if out.Result.Success {
			lines = append(lines, fmt.Sprintf("- %s: %v", out.Tool, out.Result.Value))
		} else {
			lines = append(lines, fmt.Sprintf("- tool %s failed: %s", out.Tool, out.Result.Err))
		}
	}
	return strings.Join(lines, "\n")
}
