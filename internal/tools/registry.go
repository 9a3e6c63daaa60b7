package tools

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nkoretz/sage/internal/llm"
)

const maxAttempts = 3

// SleepFunc pauses between retry attempts. Tests inject a recording fake.
type SleepFunc func(time.Duration)

// Registry holds named tools and executes them with bounded retry. It is
// populated once at startup and read-only afterwards; concurrent mutation
// during execution is not supported.
type Registry struct {
	tools map[string]Tool
	order []string // registration order, for stable schema listings
	sleep SleepFunc
	log   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		tools: make(map[string]Tool),
		sleep: time.Sleep,
		log:   log,
	}
}

// WithSleep overrides the backoff sleep. For tests.
func (r *Registry) WithSleep(fn SleepFunc) *Registry {
	r.sleep = fn
	return r
}

// Register inserts a tool by name. Re-registering an existing name silently
// replaces the old tool (last registration wins); a warning is logged since
// that is usually a mistake.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		r.log.Warn("tool re-registered, previous implementation replaced", zap.String("tool", name))
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schemas returns function-calling schemas for every registered tool.
func (r *Registry) Schemas() []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, Schema(r.tools[name]))
	}
	return schemas
}

// Execute looks up a tool and runs it with up to 3 attempts. An unknown name
// fails immediately with no retry. A failed attempt that is not the last one
// is followed by an exponential backoff sleep of 2^attempt seconds (1s, then
// 2s) with no jitter. The first success returns immediately with the measured
// execution time attached; exhausting all attempts returns the last failure.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	tool, ok := r.tools[name]
	if !ok {
		return Failure("tool %q not found", name)
	}

	var last Result
	for attempt := 0; attempt < maxAttempts; attempt++ {
		start := time.Now()
		res := runSafely(ctx, tool, args)
		res.Duration = time.Since(start)

		if res.Success {
			return res
		}
		last = res
		r.log.Debug("tool attempt failed",
			zap.String("tool", name),
			zap.Int("attempt", attempt+1),
			zap.String("error", res.Err))

		if attempt < maxAttempts-1 {
			r.sleep(time.Duration(1<<attempt) * time.Second)
		}
	}

	if last.Err == "" {
		last = Failure("tool %s failed after %d attempts", name, maxAttempts)
	}
	return last
}

// runSafely converts a panicking tool into a failure result so one bad tool
// cannot abort the run.
func runSafely(ctx context.Context, tool Tool, args map[string]any) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Failure("tool %s panicked: %v", tool.Name(), rec)
		}
	}()
	return tool.Execute(ctx, args)
}

// Describe renders a one-line-per-tool listing for prompts and the REPL.
func (r *Registry) Describe() string {
	var b []byte
	for _, name := range r.order {
		t := r.tools[name]
		b = append(b, "- "...)
		b = append(b, name...)
		b = append(b, '(')
		for i, p := range t.Parameters() {
			if i > 0 {
				b = append(b, ", "...)
			}
			b = append(b, p.Name...)
			b = append(b, ": "...)
			b = append(b, p.Type...)
		}
		b = append(b, "): "...)
		b = append(b, t.Description()...)
		b = append(b, '\n')
	}
	return string(b)
}
