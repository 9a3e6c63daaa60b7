// Package llm defines the provider-agnostic completion interface the agent
// core consumes. Concrete providers live in internal/providers.
package llm

import "context"

// CompletionRequest is one blocking completion call.
type CompletionRequest struct {
	System      string  // system prompt
	User        string  // user prompt
	Temperature float32 // 0 means provider default
	JSONMode    bool    // ask the provider for a JSON object response
}

// ToolSchema describes one callable tool in provider function-calling format.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string // parameters schema as raw JSON
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolSelectionRequest asks the model which tools, if any, to invoke.
type ToolSelectionRequest struct {
	System      string
	User        string
	Tools       []ToolSchema
	Temperature float32
}

// Client abstracts the completion service. Implementations block until the
// provider responds; cancellation happens through ctx.
type Client interface {
	// Complete returns the assistant text for a single prompt exchange.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// SelectTools runs one function-calling exchange and returns zero or
	// more tool calls in the order the model requested them.
	SelectTools(ctx context.Context, req ToolSelectionRequest) ([]ToolCall, error)
}
