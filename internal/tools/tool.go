// Package tools implements the agent's callable capabilities and the
// registry that dispatches them by name with bounded retry.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nkoretz/sage/internal/llm"
)

// Category groups tools for discovery and reporting.
type Category string

const (
	CategorySearch      Category = "search"
	CategoryCalculation Category = "calculation"
	CategoryFormatting  Category = "formatting"
	CategoryUtility     Category = "utility"
	CategoryInformation Category = "information"
)

// Parameter describes one argument a tool accepts.
type Parameter struct {
	Name        string
	Type        string // "string", "number", "boolean", "array"
	Description string
	Required    bool
	Default     any
	Items       string // element type when Type is "array"
}

// Result is the outcome of one tool execution. The payload is opaque to the
// registry; callers decide how to render it.
type Result struct {
	Success  bool
	Value    any
	Err      string
	Duration time.Duration // wall-clock execution time, set by the registry
}

// Failure builds an unsuccessful Result.
func Failure(format string, args ...any) Result {
	return Result{Success: false, Err: fmt.Sprintf(format, args...)}
}

// Success builds a successful Result.
func Success(value any) Result {
	return Result{Success: true, Value: value}
}

// Tool is a callable capability with a declared schema. Implementations must
// be safe to call repeatedly; the registry may retry a failed execution.
type Tool interface {
	Name() string
	Category() Category
	Description() string
	Parameters() []Parameter

	// Execute runs the tool with named arguments. Argument validation is the
	// tool's own responsibility; the registry passes args through untouched.
	Execute(ctx context.Context, args map[string]any) Result
}

// Schema converts a tool's parameter specs into an OpenAI function-calling
// schema usable with both providers.
func Schema(t Tool) llm.ToolSchema {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Default     any    `json:"default,omitempty"`
		Items       *struct {
			Type string `json:"type"`
		} `json:"items,omitempty"`
	}

	props := make(map[string]property)
	var required []string
	for _, p := range t.Parameters() {
		prop := property{Type: p.Type, Description: p.Description, Default: p.Default}
		if p.Type == "array" {
			itemType := p.Items
			if itemType == "" {
				itemType = "string"
			}
			prop.Items = &struct {
				Type string `json:"type"`
			}{Type: itemType}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)

	return llm.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		JSONSchema:  string(raw),
	}
}

// ValidateArgs checks args against the tool's derived JSON schema. Tools that
// want strict argument checking call this at the top of Execute.
func ValidateArgs(t Tool, args map[string]any) error {
	schema := Schema(t)
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema.JSONSchema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid arguments for %s: %s", t.Name(), strings.Join(msgs, "; "))
	}
	return nil
}

// stringArg extracts a string argument with a default.
func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// intArg extracts an integer argument with a default. JSON numbers decode as
// float64, so both forms are accepted.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
