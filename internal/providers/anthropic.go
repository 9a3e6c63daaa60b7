package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nkoretz/sage/internal/llm"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const defaultMaxTokens = 4096

// AnthropicClient implements llm.Client by calling the Anthropic SDK directly.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic-backed client.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  model,
	}
}

// Complete implements llm.Client. Anthropic has no JSON response mode, so
// JSONMode is handled by instructing the model and letting the caller's
// lenient parser deal with stray prose.
func (c *AnthropicClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	system := req.System
	if req.JSONMode {
		system += "\n\nRespond with a single JSON object and nothing else."
	}

	r := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(req.User)},
			},
		},
	}
	if system != "" {
		r.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: system}}
	}
	if req.Temperature > 0 {
		t := req.Temperature
		r.Temperature = &t
	}

	resp, err := c.client.CreateMessages(ctx, r)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	return text, nil
}

// SelectTools implements llm.Client using Anthropic tool use blocks.
func (c *AnthropicClient) SelectTools(ctx context.Context, req llm.ToolSelectionRequest) ([]llm.ToolCall, error) {
	var toolDefs []anthropic.ToolDefinition
	for _, ts := range req.Tools {
		var schema map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", ts.Name, err)
		}
		toolDefs = append(toolDefs, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schema,
		})
	}

	r := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(req.User)},
			},
		},
		Tools: toolDefs,
	}
	if req.System != "" {
		r.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: req.System}}
	}
	if req.Temperature > 0 {
		t := req.Temperature
		r.Temperature = &t
	}

	resp, err := c.client.CreateMessages(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("anthropic tool selection: %w", err)
	}

	var calls []llm.ToolCall
	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.MessageContentToolUse == nil {
			continue
		}
		tu := block.MessageContentToolUse
		args := make(map[string]any)
		_ = json.Unmarshal(tu.Input, &args)
		calls = append(calls, llm.ToolCall{Name: tu.Name, Args: args})
	}
	return calls, nil
}
