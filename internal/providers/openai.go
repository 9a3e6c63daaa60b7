// Package providers implements llm.Client against the OpenAI and Anthropic
// SDKs, plus an environment-driven factory.
package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nkoretz/sage/internal/llm"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient implements llm.Client by calling the OpenAI SDK directly.
// A custom base URL makes it work with any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed client.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Complete implements llm.Client.
func (c *OpenAIClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	r := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		r.Temperature = &req.Temperature
	}
	if req.JSONMode {
		r.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, r)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// SelectTools implements llm.Client using OpenAI function calling with
// tool_choice=auto; the model may request zero or more calls.
func (c *OpenAIClient) SelectTools(ctx context.Context, req llm.ToolSelectionRequest) ([]llm.ToolCall, error) {
	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, ts := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  json.RawMessage(ts.JSONSchema),
			},
		})
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
		{Role: openai.ChatMessageRoleUser, Content: req.User},
	}

	r := openai.ChatCompletionRequest{
		Model:      c.model,
		Messages:   messages,
		Tools:      tools,
		ToolChoice: "auto",
	}
	if req.Temperature > 0 {
		r.Temperature = &req.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("openai tool selection: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	var calls []llm.ToolCall
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			// Malformed arguments degrade to an empty map; the tool's own
			// schema validation reports the real problem.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		calls = append(calls, llm.ToolCall{Name: tc.Function.Name, Args: args})
	}
	return calls, nil
}
