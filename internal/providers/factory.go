package providers

import (
	"fmt"

	"github.com/nkoretz/sage/internal/llm"
)

// New creates an llm.Client for the named provider. baseURL is only honored
// by OpenAI-compatible providers.
func New(provider, apiKey, model, baseURL string) (llm.Client, error) {
	switch provider {
	case "openai", "":
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIClient(apiKey, model, baseURL), nil

	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		if model == "" {
			model = "claude-3-5-sonnet-20241022"
		}
		return NewAnthropicClient(apiKey, model), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
