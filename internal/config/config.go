// Package config centralizes runtime configuration. Values come from the
// environment (a .env file is loaded by cmd/sage before FromEnv runs) with
// documented defaults; Validate catches fatal misconfiguration at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every tunable the process reads. Other packages receive the
// values they need through constructors rather than reading the environment
// themselves.
type Config struct {
	// Provider selection.
	Provider       string // "openai" or "anthropic"
	OpenAIKey      string
	AnthropicKey   string
	AgentModel     string
	EvalModel      string
	BaseURL        string // OpenAI-compatible endpoint override
	AgentTemp      float32
	EmbeddingModel string
	EmbeddingDim   int

	// Paths.
	DataDir  string
	IndexDir string
	LogDir   string

	// Chunking.
	ChunkSize    int
	ChunkOverlap int

	// Retrieval.
	TopK              int // global cap after aggregation
	PerCollectionTopK int

	// Reasoning loop.
	MaxIterations     int
	ReflectionEnabled bool
	MinConfidence     float64

	// Indexing.
	AutoIndex bool

	// Evaluation.
	EvalDataset string
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset. It does not validate; call Validate afterwards.
func FromEnv() *Config {
	return &Config{
		Provider:          envStr("LLM_PROVIDER", "openai"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:      os.Getenv("ANTHROPIC_API_KEY"),
		AgentModel:        envStr("AGENT_MODEL", "gpt-4o-mini"),
		EvalModel:         envStr("EVAL_MODEL", "gpt-4o"),
		BaseURL:           os.Getenv("OPENAI_BASE_URL"),
		AgentTemp:         float32(envFloat("AGENT_TEMPERATURE", 0.7)),
		EmbeddingModel:    envStr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:      envInt("EMBEDDING_DIMENSION", 1536),
		DataDir:           envStr("DATA_DIR", "./data"),
		IndexDir:          envStr("INDEX_DIR", "./index"),
		LogDir:            envStr("LOG_DIR", "./logs"),
		ChunkSize:         envInt("CHUNK_SIZE", 1000),
		ChunkOverlap:      envInt("CHUNK_OVERLAP", 200),
		TopK:              envInt("TOP_K", 5),
		PerCollectionTopK: envInt("PER_COLLECTION_TOP_K", 3),
		MaxIterations:     envInt("MAX_ITERATIONS", 5),
		ReflectionEnabled: envBool("REFLECTION_ENABLED", true),
		MinConfidence:     envFloat("MIN_CONFIDENCE_SCORE", 0.7),
		AutoIndex:         envBool("AUTO_INDEX", false),
		EvalDataset:       envStr("EVAL_DATASET", "./evaluation/test_queries.json"),
	}
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicKey
	}
	return c.OpenAIKey
}

// Validate reports fatal configuration problems. A failed validation should
// stop the process before any query is attempted.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required (set it in the environment or a .env file)")
		}
	case "anthropic":
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required (set it in the environment or a .env file)")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want openai or anthropic)", c.Provider)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must be non-negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be less than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.PerCollectionTopK <= 0 {
		return fmt.Errorf("PER_COLLECTION_TOP_K must be positive, got %d", c.PerCollectionTopK)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("MAX_ITERATIONS must be >= 1, got %d", c.MaxIterations)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE_SCORE must be in [0,1], got %g", c.MinConfidence)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}
