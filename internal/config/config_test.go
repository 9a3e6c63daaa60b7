package config

import (
	"strings"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "AGENT_MODEL", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"TOP_K", "PER_COLLECTION_TOP_K", "MAX_ITERATIONS",
		"REFLECTION_ENABLED", "MIN_CONFIDENCE_SCORE",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 5 || cfg.PerCollectionTopK != 3 {
		t.Errorf("retrieval defaults = %d/%d", cfg.TopK, cfg.PerCollectionTopK)
	}
	if cfg.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d", cfg.MaxIterations)
	}
	if !cfg.ReflectionEnabled {
		t.Error("reflection should default on")
	}
	if cfg.MinConfidence != 0.7 {
		t.Errorf("MinConfidence = %v", cfg.MinConfidence)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("MAX_ITERATIONS", "2")
	t.Setenv("REFLECTION_ENABLED", "false")
	t.Setenv("MIN_CONFIDENCE_SCORE", "0.9")

	cfg := FromEnv()
	if cfg.Provider != "anthropic" || cfg.MaxIterations != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.ReflectionEnabled {
		t.Error("REFLECTION_ENABLED=false not applied")
	}
	if cfg.MinConfidence != 0.9 {
		t.Errorf("MinConfidence = %v", cfg.MinConfidence)
	}
}

func validTestConfig() *Config {
	return &Config{
		Provider:          "openai",
		OpenAIKey:         "sk-test",
		ChunkSize:         1000,
		ChunkOverlap:      200,
		TopK:              5,
		PerCollectionTopK: 3,
		MaxIterations:     5,
		MinConfidence:     0.7,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing openai key", func(c *Config) { c.OpenAIKey = "" }, "OPENAI_API_KEY"},
		{"missing anthropic key", func(c *Config) { c.Provider = "anthropic" }, "ANTHROPIC_API_KEY"},
		{"unknown provider", func(c *Config) { c.Provider = "llama-at-home" }, "LLM_PROVIDER"},
		{"overlap not below chunk size", func(c *Config) { c.ChunkOverlap = 1000 }, "CHUNK_OVERLAP"},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "CHUNK_SIZE"},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }, "MAX_ITERATIONS"},
		{"zero top k", func(c *Config) { c.TopK = 0 }, "TOP_K"},
		{"confidence out of range", func(c *Config) { c.MinConfidence = 1.5 }, "MIN_CONFIDENCE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
