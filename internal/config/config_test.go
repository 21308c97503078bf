// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DEFAULT AND VALIDATION TESTS
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Local.OllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("Local.OllamaURL = %q", cfg.Local.OllamaURL)
	}
	if cfg.Documents.VectorStore != "flat" {
		t.Errorf("Documents.VectorStore = %q, want 'flat'", cfg.Documents.VectorStore)
	}
	if cfg.Workflow.MaxRetries != 3 {
		t.Errorf("Workflow.MaxRetries = %d, want 3", cfg.Workflow.MaxRetries)
	}
	if !strings.HasSuffix(cfg.Storage.DatabasePath, "myaiagent.db") {
		t.Errorf("Storage.DatabasePath = %q, want suffix myaiagent.db", cfg.Storage.DatabasePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad ollama url", func(c *Config) { c.Local.OllamaURL = "ftp://x" }, "local.ollama_url"},
		{"unknown store", func(c *Config) { c.Documents.VectorStore = "chroma" }, "documents.vector_store"},
		{"overlap too large", func(c *Config) { c.Documents.ChunkOverlap = c.Documents.ChunkSize }, "documents.chunk_overlap"},
		{"zero chunk size", func(c *Config) { c.Documents.ChunkSize = 0 }, "documents.chunk_size"},
		{"retrieve docs zero", func(c *Config) { c.Documents.RetrieveDocs = 0 }, "documents.retrieve_docs"},
		{"max retries zero", func(c *Config) { c.Workflow.MaxRetries = 0 }, "workflow.max_retries"},
		{"unknown provider", func(c *Config) { c.WebSearch.Provider = "bing" }, "websearch.provider"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			found := false
			for _, ve := range verrs {
				if ve.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected error on %s, got %v", tt.field, err)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Documents.RetrieveDocs = 0
	cfg.Workflow.MaxRetries = 0

	var verrs ValidateErrors
	require.ErrorAs(t, cfg.Validate(), &verrs)
	assert.Len(t, verrs, 2)
}

func TestConfig_ValidateAllowsTavilyWithoutKey(t *testing.T) {
	cfg := Default()
	cfg.WebSearch.Provider = "tavily"
	cfg.WebSearch.TavilyAPIKey = ""

	assert.NoError(t, cfg.Validate(), "a missing key falls back to duckduckgo at search time")
}

func TestNormalizeVectorStore(t *testing.T) {
	tests := map[string]string{
		"SKLearn": "flat",
		"flat":    "flat",
		"FAISS":   "hnsw",
		"hnsw":    "hnsw",
		" other ": "other",
	}
	for in, want := range tests {
		if got := NormalizeVectorStore(in); got != want {
			t.Errorf("NormalizeVectorStore(%q) = %q, want %q", in, got, want)
		}
	}
}

// =============================================================================
// LOAD/SAVE TESTS
// =============================================================================

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[documents]
vector_store = "faiss"
chunk_size = 500
chunk_overlap = 50

[workflow]
max_retries = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "hnsw", cfg.Documents.VectorStore)
	assert.Equal(t, 500, cfg.Documents.ChunkSize)
	assert.Equal(t, 50, cfg.Documents.ChunkOverlap)
	assert.Equal(t, 2, cfg.Workflow.MaxRetries)
	assert.Equal(t, 3, cfg.Documents.RetrieveDocs)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Local.OllamaURL)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[documents]\nchunk_size = 10\nchunk_overlap = 20\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Documents.ChunkSize = 750
	cfg.Prompts.RAGPrompt = "Context: {context}\nQ: {question}"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 750, loaded.Documents.ChunkSize)
	assert.Equal(t, cfg.Prompts.RAGPrompt, loaded.Prompts.RAGPrompt)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RAGRUN_MODEL", "gemma2:27b")
	t.Setenv("RAGRUN_OLLAMA_URL", "http://10.0.0.2:11434")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "gemma2:27b", cfg.DefaultModel)
	assert.Equal(t, "gemma2:27b", cfg.Local.OllamaModel)
	assert.Equal(t, "http://10.0.0.2:11434", cfg.Local.OllamaURL)
	assert.Equal(t, "tvly-test", cfg.WebSearch.TavilyAPIKey)
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("documents.chunk_size", "512"))
	v, err := cfg.Get("documents.chunk_size")
	require.NoError(t, err)
	assert.Equal(t, 512, v)

	require.NoError(t, cfg.Set("websearch.tavily_api_key", "k"))
	assert.Equal(t, "k", cfg.WebSearch.TavilyAPIKey)

	require.NoError(t, cfg.Set("metrics.enabled", "yes"))
	assert.True(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Set("local.temperature", "0.7"))
	assert.InDelta(t, 0.7, cfg.Local.Temperature, 1e-9)

	assert.Error(t, cfg.Set("documents.chunk_size", "many"))
	assert.Error(t, cfg.Set("metrics.enabled", "maybe"))
	assert.Error(t, cfg.Set("nope.field", "1"))
	_, err = cfg.Get("documents")
	assert.Error(t, err)
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	cfg := Default()

	for _, key := range keys {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
	assert.Contains(t, keys, "websearch.tavily_api_key")
	assert.Contains(t, keys, "prompts.answer_grader_prompt")
}

func TestPromptsConfig_Overrides(t *testing.T) {
	p := PromptsConfig{RAGPrompt: "x {context} {question}", RouterInstruction: "  "}
	got := p.Overrides()
	assert.Equal(t, map[string]string{"rag_prompt": "x {context} {question}"}, got)
}

func TestConfig_StringRedactsKey(t *testing.T) {
	cfg := Default()
	cfg.WebSearch.TavilyAPIKey = "tvly-secret"

	s := cfg.String()
	assert.NotContains(t, s, "tvly-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "tvly-secret", cfg.WebSearch.TavilyAPIKey)
}

// =============================================================================
// GLOBAL SINGLETON TESTS
// =============================================================================

// TestConfig_ConcurrentAccess checks Global and SetGlobal under -race.
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	SetGlobal(Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
