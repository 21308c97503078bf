// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/ragrun/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ragrun configuration.
type Config struct {
	Version      string `toml:"version" json:"version"`
	DefaultModel string `toml:"default_model" json:"default_model"`

	Local     LocalConfig     `toml:"local" json:"local"`
	Documents DocumentsConfig `toml:"documents" json:"documents"`
	Workflow  WorkflowConfig  `toml:"workflow" json:"workflow"`
	WebSearch WebSearchConfig `toml:"websearch" json:"websearch"`
	Prompts   PromptsConfig   `toml:"prompts" json:"prompts"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Metrics   MetricsConfig   `toml:"metrics" json:"metrics"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// LocalConfig holds settings for the local Ollama runtime.
type LocalConfig struct {
	OllamaURL          string  `toml:"ollama_url" json:"ollama_url"`
	OllamaModel        string  `toml:"ollama_model" json:"ollama_model"`
	Temperature        float64 `toml:"temperature" json:"temperature"`
	NumCtx             int     `toml:"num_ctx" json:"num_ctx"`
	RequestTimeoutSecs int     `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// DocumentsConfig controls how documents are split, embedded and indexed.
type DocumentsConfig struct {
	EmbeddingModel   string `toml:"embedding_model" json:"embedding_model"`
	VectorStore      string `toml:"vector_store" json:"vector_store"`
	ChunkSize        int    `toml:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int    `toml:"chunk_overlap" json:"chunk_overlap"`
	RetrieveDocs     int    `toml:"retrieve_docs" json:"retrieve_docs"`
	EmbedConcurrency int    `toml:"embed_concurrency" json:"embed_concurrency"`
}

// WorkflowConfig bounds the adaptive RAG graph.
type WorkflowConfig struct {
	MaxRetries       int `toml:"max_retries" json:"max_retries"`
	GradeConcurrency int `toml:"grade_concurrency" json:"grade_concurrency"`
	MaxRunSteps      int `toml:"max_run_steps" json:"max_run_steps"`
}

// WebSearchConfig selects and tunes the web search fallback.
type WebSearchConfig struct {
	Provider          string `toml:"provider" json:"provider"`
	TavilyAPIKey      string `toml:"tavily_api_key" json:"tavily_api_key"`
	SearchResults     int    `toml:"search_results" json:"search_results"`
	RequestsPerMinute int    `toml:"requests_per_minute" json:"requests_per_minute"`
	TimeoutSecs       int    `toml:"timeout_secs" json:"timeout_secs"`
}

// PromptsConfig overrides the built-in workflow prompt templates.
// An empty field keeps the default.
type PromptsConfig struct {
	RouterInstruction              string `toml:"router_instruction" json:"router_instruction"`
	DocGraderInstruction           string `toml:"doc_grader_instruction" json:"doc_grader_instruction"`
	DocGraderPrompt                string `toml:"doc_grader_prompt" json:"doc_grader_prompt"`
	RAGPrompt                      string `toml:"rag_prompt" json:"rag_prompt"`
	HallucinationGraderInstruction string `toml:"hallucination_grader_instruction" json:"hallucination_grader_instruction"`
	HallucinationGraderPrompt      string `toml:"hallucination_grader_prompt" json:"hallucination_grader_prompt"`
	AnswerGraderInstruction        string `toml:"answer_grader_instruction" json:"answer_grader_instruction"`
	AnswerGraderPrompt             string `toml:"answer_grader_prompt" json:"answer_grader_prompt"`
}

// StorageConfig locates the chat history database.
type StorageConfig struct {
	DatabasePath string `toml:"database_path" json:"database_path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	ListenAddr string `toml:"listen_addr" json:"listen_addr"`
}

// UIConfig holds TUI preferences.
type UIConfig struct {
	Theme       string `toml:"theme" json:"theme"`
	WordWrap    int    `toml:"word_wrap" json:"word_wrap"`
	ShowElapsed bool   `toml:"show_elapsed" json:"show_elapsed"`
}

// Known model names offered by the setup screens. Any installed Ollama model
// is accepted.
var (
	SuggestedModels = []string{
		"llama3.2:3b-instruct-fp16",
		"llama3.2:3b-text-fp16",
		"gemma2:27b",
	}
	SuggestedEmbeddingModels = []string{
		"nomic-embed-text",
		"bge-m3",
		"bge-base-en-v1.5",
		"bge-small-en",
	}
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	dbPath := "myaiagent.db"
	if dir, err := ConfigDir(); err == nil {
		dbPath = filepath.Join(dir, "myaiagent.db")
	}

	return &Config{
		Version:      "1.0.0",
		DefaultModel: "llama3.2:3b-instruct-fp16",

		Local: LocalConfig{
			OllamaURL:          "http://127.0.0.1:11434",
			OllamaModel:        "llama3.2:3b-instruct-fp16",
			Temperature:        0,
			NumCtx:             8192,
			RequestTimeoutSecs: 120,
		},

		Documents: DocumentsConfig{
			EmbeddingModel:   "nomic-embed-text",
			VectorStore:      "flat",
			ChunkSize:        1000,
			ChunkOverlap:     200,
			RetrieveDocs:     3,
			EmbedConcurrency: 4,
		},

		Workflow: WorkflowConfig{
			MaxRetries:       3,
			GradeConcurrency: 4,
			MaxRunSteps:      50,
		},

		WebSearch: WebSearchConfig{
			Provider:          "duckduckgo",
			SearchResults:     3,
			RequestsPerMinute: 30,
			TimeoutSecs:       15,
		},

		Storage: StorageConfig{
			DatabasePath: dbPath,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},

		UI: UIConfig{
			Theme:       "dark",
			WordWrap:    80,
			ShowElapsed: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ragrun configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ragrun"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions tightens a config file to 0600. The file may hold
// a Tavily API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.ragrun. TOML is tried first, then JSON,
// then built-in defaults. Environment overrides are applied last.
//
// When a config file exists but cannot be decoded, the defaults are returned
// together with the decode error so callers can warn and continue.
func Load() (*Config, error) {
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg, err := LoadFromPath(tomlPath)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	if loadErr == nil {
		if jsonPath, err := ConfigPathJSON(); err == nil {
			if _, statErr := os.Stat(jsonPath); statErr == nil {
				cfg, err := LoadFromPath(jsonPath)
				if err == nil {
					return cfg, nil
				}
				loadErr = err
			}
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path. Values missing
// from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# ragrun configuration file\n")
	buf.WriteString("# Generated by ragrun - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// NormalizeVectorStore maps a vector store name, including the legacy
// "sklearn" and "faiss" names, to "flat" or "hnsw". Unknown names are
// returned lower-cased and unchanged.
func NormalizeVectorStore(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "sklearn", "flat", "exact":
		return "flat"
	case "faiss", "hnsw":
		return "hnsw"
	default:
		return n
	}
}

// Validate checks the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Local
	if c.Local.OllamaURL != "" {
		u, err := url.Parse(c.Local.OllamaURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("local.ollama_url", "invalid URL '%s', must be http(s)://host[:port]", c.Local.OllamaURL)
		}
	}
	if c.Local.Temperature < 0 || c.Local.Temperature > 2 {
		add("local.temperature", "must be between 0 and 2, got %g", c.Local.Temperature)
	}
	if c.Local.NumCtx < 0 {
		add("local.num_ctx", "must not be negative, got %d", c.Local.NumCtx)
	}
	if c.Local.RequestTimeoutSecs < 0 {
		add("local.request_timeout_secs", "must not be negative, got %d", c.Local.RequestTimeoutSecs)
	}

	// Documents
	switch NormalizeVectorStore(c.Documents.VectorStore) {
	case "flat", "hnsw":
	default:
		add("documents.vector_store", "invalid store '%s', must be one of: flat, hnsw (or sklearn, faiss)", c.Documents.VectorStore)
	}
	if c.Documents.ChunkSize < 1 {
		add("documents.chunk_size", "must be at least 1, got %d", c.Documents.ChunkSize)
	}
	if c.Documents.ChunkOverlap < 0 {
		add("documents.chunk_overlap", "must not be negative, got %d", c.Documents.ChunkOverlap)
	} else if c.Documents.ChunkOverlap >= c.Documents.ChunkSize && c.Documents.ChunkSize > 0 {
		add("documents.chunk_overlap", "must be smaller than chunk_size (%d), got %d", c.Documents.ChunkSize, c.Documents.ChunkOverlap)
	}
	if c.Documents.RetrieveDocs < 1 || c.Documents.RetrieveDocs > 100 {
		add("documents.retrieve_docs", "must be between 1 and 100, got %d", c.Documents.RetrieveDocs)
	}
	if c.Documents.EmbedConcurrency < 1 || c.Documents.EmbedConcurrency > 64 {
		add("documents.embed_concurrency", "must be between 1 and 64, got %d", c.Documents.EmbedConcurrency)
	}

	// Workflow
	if c.Workflow.MaxRetries < 1 || c.Workflow.MaxRetries > 20 {
		add("workflow.max_retries", "must be between 1 and 20, got %d", c.Workflow.MaxRetries)
	}
	if c.Workflow.GradeConcurrency < 1 || c.Workflow.GradeConcurrency > 64 {
		add("workflow.grade_concurrency", "must be between 1 and 64, got %d", c.Workflow.GradeConcurrency)
	}
	if c.Workflow.MaxRunSteps < 5 {
		add("workflow.max_run_steps", "must be at least 5, got %d", c.Workflow.MaxRunSteps)
	}

	// Web search
	// Tavily without a key is allowed: the searcher falls back to DuckDuckGo.
	switch strings.ToLower(c.WebSearch.Provider) {
	case "tavily", "duckduckgo":
	default:
		add("websearch.provider", "invalid provider '%s', must be one of: tavily, duckduckgo", c.WebSearch.Provider)
	}
	if c.WebSearch.SearchResults < 1 || c.WebSearch.SearchResults > 20 {
		add("websearch.search_results", "must be between 1 and 20, got %d", c.WebSearch.SearchResults)
	}
	if c.WebSearch.RequestsPerMinute < 0 {
		add("websearch.requests_per_minute", "must not be negative, got %d", c.WebSearch.RequestsPerMinute)
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		add("logging.format", "invalid format '%s', must be one of: console, json", c.Logging.Format)
	}

	// UI
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative, got %d", c.UI.WordWrap)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults and normalizes enum-like
// fields. It never overwrites a value the user set.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Local.OllamaModel == "" {
		c.Local.OllamaModel = c.DefaultModel
	}
	if c.DefaultModel == "" {
		c.DefaultModel = c.Local.OllamaModel
	}
	if c.DefaultModel == "" {
		c.DefaultModel = d.DefaultModel
		c.Local.OllamaModel = d.Local.OllamaModel
	}
	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = d.Local.OllamaURL
	}
	if c.Local.RequestTimeoutSecs == 0 {
		c.Local.RequestTimeoutSecs = d.Local.RequestTimeoutSecs
	}

	if c.Documents.EmbeddingModel == "" {
		c.Documents.EmbeddingModel = d.Documents.EmbeddingModel
	}
	if c.Documents.VectorStore == "" {
		c.Documents.VectorStore = d.Documents.VectorStore
	}
	c.Documents.VectorStore = NormalizeVectorStore(c.Documents.VectorStore)
	if c.Documents.ChunkSize == 0 {
		c.Documents.ChunkSize = d.Documents.ChunkSize
	}
	if c.Documents.RetrieveDocs == 0 {
		c.Documents.RetrieveDocs = d.Documents.RetrieveDocs
	}
	if c.Documents.EmbedConcurrency == 0 {
		c.Documents.EmbedConcurrency = d.Documents.EmbedConcurrency
	}

	if c.Workflow.MaxRetries == 0 {
		c.Workflow.MaxRetries = d.Workflow.MaxRetries
	}
	if c.Workflow.GradeConcurrency == 0 {
		c.Workflow.GradeConcurrency = d.Workflow.GradeConcurrency
	}
	if c.Workflow.MaxRunSteps == 0 {
		c.Workflow.MaxRunSteps = d.Workflow.MaxRunSteps
	}

	if c.WebSearch.Provider == "" {
		c.WebSearch.Provider = d.WebSearch.Provider
	}
	c.WebSearch.Provider = strings.ToLower(c.WebSearch.Provider)
	if c.WebSearch.SearchResults == 0 {
		c.WebSearch.SearchResults = d.WebSearch.SearchResults
	}
	if c.WebSearch.TimeoutSecs == 0 {
		c.WebSearch.TimeoutSecs = d.WebSearch.TimeoutSecs
	}

	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = d.Storage.DatabasePath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = d.Metrics.ListenAddr
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - RAGRUN_MODEL: overrides default_model and local.ollama_model
//   - RAGRUN_OLLAMA_URL: overrides local.ollama_url
//   - RAGRUN_EMBEDDING_MODEL: overrides documents.embedding_model
//   - RAGRUN_LOG_LEVEL: overrides logging.level
//   - TAVILY_API_KEY, RAGRUN_TAVILY_API_KEY: override websearch.tavily_api_key
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("RAGRUN_MODEL"); model != "" {
		c.DefaultModel = model
		c.Local.OllamaModel = model
	}
	if u := os.Getenv("RAGRUN_OLLAMA_URL"); u != "" {
		c.Local.OllamaURL = u
	}
	if model := os.Getenv("RAGRUN_EMBEDDING_MODEL"); model != "" {
		c.Documents.EmbeddingModel = model
	}
	if level := os.Getenv("RAGRUN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		c.WebSearch.TavilyAPIKey = key
	}
	if key := os.Getenv("RAGRUN_TAVILY_API_KEY"); key != "" {
		c.WebSearch.TavilyAPIKey = key
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "documents.chunk_size").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			switch strings.ToLower(strings.TrimSpace(strVal)) {
			case "1", "true", "yes", "on":
				field.SetBool(true)
			case "0", "false", "no", "off":
				field.SetBool(false)
			default:
				return fmt.Errorf("invalid boolean value: %q", strVal)
			}
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation, derived from the
// toml tags.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("toml"), ",")[0]
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// =============================================================================
// PROMPT OVERRIDES
// =============================================================================

// Overrides returns the non-empty prompt overrides keyed by template name.
func (p PromptsConfig) Overrides() map[string]string {
	out := make(map[string]string)
	v := reflect.ValueOf(p)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if s := v.Field(i).String(); strings.TrimSpace(s) != "" {
			out[t.Field(i).Tag.Get("toml")] = s
		}
	}
	return out
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a copy of the configuration. All fields are values, so a
// struct copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.WebSearch.TavilyAPIKey != "" {
		safe.WebSearch.TavilyAPIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
