// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ragrun.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - DocumentsConfig: Chunking, embedding and vector store settings
//   - WorkflowConfig: Retry and concurrency bounds for the RAG graph
//   - WebSearchConfig: Web search provider selection
//   - PromptsConfig: Overrides for the workflow prompt templates
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RAGRUN_*, TAVILY_API_KEY)
//   - ~/.ragrun/config.toml
//   - ~/.ragrun/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	size := cfg.Documents.ChunkSize
//	_ = cfg.Set("workflow.max_retries", "5")
package config
