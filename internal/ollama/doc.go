// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama runtime.
//
// The workflow uses three endpoints: /api/chat for generation and JSON-mode
// grading, /api/embed for document and query embeddings, and /api/tags for
// model discovery.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ChatRequest: Chat completion request with format and options
//   - ChatResponse: Completed response with model and done reason
//   - StreamReader: NDJSON reader for streaming chat responses
//   - ClientError: Typed error with ErrorType for handling
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: cfg.Local.OllamaURL})
//	resp, err := client.Chat(ctx, ollama.ChatRequest{
//	    Model:    "llama3.2:3b-instruct-fp16",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	    Format:   "json",
//	    Options:  &ollama.Options{Temperature: 0},
//	})
//
//	vectors, err := client.Embed(ctx, "nomic-embed-text", []string{"chunk one", "chunk two"})
package ollama
