// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - "ragrun models" and "ragrun graph".

package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/ragrun/internal/config"
	"github.com/jeranaias/ragrun/internal/ollama"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// ModelEntry is one row of "ragrun models".
type ModelEntry struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	Installed  bool   `json:"installed"`
	Role       string `json:"role"`
	Selected   bool   `json:"selected"`
}

// HandleModels lists the installed Ollama models and the suggested ones.
func HandleModels(ctx context.Context, args Args) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	svc, err := OpenServices(ctx, cfg, ServiceOptions{Model: args.Model, Verbose: args.Verbose})
	if err != nil {
		return err
	}
	defer svc.Close()

	installed, err := svc.Ollama.ListModels(ctx)
	if err != nil {
		return err
	}
	entries := modelEntries(cfg, installed)

	if args.JSON {
		return NewJSONResponse("models", entries).Print()
	}

	fmt.Println(TitleStyle.Render("Ollama models"))
	for _, e := range entries {
		mark := "  "
		if e.Selected {
			mark = SuccessStyle.Render("* ")
		}
		status := RenderStatus("installed")
		size := formatBytes(e.Size)
		if !e.Installed {
			status = RenderStatus("missing")
			size = DimStyle.Render("ollama pull " + e.Name)
		}
		fmt.Printf("%s%-34s %-10s %-10s %s\n", mark, e.Name, e.Role, status, size)
	}
	return nil
}

// modelEntries merges the installed models with the suggested chat and
// embedding models, installed first.
func modelEntries(cfg *config.Config, installed []ollama.ModelInfo) []ModelEntry {
	byName := make(map[string]*ModelEntry)
	var order []string
	add := func(name, role string) *ModelEntry {
		if e, ok := byName[name]; ok {
			if e.Role == "" {
				e.Role = role
			}
			return e
		}
		e := &ModelEntry{Name: name, Role: role}
		byName[name] = e
		order = append(order, name)
		return e
	}

	for _, m := range installed {
		e := add(m.Name, "")
		e.Installed = true
		e.Size = m.Size
		e.Parameters = m.Details.ParameterSize
	}
	for _, name := range config.SuggestedModels {
		add(name, "chat")
	}
	for _, name := range config.SuggestedEmbeddingModels {
		add(name, "embedding")
	}
	add(cfg.Local.OllamaModel, "chat").Selected = true
	add(cfg.Documents.EmbeddingModel, "embedding").Selected = true

	out := make([]ModelEntry, 0, len(order))
	for _, name := range order {
		e := byName[name]
		if e.Role == "" {
			e.Role = guessRole(name)
		}
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Installed && !out[j].Installed
	})
	return out
}

// guessRole labels an installed model that is not in the suggestion lists.
func guessRole(name string) string {
	n := strings.ToLower(name)
	if strings.Contains(n, "embed") || strings.HasPrefix(n, "bge") || strings.Contains(n, "minilm") {
		return "embedding"
	}
	return "chat"
}

// HandleGraph prints the workflow graph as Mermaid.
func HandleGraph(args Args) error {
	diagram := workflow.Diagram()
	if args.JSON {
		return NewJSONResponse("graph", map[string]string{"format": "mermaid", "diagram": diagram}).Print()
	}
	fmt.Println(diagram)
	return nil
}
