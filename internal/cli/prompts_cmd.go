// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// prompts_cmd.go - "ragrun prompts": the workflow prompt templates.
//
// Subcommands:
//
//	show [name]        Print one or all templates (default: list names)
//	export [file]      Write the effective templates as YAML (stdout by default)
//	import <file>      Validate a YAML file and save it as config overrides
//	reset              Drop all overrides
//
// Templates use {name} placeholders; {{ and }} are literal braces.

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/ragrun/internal/config"
	"github.com/jeranaias/ragrun/internal/prompts"
)

const promptsUsage = "ragrun prompts [show [name]|export [file]|import <file>|reset]"

// HandlePrompts runs "ragrun prompts".
func HandlePrompts(_ context.Context, args Args) error {
	p := NewArgParser(args.Raw)

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	set, err := effectivePrompts(cfg)
	if err != nil {
		return err
	}

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		return promptsList(args, cfg, set)
	case "show":
		return promptsShow(args, set, p.Positional(1))
	case "export":
		var b strings.Builder
		if err := set.WriteYAML(&b); err != nil {
			return err
		}
		return writeOutput(p.Positional(1), []byte(b.String()))
	case "import":
		path := p.Positional(1)
		if path == "" {
			return ErrMissingArgument("file", "ragrun prompts import my-prompts.yaml")
		}
		imported, err := prompts.ImportFile(path, set)
		if err != nil {
			return NewValidationError("prompt file", path, err.Error())
		}
		changed, err := savePrompts(cfg, imported)
		if err != nil {
			return err
		}
		return done(args, "prompts import",
			fmt.Sprintf("Imported %s (%d template(s) differ from the defaults)", path, changed),
			map[string]any{"file": path, "overrides": changed})
	case "reset":
		if _, err := savePrompts(cfg, prompts.Default()); err != nil {
			return err
		}
		return done(args, "prompts reset", "Prompt templates reset to the defaults.", map[string]bool{"reset": true})
	default:
		return ErrUnknownSubcommand("prompts", sub, promptsUsage)
	}
}

// effectivePrompts returns the defaults with the config overrides applied.
func effectivePrompts(cfg *config.Config) (prompts.Set, error) {
	set, err := prompts.Default().Merge(cfg.Prompts.Overrides())
	if err != nil {
		return set, NewValidationError("prompts", "", err.Error())
	}
	return set, nil
}

// savePrompts stores the templates of set that differ from the defaults in
// the [prompts] section and saves the config.
func savePrompts(cfg *config.Config, set prompts.Set) (int, error) {
	cfg.Prompts = config.PromptsConfig{}
	overrides := set.Overrides()
	for name, tmpl := range overrides {
		if err := cfg.Set("prompts."+name, tmpl); err != nil {
			return 0, err
		}
	}
	if err := config.Save(cfg); err != nil {
		return 0, WrapError(err, "save config")
	}
	return len(overrides), nil
}

func promptsList(args Args, cfg *config.Config, set prompts.Set) error {
	overrides := cfg.Prompts.Overrides()
	type entry struct {
		Name         string   `json:"name"`
		Overridden   bool     `json:"overridden"`
		Placeholders []string `json:"placeholders"`
	}
	var entries []entry
	for _, name := range prompts.Names() {
		tmpl, _ := set.Get(name)
		_, over := overrides[name]
		entries = append(entries, entry{Name: name, Overridden: over, Placeholders: prompts.Placeholders(tmpl)})
	}
	if args.JSON {
		return NewJSONResponse("prompts list", entries).Print()
	}

	fmt.Println(TitleStyle.Render("Workflow prompts"))
	for _, e := range entries {
		state := DimStyle.Render("default")
		if e.Overridden {
			state = WarningStyle.Render("override")
		}
		vars := "-"
		if len(e.Placeholders) > 0 {
			vars = "{" + strings.Join(e.Placeholders, "} {") + "}"
		}
		fmt.Printf("  %-34s %-9s %s\n", e.Name, state, DimStyle.Render(vars))
	}
	return nil
}

func promptsShow(args Args, set prompts.Set, name string) error {
	names := prompts.Names()
	if name != "" {
		if _, err := set.Get(name); err != nil {
			return NewNotFoundError("prompt template", name)
		}
		names = []string{name}
	}

	if args.JSON {
		out := make(map[string]string, len(names))
		for _, n := range names {
			out[n], _ = set.Get(n)
		}
		return NewJSONResponse("prompts show", out).Print()
	}
	for _, n := range names {
		tmpl, _ := set.Get(n)
		fmt.Println(SectionStyle.Render(n))
		fmt.Println(tmpl)
	}
	return nil
}
