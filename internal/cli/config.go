// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - "ragrun config": view and modify ~/.ragrun/config.toml.
//
// Subcommands:
//
//	show (default)      Display the current configuration
//	get <key>           Print one value
//	set <key> <value>   Change one value and save
//	keys                List every key
//	reset               Restore the defaults
//	path                Show the config file location
//
// Keys use dot notation: documents.chunk_size, local.ollama_model,
// websearch.provider, workflow.max_retries.

package cli

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jeranaias/ragrun/internal/config"
)

const configUsage = "ragrun config [show|get <key>|set <key> <value>|keys|reset|path]"

// HandleConfig runs "ragrun config".
func HandleConfig(_ context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "show", "list":
		return configShow(args)
	case "get":
		return configGet(args, p.Positional(1))
	case "set":
		return configSet(args, p.Positional(1), JoinPositionalArgs(p, 2))
	case "keys":
		return configKeys(args)
	case "reset":
		return configReset(args)
	case "path":
		return configPath(args)
	default:
		return ErrUnknownSubcommand("config", sub, configUsage)
	}
}

func configShow(args Args) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if args.JSON {
		values := make(map[string]any)
		for _, key := range config.GetAllKeys() {
			v, _ := cfg.Get(key)
			values[key] = redact(key, v)
		}
		return NewJSONResponse("config show", values).Print()
	}

	fmt.Println(TitleStyle.Render("ragrun configuration"))
	section := ""
	for _, key := range config.GetAllKeys() {
		if s, _, ok := strings.Cut(key, "."); ok && s != section {
			section = s
			fmt.Println(SectionStyle.Render("[" + section + "]"))
		}
		v, _ := cfg.Get(key)
		_, name, _ := strings.Cut(key, ".")
		if name == "" {
			name = key
		}
		fmt.Printf("  %s %s\n", LabelStyle.UnsetWidth().Render(fmt.Sprintf("%-34s", name)), displayValue(key, v))
	}
	fmt.Println()
	return nil
}

func configGet(args Args, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "ragrun config get documents.chunk_size")
	}
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	v, err := cfg.Get(key)
	if err != nil {
		return NewNotFoundError("config key", key)
	}
	if args.JSON {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": redact(key, v)}).Print()
	}
	fmt.Println(redact(key, v))
	return nil
}

func configSet(args Args, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "ragrun config set workflow.max_retries 5")
	}
	if value == "" && !isStringKey(key) {
		return ErrMissingArgument("value", "ragrun config set "+key+" <value>")
	}
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return NewNotFoundError("config key", key)
		}
		return NewValidationError(key, value, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "save config")
	}

	if args.JSON {
		return NewJSONResponse("config set", map[string]any{"key": key, "value": redact(key, value)}).Print()
	}
	fmt.Printf("%s %s = %v\n", SuccessStyle.Render("Set"), key, redact(key, value))
	return nil
}

func configKeys(args Args) error {
	keys := config.GetAllKeys()
	if args.JSON {
		return NewJSONResponse("config keys", keys).Print()
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func configReset(args Args) error {
	cfg := config.Default()
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "save config")
	}
	if args.JSON {
		return NewJSONResponse("config reset", map[string]bool{"reset": true}).Print()
	}
	fmt.Println(SuccessStyle.Render("Configuration reset to defaults."))
	return nil
}

func configPath(args Args) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config path", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}

// redact hides secrets in displayed values.
func redact(key string, v any) any {
	if !strings.HasSuffix(key, "api_key") {
		return v
	}
	s := fmt.Sprint(v)
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// displayValue shortens prompt templates to a one-line summary.
func displayValue(key string, v any) string {
	if strings.HasPrefix(key, "prompts.") {
		if s := fmt.Sprint(v); s != "" {
			return ValueStyle.Render(fmt.Sprintf("(override, %d chars)", len(s)))
		}
		return DimStyle.Render("(default)")
	}
	return ValueStyle.Render(fmt.Sprint(redact(key, v)))
}

// isStringKey reports whether key names a string field, which may be
// cleared with an empty value.
func isStringKey(key string) bool {
	v, err := config.Default().Get(key)
	if err != nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.String
}
