// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for ragrun.

package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdIngest
	CmdHistory
	CmdPrompts
	CmdLibrary
	CmdConfig
	CmdModels
	CmdGraph
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdAsk:     "ask",
	CmdChat:    "chat",
	CmdIngest:  "ingest",
	CmdHistory: "history",
	CmdPrompts: "prompts",
	CmdLibrary: "library",
	CmdConfig:  "config",
	CmdModels:  "models",
	CmdGraph:   "graph",
	CmdVersion: "version",
	CmdHelp:    "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool
	Model   string

	// Name is the command word as typed.
	Name string

	// Raw holds the arguments after the command word, global flags removed.
	Raw []string
}

const usageText = `ragrun - adaptive RAG over your documents with a local LLM

Ask questions about a PDF, DOCX, text file or web page. Answers come from
the document when it is relevant and from a web search otherwise, and each
answer is checked for hallucination before it is shown.

Usage:
  ragrun [tui] [-f <doc>]         Start the TUI (default)
  ragrun ask -f <doc> "question"  Ask a single question
  ragrun chat -f <doc>            Interactive chat
  ragrun ingest <doc>             Index a document and show statistics
  ragrun history [subcommand]     Chat history
  ragrun prompts [subcommand]     Workflow prompt templates
  ragrun library [subcommand]     Saved prompt library
  ragrun config [subcommand]      Configuration
  ragrun models                   List installed Ollama models
  ragrun graph                    Print the workflow graph (Mermaid)
  ragrun version                  Show version
  ragrun help                     Show this help

Ask & Chat:
  -f, --file <path|url>           Document to ingest first
  --max-retries N                 Generation retry budget (default: config)
  --store flat|hnsw               Vector store for this run
  --watch                         (chat, tui) Re-ingest when the file changes

History:
  ragrun history list [--filter TEXT]
  ragrun history show <id> [--markdown]
  ragrun history export <id> [file] [--format md|json|html] [--graph]
  ragrun history rename <id> <title>
  ragrun history delete <id>

Prompts:
  ragrun prompts show [name]
  ragrun prompts export [file]    Write the templates as YAML
  ragrun prompts import <file>    Load YAML templates into the config
  ragrun prompts reset            Restore the built-in templates

Library:
  ragrun library list
  ragrun library add [--title T] [--prompt P]
  ragrun library update <id> [--title T] [--prompt P]
  ragrun library delete <id>

Config:
  ragrun config show
  ragrun config get <key>
  ragrun config set <key> <value>
  ragrun config path

Global Options:
  --model <name>                  Override the Ollama chat model
  -q, --quiet                     Suppress progress output
  -v, --verbose                   Debug logging
  --json                          Machine-readable output

Environment:
  RAGRUN_MODEL, RAGRUN_OLLAMA_URL, RAGRUN_EMBEDDING_MODEL, TAVILY_API_KEY,
  NO_COLOR, FORCE_COLOR
`

// PrintUsage prints the help text.
func PrintUsage() {
	fmt.Print(usageText)
}

// VersionData is the --json output of "ragrun version".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// PrintVersion prints version information.
func PrintVersion(args Args) error {
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.JSON {
		return NewJSONResponse("version", data).Print()
	}
	fmt.Printf("ragrun %s\n", data.Version)
	fmt.Printf("  Commit:   %s\n", data.GitCommit)
	fmt.Printf("  Built:    %s\n", data.BuildDate)
	fmt.Printf("  Go:       %s\n", data.GoVersion)
	fmt.Printf("  Platform: %s\n", data.Platform)
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse splits argv (without the program name) into a command and its
// arguments. Global flags may appear anywhere.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	args.Name = remaining[0]
	args.Raw = remaining[1:]

	switch strings.ToLower(remaining[0]) {
	case "tui":
		return CmdTUI, args
	case "ask", "a":
		return CmdAsk, args
	case "chat", "c":
		return CmdChat, args
	case "ingest", "index":
		return CmdIngest, args
	case "history", "chats":
		return CmdHistory, args
	case "prompts", "prompt":
		return CmdPrompts, args
	case "library", "lib":
		return CmdLibrary, args
	case "config", "cfg":
		return CmdConfig, args
	case "models", "model":
		return CmdModels, args
	case "graph", "diagram":
		return CmdGraph, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags removes the global flags from args. Everything after
// "--" is left untouched.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--model" || arg == "-m":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd and returns the process exit code.
func Run(ctx context.Context, cmd Command, args Args) int {
	var err error
	switch cmd {
	case CmdAsk:
		err = HandleAsk(ctx, args)
	case CmdChat:
		err = HandleChat(ctx, args)
	case CmdIngest:
		err = HandleIngest(ctx, args)
	case CmdHistory:
		err = HandleHistory(ctx, args)
	case CmdPrompts:
		err = HandlePrompts(ctx, args)
	case CmdLibrary:
		err = HandleLibrary(ctx, args)
	case CmdConfig:
		err = HandleConfig(ctx, args)
	case CmdModels:
		err = HandleModels(ctx, args)
	case CmdGraph:
		err = HandleGraph(args)
	case CmdVersion:
		err = PrintVersion(args)
	case CmdHelp:
		PrintUsage()
	case CmdTUI:
		err = HandleTUI(ctx, args)
	default:
		err = NewValidationErrorWithExample("command", args.Name, "unknown command", "ragrun help")
	}

	if err != nil {
		var printed silentError
		if !errors.As(err, &printed) {
			DisplayError(cmd.String(), err, args.JSON)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}
