// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ragrun commands other than the TUI.
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	if cmd != cli.CmdTUI {
//	    os.Exit(cli.Run(ctx, cmd, args))
//	}
//
// # Commands
//
//   - ask: ingest a document and answer one question
//   - chat: interactive REPL over a document
//   - ingest: index a document and print statistics
//   - history: list, show, export, rename and delete saved chats
//   - prompts: show, export, import and reset the workflow templates
//   - library: the saved prompt library
//   - config: show, get and set configuration values
//   - models: installed and suggested Ollama models
//   - graph: the workflow graph as Mermaid
//
// # Output
//
// Every command accepts --json. The response envelope is [JSONResponse] on
// stdout, and progress goes to stderr. Errors map to the Exit* codes
// through [GetExitCode].
package cli
