// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// progress.go - Progress lines for ingestion and workflow runs, on stderr.

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// progressPrinter writes progress to stderr. It is silent in quiet and JSON
// mode so stdout carries only the result.
type progressPrinter struct {
	w       io.Writer
	enabled bool
	inPlace bool // rewrite the embedding line with \r
}

func newProgressPrinter(args Args) *progressPrinter {
	return &progressPrinter{
		w:       os.Stderr,
		enabled: !args.Quiet && !args.JSON,
		inPlace: IsStderrTTY(),
	}
}

// Ingest prints one ingestion event.
func (p *progressPrinter) Ingest(e ingest.Event) {
	if !p.enabled {
		return
	}
	name := e.Path
	if name != "" {
		name = filepath.Base(name)
	}
	switch e.Stage {
	case ingest.StageStarted:
		fmt.Fprintf(p.w, "%s %s\n", StepStyle.Render("[ingest]"), name)
	case ingest.StageLoaded:
		fmt.Fprintf(p.w, "  loaded %d document(s)\n", e.Total)
	case ingest.StageSplit:
		fmt.Fprintf(p.w, "  split into %d chunks\n", e.Total)
	case ingest.StageEmbedded:
		if p.inPlace {
			fmt.Fprintf(p.w, "\r  embedded %d/%d", e.Done, e.Total)
			if e.Done == e.Total {
				fmt.Fprintln(p.w)
			}
		} else if e.Done == e.Total {
			fmt.Fprintf(p.w, "  embedded %d/%d\n", e.Done, e.Total)
		}
	case ingest.StageFinished:
		r := e.Result
		fmt.Fprintf(p.w, "  %s %d chunks in %s store (%s)\n",
			SuccessStyle.Render("ready:"), r.Chunks, r.Store, formatDurationShort(r.Elapsed))
	case ingest.StageFailed:
		fmt.Fprintf(p.w, "  %s %v\n", ErrorStyle.Render("failed:"), e.Err)
	}
}

// Step prints one completed workflow node.
func (p *progressPrinter) Step(s workflow.Step) {
	if !p.enabled {
		return
	}
	line := fmt.Sprintf("%s %s", StepStyle.Render("[step]"), s.Node)
	if s.Decision != "" {
		line += DimStyle.Render(" -> " + s.Decision)
	}
	if s.Node == workflow.NodeGradeDocuments || s.Node == workflow.NodeRetrieve || s.Node == workflow.NodeWebsearch {
		line += DimStyle.Render(fmt.Sprintf(" (%d docs)", s.Documents))
	}
	if s.LoopStep > 0 {
		line += DimStyle.Render(fmt.Sprintf(" [retry %d]", s.LoopStep))
	}
	fmt.Fprintln(p.w, line+DimStyle.Render(" "+formatDurationShort(s.Elapsed)))
}
