// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ingest_cmd.go - "ragrun ingest": index a document and report statistics.
//
// Examples:
//
//	ragrun ingest report.pdf
//	ragrun ingest https://example.com/article --store hnsw --json
//	ragrun ingest notes.md --chunk-size 500 --chunk-overlap 50

package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jeranaias/ragrun/internal/ingest"
)

// HandleIngest runs "ragrun ingest".
func HandleIngest(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	path := p.Positional(0)
	if path == "" {
		path = p.Flag("file", "f")
	}
	if path == "" {
		return ErrMissingArgument("path", "ragrun ingest report.pdf")
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	opts, err := parseAskOptions(p)
	if err != nil {
		return err
	}
	applyAskOptions(cfg, opts)
	if n, ok, err := p.FlagInt("chunk-size"); err != nil {
		return err
	} else if ok {
		cfg.Documents.ChunkSize = n
	}
	if n, ok, err := p.FlagInt("chunk-overlap"); err != nil {
		return err
	} else if ok {
		cfg.Documents.ChunkOverlap = n
	}
	if m := p.Flag("embedding-model", "e"); m != "" {
		cfg.Documents.EmbeddingModel = m
	}

	svc, err := OpenServices(ctx, cfg, ServiceOptions{
		Model:    args.Model,
		Verbose:  args.Verbose,
		Workflow: true,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	progress := newProgressPrinter(args)
	res, err := svc.Pipeline.Run(ctx, ingest.Request{
		Path:     path,
		Settings: svc.Settings(),
		Progress: progress.Ingest,
	})
	if err != nil {
		return err
	}

	data := ingestData(res)
	if args.JSON {
		return NewJSONResponse("ingest", data).Print()
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Index ready"))
	fmt.Println(RenderField("Source", data.Path))
	if st, err := os.Stat(path); err == nil {
		fmt.Println(RenderField("Size", formatBytes(st.Size())))
	}
	fmt.Println(RenderField("Documents", strconv.Itoa(data.Documents)))
	fmt.Println(RenderField("Chunks", strconv.Itoa(data.Chunks)))
	fmt.Println(RenderField("Tokens", strconv.Itoa(data.Tokens)))
	if data.Chunks > 0 {
		fmt.Println(RenderField("Avg tokens/chunk", strconv.Itoa(data.Tokens/data.Chunks)))
	}
	fmt.Println(RenderField("Vector store", data.Store))
	fmt.Println(RenderField("Embedding model", data.EmbeddingModel))
	fmt.Println(RenderField("Finish reason", RenderStatus(data.FinishReason)))
	fmt.Println(RenderField("Elapsed", formatDurationShort(res.Elapsed)))
	return nil
}
