// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - "ragrun ask": ingest a document and answer one question.
//
// Examples:
//
//	ragrun ask -f report.pdf "What are the key findings?"
//	ragrun ask -f https://example.com/post "Who wrote this?" --json
//	cat question.txt | ragrun ask -f notes.md
//
// The exchange is saved to the chat history unless --no-save is given.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/ragrun/internal/config"
	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/util"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// askOptions are the flags shared by ask and chat.
type askOptions struct {
	File       string
	MaxRetries int
	Store      string
	NoSave     bool
	Watch      bool
}

func parseAskOptions(p *ArgParser) (askOptions, error) {
	opts := askOptions{
		File:   p.Flag("file", "f"),
		Store:  p.Flag("store"),
		NoSave: p.BoolFlag("no-save"),
		Watch:  p.BoolFlag("watch", "w"),
	}
	n, ok, err := p.FlagInt("max-retries", "r")
	if err != nil {
		return opts, err
	}
	if ok {
		if n <= 0 {
			return opts, NewValidationError("max-retries", fmt.Sprint(n), "must be positive")
		}
		opts.MaxRetries = n
	}
	if opts.Store != "" {
		switch config.NormalizeVectorStore(opts.Store) {
		case "flat", "hnsw":
		default:
			return opts, NewValidationErrorWithExample("store", opts.Store, "unknown vector store", "--store flat")
		}
	}
	return opts, nil
}

// applyAskOptions copies flag overrides into cfg.
func applyAskOptions(cfg *config.Config, opts askOptions) {
	if opts.Store != "" {
		cfg.Documents.VectorStore = opts.Store
	}
	if opts.MaxRetries > 0 {
		cfg.Workflow.MaxRetries = opts.MaxRetries
	}
}

// HandleAsk runs "ragrun ask".
func HandleAsk(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "no-save", "watch", "w")
	opts, err := parseAskOptions(p)
	if err != nil {
		return err
	}

	question := strings.TrimSpace(JoinPositionalArgs(p, 0))
	if question == "" && !IsTTY() {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return WrapError(err, "read question from stdin")
		}
		question = strings.TrimSpace(string(b))
	}
	if question == "" {
		return ErrMissingArgument("question", `ragrun ask -f report.pdf "What is this about?"`)
	}
	if opts.File == "" {
		return session.ErrNotReady
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	applyAskOptions(cfg, opts)

	svc, err := OpenServices(ctx, cfg, ServiceOptions{
		Model:    args.Model,
		Verbose:  args.Verbose,
		Workflow: true,
		Metrics:  true,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	progress := newProgressPrinter(args)
	index, err := ingestAndWait(ctx, svc.Controller, opts.File, progress)
	if err != nil {
		return err
	}

	ctrl := svc.Controller
	if !opts.NoSave {
		chat, err := ctrl.NewChat(ctx)
		if err != nil {
			return err
		}
		if err := ctrl.RenameChat(ctx, chat.ID, util.OneLine(question, 60)); err != nil {
			return err
		}
		res, runErr := askViaController(ctx, ctrl, question, progress)
		return printAnswer(args, question, index, chat.ID, res, runErr)
	}

	res, runErr := svc.Workflow.Run(ctx, question, workflow.RunOptions{
		MaxRetries: opts.MaxRetries,
		Retriever:  index.Retriever,
		Hooks:      workflow.Hooks{OnStep: progress.Step},
	})
	return printAnswer(args, question, index, 0, res, runErr)
}

// ingestAndWait runs an ingestion through the controller and blocks until
// it reports a terminal stage.
func ingestAndWait(ctx context.Context, ctrl *session.Controller, path string, progress *progressPrinter) (*ingest.Result, error) {
	ctrl.Ingest(ctx, path)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case e := <-ctrl.IngestEvents():
			progress.Ingest(e)
			switch e.Stage {
			case ingest.StageFinished:
				return e.Result, nil
			case ingest.StageFailed:
				return nil, e.Err
			}
		}
	}
}

// askViaController submits question and waits for the run to finish. A
// canceled ctx force-stops the run; the partial answer is still returned.
func askViaController(ctx context.Context, ctrl *session.Controller, question string, progress *progressPrinter) (*workflow.Result, error) {
	if _, err := ctrl.Submit(ctx, question); err != nil {
		return nil, err
	}
	stop := ctx.Done()
	for {
		select {
		case <-stop:
			ctrl.Stop()
			stop = nil
		case e := <-ctrl.Events():
			switch e.Kind {
			case session.EventStep:
				progress.Step(e.Step)
			case session.EventFailed:
				return e.Result, e.Err
			case session.EventFinished:
				return e.Result, nil
			}
		}
	}
}

// printAnswer writes the result of one question. Runs that end without a
// supported answer are reported as errors after the partial output.
func printAnswer(args Args, question string, index *ingest.Result, chatID int64, res *workflow.Result, runErr error) error {
	if args.JSON {
		data := NewAskData(question, res)
		data.ChatID = chatID
		if index != nil {
			data.Index = ingestData(index)
		}
		if runErr != nil {
			if errors.Is(runErr, workflow.ErrNotSupported) {
				data.Answer = session.UnableToFindAnswer
			}
			resp := NewJSONErrorResponse("ask", runErr)
			resp.Data = data
			_ = resp.Print()
			return silentError{runErr}
		}
		return NewJSONResponse("ask", data).Print()
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, workflow.ErrForceStopped) && res != nil && res.Answer != "":
		fmt.Fprintln(os.Stderr, WarningStyle.Render("[stopped] partial answer:"))
	case errors.Is(runErr, workflow.ErrNotSupported):
		fmt.Println(session.UnableToFindAnswer)
		return runErr
	default:
		return runErr
	}

	fmt.Println()
	fmt.Print(renderMarkdown(res.Answer, 0))
	if !strings.HasSuffix(res.Answer, "\n") && !IsStdoutTTY() {
		fmt.Println()
	}
	if !args.Quiet {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, DimStyle.Render(storage.FinishLine(storage.Detail{
			Model:        res.Model,
			FinishReason: res.FinishReason,
			Elapsed:      res.Elapsed,
		})))
		for _, d := range res.Documents {
			fmt.Fprintf(os.Stderr, "%s %s\n", DimStyle.Render("  source:"), sourceLabel(d.Metadata))
		}
	}
	return runErr
}

func ingestData(r *ingest.Result) *IngestData {
	return &IngestData{
		Path:           r.Path,
		Documents:      r.Documents,
		Chunks:         r.Chunks,
		Tokens:         r.Tokens,
		Store:          r.Store,
		EmbeddingModel: r.Model,
		FinishReason:   r.FinishReason,
		ElapsedSecs:    r.Elapsed.Seconds(),
	}
}

// silentError carries an exit code for an error that was already printed.
type silentError struct{ err error }

func (e silentError) Error() string { return e.err.Error() }
func (e silentError) Unwrap() error { return e.err }
