// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - "ragrun chat": an interactive REPL over one document.
//
// Examples:
//
//	ragrun chat -f handbook.pdf
//	ragrun chat -f notes.md --watch     # re-ingest when notes.md changes
//
// Ctrl+C during an answer force-stops it. Ctrl+C or Ctrl+D at the prompt
// exits.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/config"
	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlash)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(configDir, "chat_history")}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads one line, adding it to the history when non-empty.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (c *ChatCLI) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

type slashCommand struct {
	name  string
	args  string
	usage string
}

var slashCommands = []slashCommand{
	{"/help", "", "Show this help"},
	{"/new", "", "Start a new chat"},
	{"/chats", "[filter]", "List chats"},
	{"/open", "<id>", "Continue a saved chat"},
	{"/rename", "<title>", "Rename the current chat"},
	{"/delete", "[id]", "Delete a chat (default: current)"},
	{"/export", "[file]", "Export the current chat as markdown"},
	{"/retries", "<n>", "Set the generation retry budget"},
	{"/store", "flat|hnsw", "Vector store for the next ingestion"},
	{"/ingest", "<path|url>", "Index another document"},
	{"/status", "", "Show the index and settings"},
	{"/graph", "", "Print the workflow graph"},
	{"/exit", "", "Quit"},
}

func completeSlash(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, line) {
			out = append(out, c.name)
		}
	}
	return out
}

// chatREPL is the state of one chat session.
type chatREPL struct {
	svc      *Services
	ctrl     *session.Controller
	args     Args
	progress *progressPrinter
	out      io.Writer
}

// HandleChat runs "ragrun chat".
func HandleChat(ctx context.Context, args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	p := NewArgParser(args.Raw, "no-save", "watch", "w")
	opts, err := parseAskOptions(p)
	if err != nil {
		return err
	}
	if opts.File == "" {
		opts.File = p.Positional(0)
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

	if err := svc.Ollama.CheckRunning(ctx); err != nil {
		return err
	}

	r := &chatREPL{
		svc:      svc,
		ctrl:     svc.Controller,
		args:     args,
		progress: newProgressPrinter(args),
		out:      os.Stdout,
	}
	r.welcome()

	if opts.File != "" {
		if _, err := ingestAndWait(ctx, r.ctrl, opts.File, r.progress); err != nil {
			return err
		}
		if opts.Watch {
			go func() {
				req := ingest.Request{Path: opts.File, Settings: r.ctrl.Settings()}
				if err := svc.Job.Watch(ctx, req, ingest.DefaultDebounce); err != nil && ctx.Err() == nil {
					svc.Logger.Warn("watch stopped", zap.String("path", opts.File), zap.Error(err))
				}
			}()
			fmt.Fprintf(r.out, "%s\n", DimStyle.Render("Watching "+opts.File+" for changes."))
		}
	} else {
		fmt.Fprintln(r.out, WarningStyle.Render("No document loaded. Use /ingest <path> before asking."))
	}
	go r.reportIngestions(ctx)

	// Ctrl+C during a run reaches us as a signal; at the prompt liner
	// reports ErrPromptAborted instead.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if r.ctrl.Busy() {
				r.ctrl.Stop()
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Force Stop]"))
			}
		}
	}()

	input := NewChatCLI()
	defer input.Close()

	for {
		line, err := input.ReadInput(PromptStyle.Render("ragrun> "))
		if err != nil {
			fmt.Fprintln(r.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.slash(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if quit {
				return nil
			}
			continue
		}

		res, err := askViaController(ctx, r.ctrl, line, r.progress)
		r.printTurn(res, err)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *chatREPL) welcome() {
	if r.args.Quiet {
		return
	}
	cfg := r.svc.Config
	fmt.Fprintln(r.out, TitleStyle.Render("ragrun chat"))
	fmt.Fprintln(r.out, RenderField("Model", cfg.Local.OllamaModel))
	fmt.Fprintln(r.out, RenderField("Embeddings", cfg.Documents.EmbeddingModel))
	fmt.Fprintln(r.out, RenderField("Max retries", strconv.Itoa(cfg.Workflow.MaxRetries)))
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands."))
	fmt.Fprintln(r.out)
}

// reportIngestions prints the outcome of background ingestions started by
// /ingest or the file watcher.
func (r *chatREPL) reportIngestions(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.ctrl.IngestEvents():
			if e.Stage.Terminal() {
				fmt.Fprintln(os.Stderr)
				r.progress.Ingest(e)
			}
		}
	}
}

func (r *chatREPL) printTurn(res *workflow.Result, err error) {
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrForceStopped) && res != nil && res.Answer != "":
		fmt.Fprintln(os.Stderr, WarningStyle.Render("partial answer:"))
	case errors.Is(err, workflow.ErrNotSupported):
		fmt.Fprintln(r.out, WarningStyle.Render(session.UnableToFindAnswer))
		return
	default:
		DisplayError("chat", err, false)
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprint(r.out, renderMarkdown(res.Answer, r.svc.Config.UI.WordWrap))
	if !r.args.Quiet && r.svc.Config.UI.ShowElapsed {
		reason := res.FinishReason
		if err != nil {
			reason = workflow.FinishForceStop
		}
		fmt.Fprintln(r.out, DimStyle.Render(storage.FinishLine(storage.Detail{
			Model:        res.Model,
			FinishReason: reason,
			Elapsed:      res.Elapsed,
		})))
	}
	fmt.Fprintln(r.out)
}

// slash runs one slash command and reports whether the REPL should exit.
func (r *chatREPL) slash(ctx context.Context, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "/exit", "/quit", "/q":
		return true, nil

	case "/help", "/?":
		for _, c := range slashCommands {
			fmt.Fprintf(r.out, "  %-10s %-12s %s\n", c.name, c.args, DimStyle.Render(c.usage))
		}

	case "/new":
		r.ctrl.ClearSelection()
		fmt.Fprintln(r.out, DimStyle.Render("The next question starts a new chat."))

	case "/chats":
		chats, err := r.ctrl.FilterChats(ctx, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprint(r.out, storage.FormatChatList(chats))

	case "/open":
		id, err := ParseID(rest, "chat id")
		if err != nil {
			return false, err
		}
		details, err := r.ctrl.SelectChat(ctx, id)
		if err != nil {
			return false, err
		}
		chat, err := r.svc.DB.GetChat(ctx, id)
		if err != nil {
			return false, err
		}
		fmt.Fprint(r.out, renderMarkdown(storage.ExportMarkdown(*chat, details), r.svc.Config.UI.WordWrap))

	case "/rename":
		id := r.ctrl.CurrentChat()
		if id == 0 {
			return false, errors.New("no chat selected")
		}
		if rest == "" {
			return false, ErrMissingArgument("title", "/rename Quarterly report")
		}
		if err := r.ctrl.RenameChat(ctx, id, rest); err != nil {
			return false, err
		}

	case "/delete":
		id := r.ctrl.CurrentChat()
		if rest != "" {
			var err error
			if id, err = ParseID(rest, "chat id"); err != nil {
				return false, err
			}
		}
		if id == 0 {
			return false, errors.New("no chat selected")
		}
		if err := r.ctrl.DeleteChat(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Deleted chat %d\n", id)

	case "/export":
		id := r.ctrl.CurrentChat()
		if id == 0 {
			return false, errors.New("no chat selected")
		}
		chat, err := r.svc.DB.GetChat(ctx, id)
		if err != nil {
			return false, err
		}
		details, err := r.svc.DB.ListDetails(ctx, id)
		if err != nil {
			return false, err
		}
		if err := writeOutput(rest, []byte(storage.ExportMarkdown(*chat, details))); err != nil {
			return false, err
		}

	case "/retries":
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return false, NewValidationError("retries", rest, "must be a positive integer")
		}
		r.ctrl.SetMaxRetries(n)
		fmt.Fprintf(r.out, "Max retries set to %d\n", n)

	case "/store":
		switch store := config.NormalizeVectorStore(rest); store {
		case "flat", "hnsw":
			s := r.ctrl.Settings()
			s.VectorStore = store
			r.ctrl.SetSettings(s)
			fmt.Fprintf(r.out, "Vector store set to %s (applies to the next ingestion)\n", store)
		default:
			return false, NewValidationErrorWithExample("store", rest, "unknown vector store", "/store hnsw")
		}

	case "/ingest":
		if rest == "" {
			return false, ErrMissingArgument("path", "/ingest report.pdf")
		}
		r.ctrl.Ingest(ctx, rest)
		fmt.Fprintf(r.out, "Ingesting %s in the background.\n", rest)

	case "/status":
		r.status()

	case "/graph":
		fmt.Fprintln(r.out, workflow.Diagram())

	default:
		return false, NewValidationErrorWithExample("command", cmd, "unknown command", "/help")
	}
	return false, nil
}

func (r *chatREPL) status() {
	s := r.ctrl.Settings()
	fmt.Fprintln(r.out, RenderField("Model", r.svc.Config.Local.OllamaModel))
	fmt.Fprintln(r.out, RenderField("Embeddings", s.EmbeddingModel))
	fmt.Fprintln(r.out, RenderField("Vector store", s.VectorStore))
	fmt.Fprintln(r.out, RenderField("Chunk size", fmt.Sprintf("%d / %d overlap", s.ChunkSize, s.ChunkOverlap)))
	if idx := r.ctrl.Index(); idx != nil {
		fmt.Fprintln(r.out, RenderField("Document", idx.Path))
		fmt.Fprintln(r.out, RenderField("Chunks", strconv.Itoa(idx.Chunks)))
		fmt.Fprintln(r.out, RenderField("Index", RenderStatus("ready")))
	} else {
		fmt.Fprintln(r.out, RenderField("Index", RenderStatus("missing")))
	}
	if id := r.ctrl.CurrentChat(); id != 0 {
		fmt.Fprintln(r.out, RenderField("Chat", strconv.FormatInt(id, 10)))
	}
	if r.ctrl.Busy() {
		fmt.Fprintln(r.out, RenderField("Run", RenderStatus("running")))
	}
}
