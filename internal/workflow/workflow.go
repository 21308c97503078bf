// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/document"
	"github.com/jeranaias/ragrun/internal/ollama"
	"github.com/jeranaias/ragrun/internal/prompts"
	"github.com/jeranaias/ragrun/internal/websearch"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// LLM is the chat model used by every node.
type LLM interface {
	Chat(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatResponse, error)
}

// StreamingLLM is an LLM that can stream the generate node's answer.
type StreamingLLM interface {
	LLM
	ChatStream(ctx context.Context, req ollama.ChatRequest, callback ollama.StreamCallback) (*ollama.ChatResponse, error)
}

// Retriever returns the documents relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]document.Document, error)
}

// Hooks observe a run. All fields are optional. They are called from the
// goroutine running the graph, except OnLLMCall which may also be called
// from concurrent document graders.
type Hooks struct {
	// OnStep is called after each node completes.
	OnStep func(Step)

	// OnToken receives answer tokens when the LLM supports streaming.
	OnToken func(token string)

	// OnLLMCall is called after every model call. purpose is the node name.
	OnLLMCall func(purpose string, elapsed time.Duration, err error)
}

// Config holds the model parameters and limits of a Workflow.
type Config struct {
	Model            string
	Temperature      float64
	NumCtx           int
	MaxRetries       int
	SearchResults    int
	GradeConcurrency int
	MaxRunSteps      int
	Prompts          prompts.Set
}

// Deps are the services a Workflow calls. Retriever and Searcher may be nil
// until the routes that need them are taken.
type Deps struct {
	LLM       LLM
	Retriever Retriever
	Searcher  websearch.Searcher
	Logger    *zap.Logger
}

// RunOptions adjust a single run.
type RunOptions struct {
	// MaxRetries overrides Config.MaxRetries when positive.
	MaxRetries int

	// Retriever overrides Deps.Retriever when set.
	Retriever Retriever

	Hooks Hooks
}

// =============================================================================
// WORKFLOW
// =============================================================================

// Workflow is the compiled adaptive RAG graph. It is safe for concurrent
// runs.
type Workflow struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	mu        sync.Mutex
	runnables map[int]compose.Runnable[*State, *State] // by step budget
}

// run carries per-invocation context through the graph state.
type run struct {
	retriever Retriever
	hooks     Hooks
	steps     []Step
	err       error

	// partial holds the tokens of the generation being streamed, and
	// streaming is set until that generation completes.
	partial   strings.Builder
	streaming bool
}

// New validates cfg and compiles the graph.
func New(ctx context.Context, cfg Config, deps Deps) (*Workflow, error) {
	if deps.LLM == nil {
		return nil, errors.New("workflow: LLM is required")
	}
	if cfg.Prompts == (prompts.Set{}) {
		cfg.Prompts = prompts.Default()
	}
	if err := cfg.Prompts.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.SearchResults <= 0 {
		cfg.SearchResults = 3
	}
	if cfg.GradeConcurrency <= 0 {
		cfg.GradeConcurrency = 4
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	w := &Workflow{
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger.Named("workflow"),
		runnables: make(map[int]compose.Runnable[*State, *State]),
	}
	if _, err := w.runnable(ctx, w.stepBudget(cfg.MaxRetries)); err != nil {
		return nil, err
	}
	return w, nil
}

// Config returns the workflow configuration.
func (w *Workflow) Config() Config { return w.cfg }

// stepBudget bounds the number of node executions for maxRetries: four
// nodes before the first generation, then at most generate, grade and
// websearch per attempt.
func (w *Workflow) stepBudget(maxRetries int) int {
	need := 4 + 3*(maxRetries+1) + 2
	return max(need, w.cfg.MaxRunSteps)
}

func (w *Workflow) runnable(ctx context.Context, steps int) (compose.Runnable[*State, *State], error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.runnables[steps]; ok {
		return r, nil
	}
	r, err := w.compile(ctx, steps)
	if err != nil {
		return nil, fmt.Errorf("workflow: compile graph: %w", err)
	}
	w.runnables[steps] = r
	return r, nil
}

// Run answers question. A run that ends without a useful answer returns
// the partial Result with ErrNotSupported. Canceling ctx stops the run and
// returns ErrForceStopped with FinishReason "Force Stop".
func (w *Workflow) Run(ctx context.Context, question string, opts RunOptions) (*Result, error) {
	start := time.Now()

	maxRetries := w.cfg.MaxRetries
	if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}
	retriever := w.deps.Retriever
	if opts.Retriever != nil {
		retriever = opts.Retriever
	}

	r, err := w.runnable(ctx, w.stepBudget(maxRetries))
	if err != nil {
		return nil, err
	}

	state := &State{
		Question:   question,
		MaxRetries: maxRetries,
		run:        &run{retriever: retriever, hooks: opts.Hooks},
	}
	w.logger.Info("workflow started",
		zap.String("question", question),
		zap.Int("max_retries", maxRetries))

	final, invokeErr := r.Invoke(ctx, state)
	if final == nil {
		final = state
	}
	res := w.result(final, start)

	if ctx.Err() != nil {
		if state.run.streaming {
			res.Answer = state.run.partial.String()
		}
		res.FinishReason = FinishForceStop
		w.logger.Info("workflow force stopped", zap.Duration("elapsed", res.Elapsed))
		return res, fmt.Errorf("%w: %w", ErrForceStopped, ctx.Err())
	}
	if invokeErr != nil {
		if state.run.err != nil {
			invokeErr = state.run.err
		}
		w.logger.Error("workflow failed", zap.Error(invokeErr))
		return res, invokeErr
	}
	if !res.Valid() {
		w.logger.Info("workflow ended without a supported answer",
			zap.String("outcome", string(res.Outcome)),
			zap.Int("loop_step", res.LoopStep))
		return res, ErrNotSupported
	}

	w.logger.Info("workflow finished",
		zap.String("model", res.Model),
		zap.String("finish_reason", res.FinishReason),
		zap.Int("loop_step", res.LoopStep),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (w *Workflow) result(s *State, start time.Time) *Result {
	model := s.Model
	if model == "" {
		model = w.cfg.Model
	}
	if model == "" {
		model = "N/A"
	}
	route := s.RouteType
	if route == "" {
		route = RouteVectorstore
	}
	reason := s.DoneReason
	if reason == "" {
		reason = FinishStop
	}
	var steps []Step
	if s.run != nil {
		steps = s.run.steps
	}
	return &Result{
		Answer:       s.Generation,
		Model:        model + " | " + route,
		RouteType:    route,
		FinishReason: reason,
		Outcome:      s.Outcome,
		LoopStep:     s.LoopStep,
		Documents:    s.Documents,
		Steps:        steps,
		Elapsed:      time.Since(start),
	}
}
