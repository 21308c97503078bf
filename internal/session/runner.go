// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/metrics"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies a run event.
type EventKind int

const (
	// EventStep carries a completed graph node.
	EventStep EventKind = iota
	// EventToken carries a streamed answer token.
	EventToken
	// EventResponse carries the final answer, before EventFinished.
	EventResponse
	// EventFinished ends a successful run.
	EventFinished
	// EventFailed ends a run that errored, was stopped or found no answer.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStep:
		return "step"
	case EventToken:
		return "token"
	case EventResponse:
		return "response"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is delivered on Runner.Events.
type Event struct {
	Kind   EventKind
	RunID  string
	ChatID int64

	Step   workflow.Step
	Token  string
	Result *workflow.Result
	Err    error
}

// Terminal reports whether the run is over.
func (e Event) Terminal() bool {
	return e.Kind == EventFinished || e.Kind == EventFailed
}

// =============================================================================
// RUNNER
// =============================================================================

// Answerer runs the RAG workflow.
type Answerer interface {
	Run(ctx context.Context, question string, opts workflow.RunOptions) (*workflow.Result, error)
}

// Request is one question for the Runner.
type Request struct {
	ChatID   int64
	Question string
	Options  workflow.RunOptions

	// OnDone, if set, is called with the run's outcome before the terminal
	// event is delivered.
	OnDone func(res *workflow.Result, err error)
}

const runnerBuffer = 256

// Runner runs one workflow per request on its own goroutine. A new request
// waits for the previous run to finish first.
type Runner struct {
	answerer Answerer
	metrics  *metrics.Recorder
	logger   *zap.Logger
	events   chan Event

	mu     sync.Mutex
	done   chan struct{}
	cancel context.CancelFunc
	busy   bool
}

// NewRunner returns a Runner over answerer. rec may be nil.
func NewRunner(answerer Answerer, rec *metrics.Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	closed := make(chan struct{})
	close(closed)
	return &Runner{
		answerer: answerer,
		metrics:  rec,
		logger:   logger,
		events:   make(chan Event, runnerBuffer),
		done:     closed,
	}
}

// Events delivers every run's events. Step and token events are dropped when
// the channel is full; response and terminal events block until received.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Submit starts req and returns its run id.
func (r *Runner) Submit(ctx context.Context, req Request) string {
	id := uuid.NewString()

	r.mu.Lock()
	prev := r.done
	done := make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	r.done = done
	r.cancel = cancel
	r.busy = true
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		<-prev

		opts := r.instrument(id, req)
		started := time.Now()
		res, err := r.answerer.Run(runCtx, req.Question, opts)

		r.observe(res, err)
		r.logger.Debug("run complete",
			zap.String("run_id", id),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))

		if req.OnDone != nil {
			req.OnDone(res, err)
		}

		r.mu.Lock()
		if r.done == done {
			r.busy = false
		}
		r.mu.Unlock()

		if err != nil {
			r.events <- Event{Kind: EventFailed, RunID: id, ChatID: req.ChatID, Result: res, Err: err}
			return
		}
		r.events <- Event{Kind: EventResponse, RunID: id, ChatID: req.ChatID, Result: res}
		r.events <- Event{Kind: EventFinished, RunID: id, ChatID: req.ChatID, Result: res}
	}()
	return id
}

// instrument chains metrics and event delivery onto the caller's hooks.
func (r *Runner) instrument(id string, req Request) workflow.RunOptions {
	opts := req.Options
	user := opts.Hooks

	opts.Hooks = workflow.Hooks{
		OnStep: func(s workflow.Step) {
			r.metrics.ObserveNode(s.Node, s.Elapsed)
			if user.OnStep != nil {
				user.OnStep(s)
			}
			r.offer(Event{Kind: EventStep, RunID: id, ChatID: req.ChatID, Step: s})
		},
		OnToken: func(tok string) {
			if user.OnToken != nil {
				user.OnToken(tok)
			}
			r.offer(Event{Kind: EventToken, RunID: id, ChatID: req.ChatID, Token: tok})
		},
		OnLLMCall: func(purpose string, elapsed time.Duration, err error) {
			r.metrics.ObserveLLMCall(purpose, elapsed, err)
			if user.OnLLMCall != nil {
				user.OnLLMCall(purpose, elapsed, err)
			}
		},
	}
	return opts
}

func (r *Runner) offer(e Event) {
	select {
	case r.events <- e:
	default:
	}
}

func (r *Runner) observe(res *workflow.Result, err error) {
	r.metrics.ObserveRun(outcomeLabel(res, err))
}

// Stop cancels the current run. Its result carries FinishReason "Force Stop".
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the latest submitted run has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	<-done
}

// Busy reports whether a run is queued or in progress.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}
