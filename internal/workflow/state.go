// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"errors"
	"time"

	"github.com/jeranaias/ragrun/internal/document"
)

// =============================================================================
// STATE
// =============================================================================

// Route types recorded on the state and in Result.Model.
const (
	RouteVectorstore = "vectorstore"
	RouteWebsearch   = "websearch"
)

// Outcome is the verdict of the generation grader.
type Outcome string

const (
	OutcomeUseful       Outcome = "useful"
	OutcomeNotUseful    Outcome = "not useful"
	OutcomeNotSupported Outcome = "not supported"
	OutcomeMaxRetries   Outcome = "max retries"
)

// State flows through the graph. Every node receives and returns the same
// pointer.
type State struct {
	Question   string
	Generation string
	Documents  []document.Document

	// WebSearch is set when any retrieved document was graded irrelevant.
	WebSearch bool

	MaxRetries int
	LoopStep   int // generations so far
	Answers    int // generations graded so far

	RouteType  string
	Model      string
	DoneReason string
	Outcome    Outcome

	run *run
}

// =============================================================================
// RESULTS AND EVENTS
// =============================================================================

// FinishReason values set by the workflow itself.
const (
	FinishStop      = "stop"
	FinishForceStop = "Force Stop"
)

var (
	// ErrNotSupported is returned when no generation passed both graders
	// within the retry budget.
	ErrNotSupported = errors.New("max_retries reached or not supported")

	// ErrForceStopped is returned when the run's context is canceled.
	ErrForceStopped = errors.New("workflow force stopped")

	// ErrNoRetriever is returned when a question is routed to the vector
	// store but none is attached.
	ErrNoRetriever = errors.New("no document index is loaded")

	// ErrNoSearcher is returned when web search is needed but not configured.
	ErrNoSearcher = errors.New("web search is not configured")
)

// Step reports one completed node.
type Step struct {
	Node      string
	Decision  string // branch taken after the node, if any
	LoopStep  int
	Documents int
	Elapsed   time.Duration
}

// Result is the outcome of one run.
type Result struct {
	Answer       string
	Model        string // "<model> | <route_type>"
	RouteType    string
	FinishReason string
	Outcome      Outcome
	LoopStep     int
	Documents    []document.Document
	Steps        []Step
	Elapsed      time.Duration
}

// Valid reports whether the run produced a graded, useful answer.
func (r *Result) Valid() bool {
	return r != nil && r.Outcome == OutcomeUseful
}
