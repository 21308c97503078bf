// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
)

// Node names.
const (
	NodeRouteQuestion   = "route_question"
	NodeRetrieve        = "retrieve"
	NodeGradeDocuments  = "grade_documents"
	NodeWebsearch       = "websearch"
	NodeGenerate        = "generate"
	NodeGradeGeneration = "grade_generation"
)

// GraphName is the compiled graph's name.
const GraphName = "adaptive_rag"

type edge struct {
	from, to string
	label    string // branch decision; "" for a plain edge
}

// topology is the single definition of the graph. It drives both
// compilation and Diagram.
var topology = []edge{
	{compose.START, NodeRouteQuestion, ""},
	{NodeRouteQuestion, NodeWebsearch, RouteWebsearch},
	{NodeRouteQuestion, NodeRetrieve, RouteVectorstore},
	{NodeRetrieve, NodeGradeDocuments, ""},
	{NodeGradeDocuments, NodeWebsearch, RouteWebsearch},
	{NodeGradeDocuments, NodeGenerate, NodeGenerate},
	{NodeWebsearch, NodeGenerate, ""},
	{NodeGenerate, NodeGradeGeneration, ""},
	{NodeGradeGeneration, NodeGenerate, string(OutcomeNotSupported)},
	{NodeGradeGeneration, compose.END, string(OutcomeUseful)},
	{NodeGradeGeneration, NodeWebsearch, string(OutcomeNotUseful)},
	{NodeGradeGeneration, compose.END, string(OutcomeMaxRetries)},
}

var nodeOrder = []string{
	NodeRouteQuestion,
	NodeRetrieve,
	NodeGradeDocuments,
	NodeWebsearch,
	NodeGenerate,
	NodeGradeGeneration,
}

type nodeFunc func(ctx context.Context, s *State) (*State, error)

// decideFunc names the branch to take after a node.
type decideFunc func(s *State) string

func (w *Workflow) nodes() map[string]nodeFunc {
	return map[string]nodeFunc{
		NodeRouteQuestion:   w.routeQuestion,
		NodeRetrieve:        w.retrieve,
		NodeGradeDocuments:  w.gradeDocuments,
		NodeWebsearch:       w.webSearch,
		NodeGenerate:        w.generate,
		NodeGradeGeneration: w.gradeGeneration,
	}
}

var decisions = map[string]decideFunc{
	NodeRouteQuestion:   decideRoute,
	NodeGradeDocuments:  decideToGenerate,
	NodeGradeGeneration: decideAfterGrading,
}

// compile builds a fresh eino graph from topology.
func (w *Workflow) compile(ctx context.Context, maxSteps int) (compose.Runnable[*State, *State], error) {
	g := compose.NewGraph[*State, *State]()

	for name, fn := range w.nodes() {
		if err := g.AddLambdaNode(name, compose.InvokableLambda(w.instrument(name, fn)), compose.WithNodeName(name)); err != nil {
			return nil, err
		}
	}

	branches := make(map[string]map[string]string) // node -> label -> target
	for _, e := range topology {
		if e.label == "" {
			if err := g.AddEdge(e.from, e.to); err != nil {
				return nil, err
			}
			continue
		}
		if branches[e.from] == nil {
			branches[e.from] = make(map[string]string)
		}
		branches[e.from][e.label] = e.to
	}

	for node, targets := range branches {
		decide, ok := decisions[node]
		if !ok {
			return nil, fmt.Errorf("node %s has branches but no decision", node)
		}
		ends := make(map[string]bool, len(targets))
		for _, to := range targets {
			ends[to] = true
		}
		node, targets := node, targets
		cond := func(ctx context.Context, s *State) (string, error) {
			label := decide(s)
			to, ok := targets[label]
			if !ok {
				return "", fmt.Errorf("node %s: no edge for decision %q", node, label)
			}
			if n := len(s.run.steps); n > 0 && s.run.steps[n-1].Node == node {
				s.run.steps[n-1].Decision = label
				w.notify(s, s.run.steps[n-1])
			}
			return to, nil
		}
		if err := g.AddBranch(node, compose.NewGraphBranch(cond, ends)); err != nil {
			return nil, err
		}
	}

	return g.Compile(ctx,
		compose.WithGraphName(GraphName),
		compose.WithMaxRunSteps(maxSteps),
	)
}

// instrument records a Step for every completed node and remembers the
// first node error, which eino wraps.
func (w *Workflow) instrument(name string, fn nodeFunc) func(context.Context, *State) (*State, error) {
	_, branches := decisions[name]
	return func(ctx context.Context, s *State) (*State, error) {
		start := time.Now()
		out, err := fn(ctx, s)
		if err != nil {
			if s.run.err == nil {
				s.run.err = fmt.Errorf("%s: %w", name, err)
			}
			return nil, err
		}
		step := Step{
			Node:      name,
			LoopStep:  s.LoopStep,
			Documents: len(s.Documents),
			Elapsed:   time.Since(start),
		}
		s.run.steps = append(s.run.steps, step)
		if !branches {
			w.notify(s, step)
		}
		return out, nil
	}
}

func (w *Workflow) notify(s *State, step Step) {
	if s.run.hooks.OnStep != nil {
		s.run.hooks.OnStep(step)
	}
}

// Diagram returns the graph as Mermaid flowchart source.
func Diagram() string {
	id := func(n string) string {
		switch n {
		case compose.START:
			return "__start__"
		case compose.END:
			return "__end__"
		}
		return n
	}

	var b strings.Builder
	b.WriteString("---\ntitle: " + GraphName + "\n---\n")
	b.WriteString("graph TD;\n")
	b.WriteString("\t__start__([<p>__start__</p>]):::first\n")
	for _, n := range nodeOrder {
		fmt.Fprintf(&b, "\t%s(%s)\n", n, n)
	}
	b.WriteString("\t__end__([<p>__end__</p>]):::last\n")
	for _, e := range topology {
		if e.label == "" {
			fmt.Fprintf(&b, "\t%s --> %s;\n", id(e.from), id(e.to))
			continue
		}
		fmt.Fprintf(&b, "\t%s -. &nbsp;%s&nbsp; .-> %s;\n", id(e.from), e.label, id(e.to))
	}
	b.WriteString("\tclassDef default fill:#f2f0ff,line-height:1.2\n")
	b.WriteString("\tclassDef first fill-opacity:0\n")
	b.WriteString("\tclassDef last fill:#bfb6fc\n")
	return b.String()
}
