// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/ragrun/internal/document"
	"github.com/jeranaias/ragrun/internal/ollama"
	"github.com/jeranaias/ragrun/internal/prompts"
	"github.com/jeranaias/ragrun/internal/websearch"
)

// =============================================================================
// MODEL CALLS
// =============================================================================

func (w *Workflow) request(jsonMode bool, msgs ...ollama.Message) ollama.ChatRequest {
	req := ollama.ChatRequest{
		Model:    w.cfg.Model,
		Messages: msgs,
		Options:  &ollama.Options{Temperature: w.cfg.Temperature, NumCtx: w.cfg.NumCtx},
	}
	if jsonMode {
		req.Format = "json"
		req.Options.Temperature = 0
	}
	return req
}

func (w *Workflow) call(ctx context.Context, s *State, purpose string, req ollama.ChatRequest) (*ollama.ChatResponse, error) {
	start := time.Now()
	resp, err := w.deps.LLM.Chat(ctx, req)
	if hook := s.run.hooks.OnLLMCall; hook != nil {
		hook(purpose, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// grade asks a JSON-mode question and returns the named field of the reply.
func (w *Workflow) grade(ctx context.Context, s *State, purpose, instruction, prompt, field string) (string, error) {
	resp, err := w.call(ctx, s, purpose, w.request(true,
		ollama.NewSystemMessage(instruction),
		ollama.NewUserMessage(prompt),
	))
	if err != nil {
		return "", err
	}
	return verdict(resp.Message.Content, field), nil
}

func formatDocs(docs []document.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}

// =============================================================================
// NODES
// =============================================================================

func (w *Workflow) routeQuestion(ctx context.Context, s *State) (*State, error) {
	source, err := w.grade(ctx, s, NodeRouteQuestion, w.cfg.Prompts.RouterInstruction, s.Question, "datasource")
	if err != nil {
		return nil, err
	}

	switch source {
	case RouteWebsearch:
		s.RouteType = RouteWebsearch
	case RouteVectorstore:
		s.RouteType = RouteVectorstore
	default:
		w.logger.Warn("router returned an unknown datasource, using vectorstore",
			zap.String("datasource", source))
		s.RouteType = RouteVectorstore
	}
	w.logger.Debug("question routed", zap.String("route", s.RouteType))
	return s, nil
}

func (w *Workflow) retrieve(ctx context.Context, s *State) (*State, error) {
	if s.run.retriever == nil {
		return nil, ErrNoRetriever
	}
	docs, err := s.run.retriever.Retrieve(ctx, s.Question)
	if err != nil {
		return nil, err
	}
	s.Documents = docs
	w.logger.Debug("documents retrieved", zap.Int("count", len(docs)))
	return s, nil
}

// gradeDocuments grades the retrieved documents concurrently, keeping the
// relevant ones in retrieval order.
func (w *Workflow) gradeDocuments(ctx context.Context, s *State) (*State, error) {
	keep := make([]bool, len(s.Documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.GradeConcurrency)
	for i, d := range s.Documents {
		i, d := i, d
		g.Go(func() error {
			vars := map[string]string{prompts.VarDocument: d.Content, prompts.VarQuestion: s.Question}
			instruction, err := prompts.Format(w.cfg.Prompts.DocGraderInstruction, vars)
			if err != nil {
				return err
			}
			prompt, err := prompts.Format(w.cfg.Prompts.DocGraderPrompt, vars)
			if err != nil {
				return err
			}
			score, err := w.grade(gctx, s, NodeGradeDocuments, instruction, prompt, "binary_score")
			if err != nil {
				return err
			}
			keep[i] = yes(score)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	relevant := make([]document.Document, 0, len(s.Documents))
	s.WebSearch = false
	for i, d := range s.Documents {
		if keep[i] {
			relevant = append(relevant, d)
		} else {
			s.WebSearch = true
		}
	}
	w.logger.Debug("documents graded",
		zap.Int("relevant", len(relevant)),
		zap.Int("total", len(s.Documents)))
	s.Documents = relevant
	return s, nil
}

func (w *Workflow) webSearch(ctx context.Context, s *State) (*State, error) {
	if w.deps.Searcher == nil {
		return nil, ErrNoSearcher
	}
	results, err := w.deps.Searcher.Search(ctx, s.Question, w.cfg.SearchResults)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	if text := websearch.Contents(results); strings.TrimSpace(text) != "" {
		s.Documents = append(s.Documents, document.Document{
			Content:  text,
			Metadata: document.Metadata{Source: "websearch", Type: document.TypeURL},
		})
	}
	w.logger.Debug("web search done", zap.Int("results", len(results)))
	return s, nil
}

func (w *Workflow) generate(ctx context.Context, s *State) (*State, error) {
	prompt, err := prompts.Format(w.cfg.Prompts.RAGPrompt, map[string]string{
		prompts.VarContext:  formatDocs(s.Documents),
		prompts.VarQuestion: s.Question,
	})
	if err != nil {
		return nil, err
	}
	req := w.request(false, ollama.NewUserMessage(prompt))

	var resp *ollama.ChatResponse
	streamer, canStream := w.deps.LLM.(StreamingLLM)
	if onToken := s.run.hooks.OnToken; canStream && onToken != nil {
		start := time.Now()
		s.run.partial.Reset()
		s.run.streaming = true
		resp, err = streamer.ChatStream(ctx, req, func(chunk ollama.StreamChunk) {
			if chunk.Content != "" {
				s.run.partial.WriteString(chunk.Content)
				onToken(chunk.Content)
			}
		})
		if hook := s.run.hooks.OnLLMCall; hook != nil {
			hook(NodeGenerate, time.Since(start), err)
		}
	} else {
		resp, err = w.call(ctx, s, NodeGenerate, req)
	}
	if err != nil {
		return nil, err
	}

	s.run.streaming = false
	s.Generation = resp.Message.Content
	s.Model = resp.Model
	s.DoneReason = resp.DoneReason
	s.LoopStep++
	return s, nil
}

// gradeGeneration checks the answer against the documents, then against the
// question, and sets the outcome that picks the next edge.
func (w *Workflow) gradeGeneration(ctx context.Context, s *State) (*State, error) {
	p := w.cfg.Prompts
	s.Answers++

	hallucinationPrompt, err := prompts.Format(p.HallucinationGraderPrompt, map[string]string{
		prompts.VarDocuments:  formatDocs(s.Documents),
		prompts.VarGeneration: s.Generation,
	})
	if err != nil {
		return nil, err
	}
	grounded, err := w.grade(ctx, s, NodeGradeGeneration, p.HallucinationGraderInstruction, hallucinationPrompt, "binary_score")
	if err != nil {
		return nil, err
	}

	retry := s.LoopStep <= s.MaxRetries
	if !yes(grounded) {
		s.Outcome = OutcomeMaxRetries
		if retry {
			s.Outcome = OutcomeNotSupported
		}
		w.logger.Debug("generation not grounded", zap.String("outcome", string(s.Outcome)))
		return s, nil
	}

	answerPrompt, err := prompts.Format(p.AnswerGraderPrompt, map[string]string{
		prompts.VarQuestion:   s.Question,
		prompts.VarGeneration: s.Generation,
	})
	if err != nil {
		return nil, err
	}
	useful, err := w.grade(ctx, s, NodeGradeGeneration, p.AnswerGraderInstruction, answerPrompt, "binary_score")
	if err != nil {
		return nil, err
	}

	switch {
	case yes(useful):
		s.Outcome = OutcomeUseful
	case retry:
		s.Outcome = OutcomeNotUseful
	default:
		s.Outcome = OutcomeMaxRetries
	}
	w.logger.Debug("generation graded", zap.String("outcome", string(s.Outcome)))
	return s, nil
}

// =============================================================================
// DECISIONS
// =============================================================================

func decideRoute(s *State) string {
	return s.RouteType
}

func decideToGenerate(s *State) string {
	if s.WebSearch {
		s.RouteType = RouteWebsearch
		return RouteWebsearch
	}
	return NodeGenerate
}

func decideAfterGrading(s *State) string {
	return string(s.Outcome)
}
