// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/ollama"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/vectorstore"
	"github.com/jeranaias/ragrun/internal/websearch"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeAnswerer answers with a fixed result, or blocks until canceled when
// block is set.
type fakeAnswerer struct {
	mu        sync.Mutex
	questions []string
	opts      []workflow.RunOptions
	block     bool
	err       error
	outcome   workflow.Outcome
}

func (f *fakeAnswerer) Run(ctx context.Context, q string, opts workflow.RunOptions) (*workflow.Result, error) {
	f.mu.Lock()
	f.questions = append(f.questions, q)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	if opts.Hooks.OnStep != nil {
		opts.Hooks.OnStep(workflow.Step{Node: workflow.NodeRouteQuestion, Decision: workflow.RouteVectorstore})
	}
	if opts.Hooks.OnToken != nil {
		opts.Hooks.OnToken("answer to ")
	}

	res := &workflow.Result{
		Answer:       "answer to " + q,
		Model:        "llama3.2 | vectorstore",
		RouteType:    workflow.RouteVectorstore,
		FinishReason: workflow.FinishStop,
		Outcome:      workflow.OutcomeUseful,
		Elapsed:      1500 * time.Millisecond,
	}
	if f.block {
		<-ctx.Done()
		res.Answer = "partial"
		res.FinishReason = workflow.FinishForceStop
		return res, fmt.Errorf("%w: %w", workflow.ErrForceStopped, ctx.Err())
	}
	if f.outcome != "" {
		res.Outcome = f.outcome
	}
	return res, f.err
}

type fakeIngester struct {
	current *ingest.Result
	reqs    []ingest.Request
	events  chan ingest.Event
}

func (f *fakeIngester) Start(ctx context.Context, req ingest.Request) { f.reqs = append(f.reqs, req) }
func (f *fakeIngester) Current() *ingest.Result                       { return f.current }
func (f *fakeIngester) Running() bool                                 { return false }
func (f *fakeIngester) Events() <-chan ingest.Event                   { return f.events }

func readyIngester() *fakeIngester {
	return &fakeIngester{current: &ingest.Result{Retriever: &vectorstore.Retriever{}}}
}

func openStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newController(t *testing.T, ans Answerer, ing Ingester) (*Controller, *storage.DB) {
	t.Helper()
	db := openStore(t)
	ctrl := NewController(Options{
		Store:      db,
		Runner:     NewRunner(ans, nil, nil),
		Ingest:     ing,
		MaxRetries: 2,
		Diagram:    "flowchart TD",
	})
	return ctrl, db
}

// drain collects events until a terminal one.
func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			got = append(got, e)
			if e.Terminal() {
				return got
			}
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}
}

// =============================================================================
// RUNNER TESTS
// =============================================================================

func TestRunner_EventsInOrder(t *testing.T) {
	r := NewRunner(&fakeAnswerer{}, nil, nil)
	id := r.Submit(context.Background(), Request{ChatID: 7, Question: "q"})

	events := drain(t, r.Events())
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	want := []EventKind{EventStep, EventToken, EventResponse, EventFinished}
	for i, e := range events {
		if e.Kind != want[i] {
			t.Errorf("event %d = %v, want %v", i, e.Kind, want[i])
		}
		if e.RunID != id || e.ChatID != 7 {
			t.Errorf("event %d ids = %s/%d, want %s/7", i, e.RunID, e.ChatID, id)
		}
	}
	if events[2].Result.Answer != "answer to q" {
		t.Errorf("response answer = %q", events[2].Result.Answer)
	}
}

func TestRunner_SequentialRuns(t *testing.T) {
	ans := &fakeAnswerer{}
	r := NewRunner(ans, nil, nil)

	for i := 0; i < 3; i++ {
		r.Submit(context.Background(), Request{Question: fmt.Sprintf("q%d", i)})
	}
	for i := 0; i < 3; i++ {
		drain(t, r.Events())
	}
	r.Wait()

	if r.Busy() {
		t.Error("Busy() = true after all runs finished")
	}
	want := []string{"q0", "q1", "q2"}
	for i, q := range ans.questions {
		if q != want[i] {
			t.Errorf("question %d = %q, want %q", i, q, want[i])
		}
	}
}

func TestRunner_StopIsForceStop(t *testing.T) {
	r := NewRunner(&fakeAnswerer{block: true}, nil, nil)
	r.Submit(context.Background(), Request{Question: "q"})

	// Wait for the run to start.
	first := <-r.Events()
	if first.Kind != EventStep {
		t.Fatalf("first event = %v, want step", first.Kind)
	}
	if !r.Busy() {
		t.Error("Busy() = false during run")
	}
	r.Stop()

	events := drain(t, r.Events())
	last := events[len(events)-1]
	if last.Kind != EventFailed {
		t.Fatalf("last event = %v, want failed", last.Kind)
	}
	if !errors.Is(last.Err, workflow.ErrForceStopped) {
		t.Errorf("err = %v, want ErrForceStopped", last.Err)
	}
	if last.Result.FinishReason != workflow.FinishForceStop {
		t.Errorf("finish reason = %q", last.Result.FinishReason)
	}
}

func TestEventKindString(t *testing.T) {
	tests := map[EventKind]string{
		EventStep:     "step",
		EventToken:    "token",
		EventResponse: "response",
		EventFinished: "finished",
		EventFailed:   "failed",
		EventKind(99): "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

// =============================================================================
// CONTROLLER TESTS
// =============================================================================

func TestController_SubmitRequiresIngestion(t *testing.T) {
	ctrl, _ := newController(t, &fakeAnswerer{}, &fakeIngester{})

	if _, err := ctrl.Submit(context.Background(), "q"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Submit() error = %v, want ErrNotReady", err)
	}
	if _, err := ctrl.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("Submit(blank) error = %v, want ErrEmptyQuestion", err)
	}
	if ErrNotReady.Error() != "Run document ingestion first" {
		t.Errorf("ErrNotReady = %q", ErrNotReady.Error())
	}
}

func TestController_SubmitStoresExchange(t *testing.T) {
	ans := &fakeAnswerer{}
	ctrl, db := newController(t, ans, readyIngester())
	ctx := context.Background()

	chatID, err := ctrl.Submit(ctx, "What is RAG?")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if chatID == 0 || ctrl.CurrentChat() != chatID {
		t.Fatalf("chat id = %d, current = %d", chatID, ctrl.CurrentChat())
	}
	drain(t, ctrl.Events())

	chat, err := db.GetChat(ctx, chatID)
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if chat.Title != storage.DefaultChatTitle {
		t.Errorf("title = %q, want %q", chat.Title, storage.DefaultChatTitle)
	}

	details, err := db.ListDetails(ctx, chatID)
	if err != nil {
		t.Fatalf("ListDetails() error = %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("got %d details, want 2", len(details))
	}
	if details[0].Type != storage.ChatHuman || details[0].Content != "What is RAG?" {
		t.Errorf("human row = %+v", details[0])
	}
	ai := details[1]
	if ai.Type != storage.ChatAI || ai.Content != "answer to What is RAG?" {
		t.Errorf("ai row = %+v", ai)
	}
	if ai.Model != "llama3.2 | vectorstore" || ai.FinishReason != "stop" || ai.Image != "flowchart TD" {
		t.Errorf("ai metadata = %q %q %q", ai.Model, ai.FinishReason, ai.Image)
	}

	if got := ans.opts[0].MaxRetries; got != 2 {
		t.Errorf("MaxRetries = %d, want 2", got)
	}
	if ans.opts[0].Retriever == nil {
		t.Error("run was not given the ingested retriever")
	}

	// A second question goes to the same chat.
	if id, _ := ctrl.Submit(ctx, "More?"); id != chatID {
		t.Errorf("second Submit chat = %d, want %d", id, chatID)
	}
	drain(t, ctrl.Events())
	details, _ = db.ListDetails(ctx, chatID)
	if len(details) != 4 {
		t.Errorf("got %d details after second question, want 4", len(details))
	}
}

func TestController_FailedRunsStoreErrorRow(t *testing.T) {
	tests := []struct {
		name        string
		ans         *fakeAnswerer
		wantContent string
		wantModel   string
		wantReason  string
	}{
		{
			name:        "not supported",
			ans:         &fakeAnswerer{err: workflow.ErrNotSupported, outcome: workflow.OutcomeMaxRetries},
			wantContent: UnableToFindAnswer,
			wantModel:   ModelUnavailable,
			wantReason:  FinishError,
		},
		{
			name:        "llm error",
			ans:         &fakeAnswerer{err: errors.New("connection refused")},
			wantContent: "connection refused",
			wantModel:   ModelUnavailable,
			wantReason:  FinishError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, db := newController(t, tt.ans, readyIngester())
			ctx := context.Background()

			chatID, err := ctrl.Submit(ctx, "q")
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			events := drain(t, ctrl.Events())
			if last := events[len(events)-1]; last.Kind != EventFailed {
				t.Fatalf("last event = %v, want failed", last.Kind)
			}

			details, _ := db.ListDetails(ctx, chatID)
			if len(details) != 2 {
				t.Fatalf("got %d details, want 2", len(details))
			}
			ai := details[1]
			if ai.Content != tt.wantContent || ai.Model != tt.wantModel || ai.FinishReason != tt.wantReason {
				t.Errorf("ai row = %q / %q / %q", ai.Content, ai.Model, ai.FinishReason)
			}
		})
	}
}

func TestController_StopStoresForceStop(t *testing.T) {
	ctrl, db := newController(t, &fakeAnswerer{block: true}, readyIngester())
	ctx := context.Background()

	chatID, err := ctrl.Submit(ctx, "q")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-ctrl.Events() // step: the run has started
	ctrl.Stop()
	drain(t, ctrl.Events())

	details, _ := db.ListDetails(ctx, chatID)
	if len(details) != 2 {
		t.Fatalf("got %d details, want 2", len(details))
	}
	if got := details[1].FinishReason; got != workflow.FinishForceStop {
		t.Errorf("finish reason = %q, want %q", got, workflow.FinishForceStop)
	}
	if got := details[1].Content; got != "partial" {
		t.Errorf("content = %q, want partial", got)
	}
}

// webStreamLLM routes every question to web search and streams a generation
// that stalls until the run is stopped.
type webStreamLLM struct {
	streamed chan struct{}
}

func (l *webStreamLLM) Chat(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatResponse, error) {
	return &ollama.ChatResponse{
		Model:   "llama3.2",
		Message: ollama.NewAssistantMessage(`{"datasource": "websearch"}`),
	}, nil
}

func (l *webStreamLLM) ChatStream(ctx context.Context, req ollama.ChatRequest, cb ollama.StreamCallback) (*ollama.ChatResponse, error) {
	cb(ollama.StreamChunk{Content: "Partial "})
	cb(ollama.StreamChunk{Content: "answer"})
	close(l.streamed)
	<-ctx.Done()
	return nil, ctx.Err()
}

type staticSearcher struct{}

func (staticSearcher) Search(ctx context.Context, query string, k int) ([]websearch.Result, error) {
	return []websearch.Result{{Content: "from the web"}}, nil
}

func TestController_StopMidStreamStoresPartialAnswer(t *testing.T) {
	llm := &webStreamLLM{streamed: make(chan struct{})}
	wf, err := workflow.New(context.Background(), workflow.Config{Model: "llama3.2", MaxRetries: 1},
		workflow.Deps{LLM: llm, Searcher: staticSearcher{}})
	if err != nil {
		t.Fatalf("workflow.New() error = %v", err)
	}
	ctrl, db := newController(t, wf, readyIngester())
	ctx := context.Background()

	chatID, err := ctrl.Submit(ctx, "q")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	select {
	case <-llm.streamed:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never streamed")
	}
	ctrl.Stop()
	drain(t, ctrl.Events())

	details, _ := db.ListDetails(ctx, chatID)
	if len(details) != 2 {
		t.Fatalf("got %d details, want 2", len(details))
	}
	if got := details[1].Content; got != "Partial answer" {
		t.Errorf("content = %q, want the streamed tokens", got)
	}
	if got := details[1].FinishReason; got != workflow.FinishForceStop {
		t.Errorf("finish reason = %q, want %q", got, workflow.FinishForceStop)
	}
}

func TestController_ChatManagement(t *testing.T) {
	ctrl, _ := newController(t, &fakeAnswerer{}, readyIngester())
	ctx := context.Background()

	a, err := ctrl.NewChat(ctx)
	if err != nil {
		t.Fatalf("NewChat() error = %v", err)
	}
	b, _ := ctrl.NewChat(ctx)
	if ctrl.CurrentChat() != b.ID {
		t.Errorf("current = %d, want newest %d", ctrl.CurrentChat(), b.ID)
	}

	if err := ctrl.RenameChat(ctx, a.ID, "Physics"); err != nil {
		t.Fatalf("RenameChat() error = %v", err)
	}
	chats, _ := ctrl.FilterChats(ctx, "phys")
	if len(chats) != 1 || chats[0].ID != a.ID {
		t.Errorf("FilterChats(phys) = %+v", chats)
	}

	if _, err := ctrl.SelectChat(ctx, a.ID); err != nil {
		t.Fatalf("SelectChat() error = %v", err)
	}
	if ctrl.CurrentChat() != a.ID {
		t.Errorf("current = %d, want %d", ctrl.CurrentChat(), a.ID)
	}
	if _, err := ctrl.SelectChat(ctx, 999); !errors.Is(err, storage.ErrChatNotFound) {
		t.Errorf("SelectChat(999) error = %v, want ErrChatNotFound", err)
	}

	if err := ctrl.DeleteChat(ctx, a.ID); err != nil {
		t.Fatalf("DeleteChat() error = %v", err)
	}
	if ctrl.CurrentChat() != 0 {
		t.Errorf("deleting the selected chat should clear the selection, got %d", ctrl.CurrentChat())
	}
	chats, _ = ctrl.FilterChats(ctx, "")
	if len(chats) != 1 {
		t.Errorf("got %d chats, want 1", len(chats))
	}
}

func TestController_IngestUsesSettings(t *testing.T) {
	ing := &fakeIngester{}
	ctrl, _ := newController(t, &fakeAnswerer{}, ing)
	ctrl.SetSettings(ingest.Settings{ChunkSize: 500, VectorStore: "hnsw"})

	ctrl.Ingest(context.Background(), "paper.pdf")

	if len(ing.reqs) != 1 {
		t.Fatalf("got %d ingest requests, want 1", len(ing.reqs))
	}
	if ing.reqs[0].Path != "paper.pdf" || ing.reqs[0].Settings.ChunkSize != 500 {
		t.Errorf("request = %+v", ing.reqs[0])
	}
	if ctrl.Ready() {
		t.Error("Ready() = true without an index")
	}
}

func TestOutcomeLabel(t *testing.T) {
	useful := &workflow.Result{Outcome: workflow.OutcomeUseful}
	maxed := &workflow.Result{Outcome: workflow.OutcomeMaxRetries}

	tests := []struct {
		name string
		res  *workflow.Result
		err  error
		want string
	}{
		{"useful", useful, nil, "useful"},
		{"max retries", maxed, workflow.ErrNotSupported, "max_retries"},
		{"force stop", useful, workflow.ErrForceStopped, "force_stop"},
		{"error", nil, errors.New("x"), "error"},
		{"nothing", nil, nil, "none"},
	}
	for _, tt := range tests {
		if got := outcomeLabel(tt.res, tt.err); got != tt.want {
			t.Errorf("%s: outcomeLabel() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
