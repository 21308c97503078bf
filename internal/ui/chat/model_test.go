// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// FAKE CONTROLLER
// =============================================================================

type fakeController struct {
	mu sync.Mutex

	events       chan session.Event
	ingestEvents chan ingest.Event

	chats   []storage.Chat
	details map[int64][]storage.Detail
	current int64
	nextID  int64
	index   *ingest.Result
	busy    bool

	submitted []string
	renamed   map[int64]string
	deleted   []int64
	ingested  []string
	stopped   int
}

func newFakeController() *fakeController {
	return &fakeController{
		events:       make(chan session.Event, 16),
		ingestEvents: make(chan ingest.Event, 16),
		details:      make(map[int64][]storage.Detail),
		renamed:      make(map[int64]string),
		nextID:       1,
	}
}

func (f *fakeController) Events() <-chan session.Event      { return f.events }
func (f *fakeController) IngestEvents() <-chan ingest.Event { return f.ingestEvents }

func (f *fakeController) CurrentChat() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeController) Settings() ingest.Settings {
	return ingest.Settings{VectorStore: "hnsw", EmbeddingModel: "nomic-embed-text"}
}

func (f *fakeController) Ready() bool           { return f.index != nil }
func (f *fakeController) Index() *ingest.Result { return f.index }
func (f *fakeController) Busy() bool            { return f.busy }
func (f *fakeController) Stop()                 { f.stopped++ }

func (f *fakeController) Submit(_ context.Context, question string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index == nil {
		return 0, session.ErrNotReady
	}
	if f.current == 0 {
		f.current = f.addChat(storage.DefaultChatTitle)
	}
	f.submitted = append(f.submitted, question)
	f.details[f.current] = append(f.details[f.current], storage.Detail{
		ChatID: f.current, Type: storage.ChatHuman, Content: question,
	})
	return f.current, nil
}

func (f *fakeController) addChat(title string) int64 {
	id := f.nextID
	f.nextID++
	f.chats = append([]storage.Chat{{ID: id, Title: title}}, f.chats...)
	return id
}

func (f *fakeController) NewChat(context.Context) (*storage.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.addChat(storage.DefaultChatTitle)
	f.current = id
	return &storage.Chat{ID: id, Title: storage.DefaultChatTitle}, nil
}

func (f *fakeController) SelectChat(_ context.Context, id int64) ([]storage.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chats {
		if c.ID == id {
			f.current = id
			return f.details[id], nil
		}
	}
	return nil, storage.ErrChatNotFound
}

func (f *fakeController) RenameChat(_ context.Context, id int64, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renamed[id] = title
	return nil
}

func (f *fakeController) DeleteChat(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeController) FilterChats(_ context.Context, filter string) ([]storage.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Chat
	for _, c := range f.chats {
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeController) Ingest(_ context.Context, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, path)
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, ctrl *fakeController) Model {
	t.Helper()
	m := New(context.Background(), Options{Controller: ctrl, Model: "llama3.2", ShowElapsed: true})
	m.render = func(md string, _ int) string { return md }
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want chat.Model", next)
	}
	return out, cmd
}

func keyMsg(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func readyIndex() *ingest.Result {
	return &ingest.Result{Path: "/docs/manual.pdf", Chunks: 42, Store: "hnsw", Elapsed: 2 * time.Second}
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestView_BeforeResize(t *testing.T) {
	m := New(context.Background(), Options{Controller: newFakeController()})
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestView_StatusBar(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	view := m.View()
	for _, want := range []string{"Chats", "llama3.2", "hnsw", "no index", "ctrl+o ingest"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	ctrl.index = readyIndex()
	view = m.View()
	for _, want := range []string{"chunks", "42", "index ready"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() with index missing %q", want)
		}
	}
}

func TestView_NarrowHidesListUntilFocused(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 50, Height: 20})
	if strings.Contains(m.View(), "Chats") {
		t.Error("narrow view should hide the chat list while the input has focus")
	}
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	if !strings.Contains(m.View(), "Chats") {
		t.Error("narrow view should show the chat list when it has focus")
	}
}

// =============================================================================
// CHAT LIST TESTS
// =============================================================================

func TestChatsLoaded_KeepsCursorOnCurrentChat(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m.currentID = 2
	m, _ = update(t, m, ChatsLoadedMsg{Chats: []storage.Chat{
		{ID: 3, Title: "c"}, {ID: 2, Title: "b"}, {ID: 1, Title: "a"},
	}})
	if len(m.Chats()) != 3 {
		t.Fatalf("Chats() = %d, want 3", len(m.Chats()))
	}
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
}

func TestChatsLoaded_IgnoresStaleFilter(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m.filter.SetValue("new")
	m, _ = update(t, m, ChatsLoadedMsg{Filter: "ne", Chats: []storage.Chat{{ID: 1}}})
	if len(m.Chats()) != 0 {
		t.Error("a result for an older filter should be dropped")
	}
}

func TestListNavigationAndOpen(t *testing.T) {
	ctrl := newFakeController()
	ctrl.addChat("first")
	ctrl.addChat("second")
	m := newTestModel(t, ctrl)
	m, _ = update(t, m, loadChatsCmd(context.Background(), ctrl, "")())

	m, _ = update(t, m, keyMsg(tea.KeyTab))
	if m.Focus() != FocusList {
		t.Fatalf("Focus() = %v, want FocusList", m.Focus())
	}
	m, _ = update(t, m, keyMsg(tea.KeyDown))
	m, _ = update(t, m, runes("k"))
	m, _ = update(t, m, runes("j"))
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}

	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	if m.CurrentChat() != 1 || m.Focus() != FocusInput {
		t.Fatalf("after open: chat %d focus %v, want chat 1 and input focus", m.CurrentChat(), m.Focus())
	}
	opened, ok := cmd().(ChatOpenedMsg)
	if !ok || opened.ID != 1 || opened.Err != nil {
		t.Fatalf("open cmd = %#v", opened)
	}
}

func TestFilterMode(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlF))
	if m.Mode() != ModeFilter || m.Focus() != FocusList {
		t.Fatalf("ctrl+f: mode %v focus %v", m.Mode(), m.Focus())
	}
	m, cmd := update(t, m, runes("g"))
	if m.filter.Value() != "g" {
		t.Fatalf("filter = %q, want g", m.filter.Value())
	}
	if cmd == nil {
		t.Fatal("typing in the filter should reload the chat list")
	}

	m, _ = update(t, m, keyMsg(tea.KeyEsc))
	if m.Mode() != ModeNormal || m.filter.Value() != "" {
		t.Errorf("esc: mode %v filter %q, want normal and empty", m.Mode(), m.filter.Value())
	}
}

func TestNewChat(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	_, cmd := update(t, m, keyMsg(tea.KeyCtrlN))
	msg, ok := cmd().(ChatCreatedMsg)
	if !ok || msg.Err != nil {
		t.Fatalf("ctrl+n cmd = %#v", msg)
	}
	m, _ = update(t, m, msg)
	if m.CurrentChat() != msg.Chat.ID {
		t.Errorf("CurrentChat() = %d, want %d", m.CurrentChat(), msg.Chat.ID)
	}
}

func TestDeleteChat_Confirm(t *testing.T) {
	ctrl := newFakeController()
	id := ctrl.addChat("doomed")
	m := newTestModel(t, ctrl)
	m, _ = update(t, m, loadChatsCmd(context.Background(), ctrl, "")())
	m.currentID = id

	m, _ = update(t, m, keyMsg(tea.KeyCtrlD))
	if m.Mode() != ModeConfirmDelete {
		t.Fatalf("Mode() = %v, want ModeConfirmDelete", m.Mode())
	}
	if !strings.Contains(m.View(), "doomed") {
		t.Error("confirm dialog should name the chat")
	}

	m, cmd := update(t, m, runes("y"))
	deleted, ok := cmd().(ChatDeletedMsg)
	if !ok || deleted.ID != id {
		t.Fatalf("delete cmd = %#v", deleted)
	}
	m, _ = update(t, m, deleted)
	if m.CurrentChat() != 0 {
		t.Errorf("CurrentChat() = %d after deleting it, want 0", m.CurrentChat())
	}
	if len(ctrl.deleted) != 1 {
		t.Errorf("deleted = %v, want one id", ctrl.deleted)
	}
}

func TestDeleteChat_Cancel(t *testing.T) {
	ctrl := newFakeController()
	id := ctrl.addChat("kept")
	m := newTestModel(t, ctrl)
	m, _ = update(t, m, loadChatsCmd(context.Background(), ctrl, "")())
	m.currentID = id

	m, _ = update(t, m, keyMsg(tea.KeyCtrlD))
	m, _ = update(t, m, runes("n"))
	if m.Mode() != ModeNormal || len(ctrl.deleted) != 0 {
		t.Errorf("cancel: mode %v deleted %v", m.Mode(), ctrl.deleted)
	}
}

func TestDeleteChat_NoneSelected(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m, _ = update(t, m, keyMsg(tea.KeyCtrlD))
	if m.Mode() != ModeNormal {
		t.Errorf("Mode() = %v, want ModeNormal", m.Mode())
	}
	if notice, isErr := m.Notice(); !isErr || !strings.Contains(notice, "No chat") {
		t.Errorf("Notice() = %q, %v", notice, isErr)
	}
}

func TestRenameChat(t *testing.T) {
	ctrl := newFakeController()
	id := ctrl.addChat("old title")
	m := newTestModel(t, ctrl)
	m, _ = update(t, m, loadChatsCmd(context.Background(), ctrl, "")())
	m.currentID = id

	m, _ = update(t, m, keyMsg(tea.KeyCtrlR))
	if m.Mode() != ModeRename || m.dialog.Value() != "old title" {
		t.Fatalf("ctrl+r: mode %v value %q", m.Mode(), m.dialog.Value())
	}
	m.dialog.SetValue("new title")
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	if m.Mode() != ModeNormal {
		t.Errorf("Mode() = %v after enter, want ModeNormal", m.Mode())
	}
	renamed, ok := cmd().(ChatRenamedMsg)
	if !ok || renamed.Title != "new title" {
		t.Fatalf("rename cmd = %#v", renamed)
	}
	if ctrl.renamed[id] != "new title" {
		t.Errorf("renamed = %v", ctrl.renamed)
	}
}

// =============================================================================
// QUESTION TESTS
// =============================================================================

func TestSubmit_NotReady(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m.input.SetValue("what is it?")

	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	if m.Busy() {
		t.Error("Busy() = true without an index")
	}
	if notice, isErr := m.Notice(); !isErr || !strings.Contains(notice, "ctrl+o") {
		t.Errorf("Notice() = %q, %v", notice, isErr)
	}
	if m.input.Value() != "what is it?" {
		t.Error("the question should stay in the input")
	}
}

func TestSubmit_EmptyIgnored(t *testing.T) {
	ctrl := newFakeController()
	ctrl.index = readyIndex()
	m := newTestModel(t, ctrl)
	m.input.SetValue("   ")
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	if m.Busy() || cmd != nil {
		t.Error("a blank question should be ignored")
	}
}

func TestSubmit_RunLifecycle(t *testing.T) {
	ctrl := newFakeController()
	ctrl.index = readyIndex()
	m := newTestModel(t, ctrl)
	m.input.SetValue("What is RAG?")

	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	if !m.Busy() || m.input.Value() != "" {
		t.Fatalf("after enter: busy %v input %q", m.Busy(), m.input.Value())
	}
	if !strings.Contains(m.viewport.View(), "What is RAG?") {
		t.Error("the pending question should be shown")
	}

	submitted, ok := submitCmd(context.Background(), ctrl, "What is RAG?")().(SubmittedMsg)
	if !ok || submitted.Err != nil {
		t.Fatalf("submit = %#v", submitted)
	}
	if ctrl.renamed[submitted.ChatID] != "What is RAG?" {
		t.Errorf("a new chat should be titled after its question, got %v", ctrl.renamed)
	}
	m, _ = update(t, m, submitted)
	if m.CurrentChat() != submitted.ChatID {
		t.Fatalf("CurrentChat() = %d, want %d", m.CurrentChat(), submitted.ChatID)
	}

	m, _ = update(t, m, RunEventMsg{Event: session.Event{
		Kind: session.EventStep, ChatID: submitted.ChatID,
		Step: workflow.Step{Node: workflow.NodeGradeDocuments},
	}})
	if !strings.Contains(m.View(), "grading documents") {
		t.Error("the step line should name the current node")
	}

	m, _ = update(t, m, RunEventMsg{Event: session.Event{
		Kind: session.EventToken, ChatID: submitted.ChatID, Token: "Retrieval ",
	}})
	m, _ = update(t, m, RunEventMsg{Event: session.Event{
		Kind: session.EventToken, ChatID: submitted.ChatID, Token: "augmented.",
	}})
	if got := m.LastAnswer(); got != "Retrieval augmented." {
		t.Errorf("LastAnswer() while streaming = %q", got)
	}

	m, cmd := update(t, m, RunEventMsg{Event: session.Event{
		Kind: session.EventFinished, ChatID: submitted.ChatID,
		Result: &workflow.Result{Answer: "Retrieval augmented.", FinishReason: workflow.FinishStop, Elapsed: 3 * time.Second},
	}})
	if m.Busy() {
		t.Error("Busy() = true after the terminal event")
	}
	if cmd == nil {
		t.Error("a finished run should reload the chat")
	}
	if notice, isErr := m.Notice(); isErr || !strings.Contains(notice, "3.0s") {
		t.Errorf("Notice() = %q, %v", notice, isErr)
	}
}

func TestRegenerationReplacesStreamedAnswer(t *testing.T) {
	ctrl := newFakeController()
	ctrl.index = readyIndex()
	m := newTestModel(t, ctrl)
	m.input.SetValue("q")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	submitted := submitCmd(context.Background(), ctrl, "q")().(SubmittedMsg)
	m, _ = update(t, m, submitted)

	token := func(tok string) RunEventMsg {
		return RunEventMsg{Event: session.Event{Kind: session.EventToken, ChatID: submitted.ChatID, Token: tok}}
	}
	graded := func(decision workflow.Outcome) RunEventMsg {
		return RunEventMsg{Event: session.Event{
			Kind: session.EventStep, ChatID: submitted.ChatID,
			Step: workflow.Step{Node: workflow.NodeGradeGeneration, Decision: string(decision)},
		}}
	}

	m, _ = update(t, m, token("first try"))
	m, _ = update(t, m, graded(workflow.OutcomeNotSupported))
	if got := m.LastAnswer(); got != "" {
		t.Errorf("LastAnswer() after a rejected answer = %q, want empty", got)
	}
	m, _ = update(t, m, token("second try"))
	m, _ = update(t, m, graded(workflow.OutcomeNotUseful))
	m, _ = update(t, m, token("third try"))
	if got := m.LastAnswer(); got != "third try" {
		t.Errorf("LastAnswer() = %q, want only the newest generation", got)
	}

	m, _ = update(t, m, graded(workflow.OutcomeUseful))
	if got := m.LastAnswer(); got != "third try" {
		t.Errorf("LastAnswer() after a useful verdict = %q", got)
	}
}

func TestRegenerates(t *testing.T) {
	tests := []struct {
		step workflow.Step
		want bool
	}{
		{workflow.Step{Node: workflow.NodeGradeGeneration, Decision: string(workflow.OutcomeNotSupported)}, true},
		{workflow.Step{Node: workflow.NodeGradeGeneration, Decision: string(workflow.OutcomeNotUseful)}, true},
		{workflow.Step{Node: workflow.NodeGradeGeneration, Decision: string(workflow.OutcomeUseful)}, false},
		{workflow.Step{Node: workflow.NodeGradeGeneration, Decision: string(workflow.OutcomeMaxRetries)}, false},
		{workflow.Step{Node: workflow.NodeGradeGeneration}, false},
		{workflow.Step{Node: workflow.NodeGradeDocuments, Decision: string(workflow.OutcomeNotUseful)}, false},
	}
	for _, tt := range tests {
		if got := regenerates(tt.step); got != tt.want {
			t.Errorf("regenerates(%+v) = %v, want %v", tt.step, got, tt.want)
		}
	}
}

func TestRunFailed_Notices(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		wantErr bool
	}{
		{"stopped", workflow.ErrForceStopped, workflow.FinishForceStop, false},
		{"not supported", workflow.ErrNotSupported, "No supported answer", true},
		{"other", errors.New("ollama down"), "ollama down", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, newFakeController())
			m.run = &runState{question: "q", started: time.Now()}
			m, _ = update(t, m, RunEventMsg{Event: session.Event{Kind: session.EventFailed, Err: tt.err}})
			if m.Busy() {
				t.Error("Busy() = true after failure")
			}
			notice, isErr := m.Notice()
			if !strings.Contains(notice, tt.want) || isErr != tt.wantErr {
				t.Errorf("Notice() = %q, %v; want %q, %v", notice, isErr, tt.want, tt.wantErr)
			}
		})
	}
}

func TestStop(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlS))
	if ctrl.stopped != 0 {
		t.Error("ctrl+s with nothing running should not stop")
	}

	m.run = &runState{question: "q", started: time.Now()}
	_, _ = update(t, m, keyMsg(tea.KeyCtrlS))
	if ctrl.stopped != 1 {
		t.Errorf("stopped = %d, want 1", ctrl.stopped)
	}
}

func TestQuit_StopsRunningQuestion(t *testing.T) {
	ctrl := newFakeController()
	ctrl.busy = true
	m := newTestModel(t, ctrl)

	_, cmd := update(t, m, keyMsg(tea.KeyCtrlC))
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
	if ctrl.stopped != 1 {
		t.Errorf("stopped = %d, want 1", ctrl.stopped)
	}
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_RendersDetails(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m.currentID = 7
	m, _ = update(t, m, ChatOpenedMsg{ID: 7, Details: []storage.Detail{
		{Type: storage.ChatHuman, Content: "Who wrote it?"},
		{Type: storage.ChatAI, Content: "The author.", Model: "llama3.2", FinishReason: "stop", Elapsed: 1500 * time.Millisecond},
		{Type: storage.ChatHuman, Content: "When?"},
		{Type: storage.ChatAI, Content: "boom", Model: session.ModelUnavailable, FinishReason: session.FinishError},
	}})

	out := m.renderTranscript(80)
	for _, want := range []string{"You", "Who wrote it?", "The author.", "1.5s", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
	if got := m.LastAnswer(); got != "The author." {
		t.Errorf("LastAnswer() = %q, failed rows should be skipped", got)
	}
}

func TestChatOpened_IgnoresOtherChat(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m.currentID = 1
	m, _ = update(t, m, ChatOpenedMsg{ID: 2, Details: []storage.Detail{{Type: storage.ChatHuman, Content: "x"}}})
	if len(m.details) != 0 {
		t.Error("details of a chat that is no longer selected should be dropped")
	}
}

func TestCopyLastAnswer(t *testing.T) {
	var copied string
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = copyToClipboard })

	m := newTestModel(t, newFakeController())
	_, cmd := update(t, m, keyMsg(tea.KeyCtrlY))
	if cmd == nil {
		t.Fatal("ctrl+y returned no command")
	}
	m, _ = update(t, m, keyMsg(tea.KeyCtrlY))
	if notice, isErr := m.Notice(); !isErr || !strings.Contains(notice, "No answer") {
		t.Errorf("Notice() with nothing to copy = %q, %v", notice, isErr)
	}

	m.details = []storage.Detail{{Type: storage.ChatAI, Content: "héllo"}}
	_, cmd = update(t, m, keyMsg(tea.KeyCtrlY))
	msg, ok := cmd().(CopiedMsg)
	if !ok || msg.Err != nil || msg.Chars != 5 {
		t.Fatalf("copy cmd = %#v", msg)
	}
	if copied != "héllo" {
		t.Errorf("clipboard = %q", copied)
	}
}

// =============================================================================
// INGESTION TESTS
// =============================================================================

func TestIngestDialog(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlO))
	if m.Mode() != ModeIngest {
		t.Fatalf("Mode() = %v, want ModeIngest", m.Mode())
	}
	m.dialog.SetValue("/tmp/report.pdf")
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	if m.Mode() != ModeNormal || cmd == nil {
		t.Fatalf("enter: mode %v cmd %v", m.Mode(), cmd)
	}
	if notice, _ := m.Notice(); !strings.Contains(notice, "report.pdf") {
		t.Errorf("Notice() = %q", notice)
	}
}

func TestIngestEvents(t *testing.T) {
	m := newTestModel(t, newFakeController())

	m, _ = update(t, m, IngestEventMsg{Event: ingest.Event{Stage: ingest.StageStarted, Path: "/d/a.pdf"}})
	m, _ = update(t, m, IngestEventMsg{Event: ingest.Event{Stage: ingest.StageEmbedded, Path: "/d/a.pdf", Done: 5, Total: 10}})
	if !strings.Contains(m.View(), "5/10") {
		t.Error("the step line should show embedding progress")
	}
	if !strings.Contains(m.View(), "indexing") {
		t.Error("the status bar should show indexing")
	}

	m, _ = update(t, m, IngestEventMsg{Event: ingest.Event{
		Stage: ingest.StageFinished, Path: "/d/a.pdf",
		Result: &ingest.Result{Path: "/d/a.pdf", Chunks: 10, Elapsed: time.Second},
	}})
	if m.ingesting != nil {
		t.Error("ingesting should be cleared after the terminal event")
	}
	if notice, isErr := m.Notice(); isErr || !strings.Contains(notice, "10 chunks") {
		t.Errorf("Notice() = %q, %v", notice, isErr)
	}

	m, _ = update(t, m, IngestEventMsg{Event: ingest.Event{Stage: ingest.StageFailed, Path: "x", Err: errors.New("bad pdf")}})
	if notice, isErr := m.Notice(); !isErr || !strings.Contains(notice, "bad pdf") {
		t.Errorf("Notice() = %q, %v", notice, isErr)
	}
}

func TestNoticeExpires(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m.setNotice("first", false)
	seq := m.noticeSeq
	m.setNotice("second", false)

	m, _ = update(t, m, noticeExpiredMsg{seq: seq})
	if notice, _ := m.Notice(); notice != "second" {
		t.Errorf("an older expiry cleared the notice: %q", notice)
	}
	m, _ = update(t, m, noticeExpiredMsg{seq: m.noticeSeq})
	if notice, _ := m.Notice(); notice != "" {
		t.Errorf("Notice() = %q, want empty", notice)
	}
}
