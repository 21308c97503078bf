// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// UnableToFindAnswer is stored when no generation passed the graders.
	UnableToFindAnswer = "Unable to find an answer that matches the question. " +
		"Please ask a new question or adjust the Max Retry value."

	// ModelUnavailable is the model recorded on failed runs.
	ModelUnavailable = "N/A"

	// FinishError is the finish reason recorded on failed runs.
	FinishError = "error"
)

var (
	// ErrNotReady is returned by Submit before any document is ingested.
	ErrNotReady = errors.New("Run document ingestion first")

	// ErrEmptyQuestion is returned by Submit for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Store is the chat history used by the Controller.
type Store interface {
	CreateChat(ctx context.Context, title string) (*storage.Chat, error)
	RenameChat(ctx context.Context, id int64, title string) error
	DeleteChat(ctx context.Context, id int64) error
	GetChat(ctx context.Context, id int64) (*storage.Chat, error)
	ListChats(ctx context.Context, filter string) ([]storage.Chat, error)
	AddDetail(ctx context.Context, d storage.Detail) (*storage.Detail, error)
	ListDetails(ctx context.Context, chatID int64) ([]storage.Detail, error)
}

// Ingester runs document ingestion in the background.
type Ingester interface {
	Start(ctx context.Context, req ingest.Request)
	Current() *ingest.Result
	Running() bool
	Events() <-chan ingest.Event
}

// Options configure a Controller.
type Options struct {
	Store    Store
	Runner   *Runner
	Ingest   Ingester
	Settings ingest.Settings

	// MaxRetries overrides the workflow's retry budget when positive.
	MaxRetries int

	// Diagram is stored with every answer. Defaults to workflow.Diagram().
	Diagram string

	Logger *zap.Logger
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller holds the selected chat and turns user actions into storage
// writes, ingestions and workflow runs.
type Controller struct {
	store   Store
	runner  *Runner
	ingest  Ingester
	diagram string
	logger  *zap.Logger

	mu         sync.Mutex
	chatID     int64
	settings   ingest.Settings
	maxRetries int
}

// NewController returns a Controller with no chat selected.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	diagram := opts.Diagram
	if diagram == "" {
		diagram = workflow.Diagram()
	}
	return &Controller{
		store:      opts.Store,
		runner:     opts.Runner,
		ingest:     opts.Ingest,
		diagram:    diagram,
		logger:     logger,
		settings:   opts.Settings,
		maxRetries: opts.MaxRetries,
	}
}

// Events delivers workflow run events.
func (c *Controller) Events() <-chan Event {
	return c.runner.Events()
}

// IngestEvents delivers ingestion progress.
func (c *Controller) IngestEvents() <-chan ingest.Event {
	return c.ingest.Events()
}

// CurrentChat returns the selected chat id, or 0.
func (c *Controller) CurrentChat() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// SetMaxRetries changes the retry budget of future runs.
func (c *Controller) SetMaxRetries(n int) {
	c.mu.Lock()
	c.maxRetries = n
	c.mu.Unlock()
}

// SetSettings changes the document settings of future ingestions.
func (c *Controller) SetSettings(s ingest.Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
}

// Settings returns the document settings used by Ingest.
func (c *Controller) Settings() ingest.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// =============================================================================
// QUESTIONS
// =============================================================================

// Ready reports whether a document index is loaded.
func (c *Controller) Ready() bool {
	return c.ingest != nil && c.ingest.Current() != nil
}

// Index returns the active ingestion result, or nil.
func (c *Controller) Index() *ingest.Result {
	if c.ingest == nil {
		return nil
	}
	return c.ingest.Current()
}

// Busy reports whether a question is being answered.
func (c *Controller) Busy() bool {
	return c.runner.Busy()
}

// Submit records question in the selected chat, creating one if needed, and
// starts answering it. The chat id is returned.
func (c *Controller) Submit(ctx context.Context, question string) (int64, error) {
	if strings.TrimSpace(question) == "" {
		return 0, ErrEmptyQuestion
	}
	index := c.Index()
	if index == nil {
		return 0, ErrNotReady
	}

	c.mu.Lock()
	chatID := c.chatID
	maxRetries := c.maxRetries
	c.mu.Unlock()

	if chatID == 0 {
		chat, err := c.NewChat(ctx)
		if err != nil {
			return 0, err
		}
		chatID = chat.ID
	}

	if _, err := c.store.AddDetail(ctx, storage.Detail{
		ChatID:  chatID,
		Type:    storage.ChatHuman,
		Content: question,
	}); err != nil {
		return chatID, fmt.Errorf("save question: %w", err)
	}

	// The run outlives the request context of the caller.
	c.runner.Submit(context.WithoutCancel(ctx), Request{
		ChatID:   chatID,
		Question: question,
		Options: workflow.RunOptions{
			MaxRetries: maxRetries,
			Retriever:  index.Retriever,
		},
		OnDone: func(res *workflow.Result, err error) {
			c.recordAnswer(chatID, res, err)
		},
	})
	return chatID, nil
}

// Stop force-stops the running question.
func (c *Controller) Stop() {
	c.runner.Stop()
}

// AnswerDetail builds the AI row for a finished run.
func AnswerDetail(chatID int64, diagram string, res *workflow.Result, err error) storage.Detail {
	d := storage.Detail{ChatID: chatID, Type: storage.ChatAI}
	if res != nil {
		d.Elapsed = res.Elapsed
	}

	switch {
	case err == nil:
		d.Model = res.Model
		d.Content = res.Answer
		d.Image = diagram
		d.FinishReason = res.FinishReason
	case errors.Is(err, workflow.ErrForceStopped) && res != nil:
		d.Model = res.Model
		d.Content = res.Answer
		d.FinishReason = workflow.FinishForceStop
	case errors.Is(err, workflow.ErrNotSupported):
		d.Model = ModelUnavailable
		d.Content = UnableToFindAnswer
		d.FinishReason = FinishError
	default:
		d.Model = ModelUnavailable
		d.Content = err.Error()
		d.FinishReason = FinishError
	}
	return d
}

func (c *Controller) recordAnswer(chatID int64, res *workflow.Result, err error) {
	d := AnswerDetail(chatID, c.diagram, res, err)
	if _, serr := c.store.AddDetail(context.Background(), d); serr != nil {
		c.logger.Warn("failed to save answer",
			zap.Int64("chat_id", chatID),
			zap.Error(serr))
	}
}

// outcomeLabel names a run for the runs counter.
func outcomeLabel(res *workflow.Result, err error) string {
	switch {
	case errors.Is(err, workflow.ErrForceStopped):
		return "force_stop"
	case res != nil && res.Outcome != "" && (err == nil || errors.Is(err, workflow.ErrNotSupported)):
		return strings.ReplaceAll(string(res.Outcome), " ", "_")
	case err != nil:
		return FinishError
	}
	return "none"
}

// =============================================================================
// CHATS
// =============================================================================

// NewChat creates a chat titled "New Chat" and selects it.
func (c *Controller) NewChat(ctx context.Context) (*storage.Chat, error) {
	chat, err := c.store.CreateChat(ctx, storage.DefaultChatTitle)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.chatID = chat.ID
	c.mu.Unlock()
	return chat, nil
}

// SelectChat selects a chat and returns its messages.
func (c *Controller) SelectChat(ctx context.Context, id int64) ([]storage.Detail, error) {
	if _, err := c.store.GetChat(ctx, id); err != nil {
		return nil, err
	}
	details, err := c.store.ListDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.chatID = id
	c.mu.Unlock()
	return details, nil
}

// ClearSelection deselects the current chat; the next Submit starts a new one.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.chatID = 0
	c.mu.Unlock()
}

// RenameChat retitles a chat.
func (c *Controller) RenameChat(ctx context.Context, id int64, title string) error {
	return c.store.RenameChat(ctx, id, title)
}

// DeleteChat removes a chat, deselecting it if it was selected.
func (c *Controller) DeleteChat(ctx context.Context, id int64) error {
	if err := c.store.DeleteChat(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.chatID == id {
		c.chatID = 0
	}
	c.mu.Unlock()
	return nil
}

// FilterChats lists chats whose title contains filter, newest first.
func (c *Controller) FilterChats(ctx context.Context, filter string) ([]storage.Chat, error) {
	return c.store.ListChats(ctx, filter)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// Ingest starts preprocessing path with the current settings.
func (c *Controller) Ingest(ctx context.Context, path string) {
	c.ingest.Start(ctx, ingest.Request{Path: path, Settings: c.Settings()})
}
