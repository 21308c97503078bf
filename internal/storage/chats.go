// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// =============================================================================
// TYPES
// =============================================================================

// DefaultChatTitle is the title of a chat created without one.
const DefaultChatTitle = "New Chat"

// ChatType marks who wrote a chat_detail row.
type ChatType string

const (
	ChatHuman ChatType = "HUMAN"
	ChatAI    ChatType = "AI"
)

// Valid reports whether t is HUMAN or AI.
func (t ChatType) Valid() bool {
	return t == ChatHuman || t == ChatAI
}

// Chat is a chat_main row.
type Chat struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Detail is a single message of a chat.
type Detail struct {
	ID     int64    `json:"id"`
	ChatID int64    `json:"chat_id"`
	Type   ChatType `json:"chat_type"`
	Model  string   `json:"chat_model,omitempty"`

	// Content is the question or the answer text.
	Content string `json:"chat"`

	// Image holds the Mermaid source of the graph that produced an answer.
	Image string `json:"image_data,omitempty"`

	Elapsed      time.Duration `json:"elapsed_time"`
	FinishReason string        `json:"finish_reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// =============================================================================
// CHATS
// =============================================================================

// CreateChat inserts a chat. An empty title becomes DefaultChatTitle.
func (d *DB) CreateChat(ctx context.Context, title string) (*Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultChatTitle
	}
	now := time.Now().UTC()

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO chat_main (title, created_at) VALUES (?, ?)`,
		title, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	d.logger.Debug("chat created", zap.Int64("chat_id", id), zap.String("title", title))
	return &Chat{ID: id, Title: title, CreatedAt: now}, nil
}

// RenameChat changes a chat's title.
func (d *DB) RenameChat(ctx context.Context, id int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultChatTitle
	}
	res, err := d.db.ExecContext(ctx, `UPDATE chat_main SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("rename chat %d: %w", id, err)
	}
	if err := affected(res, ErrChatNotFound); err != nil {
		return fmt.Errorf("rename chat %d: %w", id, err)
	}
	return nil
}

// DeleteChat removes a chat and, through the foreign key, its details.
func (d *DB) DeleteChat(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM chat_main WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat %d: %w", id, err)
	}
	if err := affected(res, ErrChatNotFound); err != nil {
		return fmt.Errorf("delete chat %d: %w", id, err)
	}
	d.logger.Debug("chat deleted", zap.Int64("chat_id", id))
	return nil
}

// GetChat loads a single chat.
func (d *DB) GetChat(ctx context.Context, id int64) (*Chat, error) {
	var (
		c       Chat
		created string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM chat_main WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get chat %d: %w", id, ErrChatNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", id, err)
	}
	c.CreatedAt = parseTime(created)
	return &c, nil
}

// ListChats returns chats whose title contains filter, newest first.
// An empty filter returns every chat.
func (d *DB) ListChats(ctx context.Context, filter string) ([]Chat, error) {
	query := `SELECT id, title, created_at FROM chat_main`
	var args []any
	if filter = strings.TrimSpace(filter); filter != "" {
		query += ` WHERE title LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(filter)+"%")
	}
	query += ` ORDER BY id DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var (
			c       Chat
			created string
		)
		if err := rows.Scan(&c.ID, &c.Title, &created); err != nil {
			return nil, fmt.Errorf("list chats: %w", err)
		}
		c.CreatedAt = parseTime(created)
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// =============================================================================
// DETAILS
// =============================================================================

// AddDetail appends a message to a chat. The returned copy carries the new
// id and creation time.
func (d *DB) AddDetail(ctx context.Context, detail Detail) (*Detail, error) {
	if !detail.Type.Valid() {
		return nil, fmt.Errorf("add detail: %w: %q", ErrInvalidChatType, detail.Type)
	}
	if detail.CreatedAt.IsZero() {
		detail.CreatedAt = time.Now().UTC()
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO chat_detail
			(chat_main_id, chat_type, chat_model, chat, image_data, elapsed_time, finish_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		detail.ChatID, string(detail.Type), detail.Model, detail.Content, detail.Image,
		detail.Elapsed.Seconds(), detail.FinishReason, formatTime(detail.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("add detail to chat %d: %w", detail.ChatID, ErrChatNotFound)
		}
		return nil, fmt.Errorf("add detail to chat %d: %w", detail.ChatID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("add detail to chat %d: %w", detail.ChatID, err)
	}
	detail.ID = id
	return &detail, nil
}

// ListDetails returns the messages of a chat in insertion order.
func (d *DB) ListDetails(ctx context.Context, chatID int64) ([]Detail, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, chat_main_id, chat_type, chat_model, chat, image_data, elapsed_time, finish_reason, created_at
		FROM chat_detail WHERE chat_main_id = ? ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list details of chat %d: %w", chatID, err)
	}
	defer rows.Close()

	var details []Detail
	for rows.Next() {
		var (
			dt       Detail
			chatType string
			elapsed  float64
			created  string
		)
		if err := rows.Scan(&dt.ID, &dt.ChatID, &chatType, &dt.Model, &dt.Content,
			&dt.Image, &elapsed, &dt.FinishReason, &created); err != nil {
			return nil, fmt.Errorf("list details of chat %d: %w", chatID, err)
		}
		dt.Type = ChatType(chatType)
		dt.Elapsed = time.Duration(elapsed * float64(time.Second))
		dt.CreatedAt = parseTime(created)
		details = append(details, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list details of chat %d: %w", chatID, err)
	}
	return details, nil
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY"))
}
