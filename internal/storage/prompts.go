// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Defaults for a saved prompt added without content.
const (
	DefaultPromptTitle = "New Title"
	DefaultPromptBody  = "New Prompt"
)

// Prompt is a saved question in the prompt library.
type Prompt struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Body  string `json:"prompt"`
}

// ListPrompts returns the library in insertion order.
func (d *DB) ListPrompts(ctx context.Context) ([]Prompt, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, title, prompt FROM prompt ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Title, &p.Body); err != nil {
			return nil, fmt.Errorf("list prompts: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return prompts, nil
}

// GetPrompt loads a single saved prompt.
func (d *DB) GetPrompt(ctx context.Context, id int64) (*Prompt, error) {
	var p Prompt
	err := d.db.QueryRowContext(ctx, `SELECT id, title, prompt FROM prompt WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get prompt %d: %w", id, ErrPromptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt %d: %w", id, err)
	}
	return &p, nil
}

// AddPrompt inserts a saved prompt, filling blank fields with the defaults.
func (d *DB) AddPrompt(ctx context.Context, title, body string) (*Prompt, error) {
	p := Prompt{Title: orDefault(title, DefaultPromptTitle), Body: orDefault(body, DefaultPromptBody)}
	res, err := d.db.ExecContext(ctx, `INSERT INTO prompt (title, prompt) VALUES (?, ?)`, p.Title, p.Body)
	if err != nil {
		return nil, fmt.Errorf("add prompt: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("add prompt: %w", err)
	}
	return &p, nil
}

// UpdatePrompt overwrites the title and body of p.ID.
func (d *DB) UpdatePrompt(ctx context.Context, p Prompt) error {
	res, err := d.db.ExecContext(ctx, `UPDATE prompt SET title = ?, prompt = ? WHERE id = ?`,
		orDefault(p.Title, DefaultPromptTitle), orDefault(p.Body, DefaultPromptBody), p.ID)
	if err != nil {
		return fmt.Errorf("update prompt %d: %w", p.ID, err)
	}
	if err := affected(res, ErrPromptNotFound); err != nil {
		return fmt.Errorf("update prompt %d: %w", p.ID, err)
	}
	return nil
}

// DeletePrompt removes a saved prompt.
func (d *DB) DeletePrompt(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM prompt WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete prompt %d: %w", id, err)
	}
	if err := affected(res, ErrPromptNotFound); err != nil {
		return fmt.Errorf("delete prompt %d: %w", id, err)
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
