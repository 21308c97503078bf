// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat history persistence for ragrun.
//
// History lives in a single SQLite database opened through modernc.org/sqlite.
// The schema is applied on Open by golang-migrate from the embedded
// migrations directory.
//
// # Tables
//
//   - chat_main: one row per chat, with its title
//   - chat_detail: the HUMAN and AI messages of a chat
//   - prompt: the saved-prompt library
//
// # Usage
//
// Open the database and record an exchange:
//
//	db, err := storage.Open(ctx, cfg.Storage.DatabasePath, logger)
//	chat, err := db.CreateChat(ctx, storage.DefaultChatTitle)
//	_, err = db.AddDetail(ctx, storage.Detail{ChatID: chat.ID, Type: storage.ChatHuman, Content: q})
//
// List chats, newest first:
//
//	chats, err := db.ListChats(ctx, "filter")
//
// Deleting a chat removes its details through ON DELETE CASCADE.
package storage
