// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session sits between the user interfaces and the services.
//
// # Key Types
//
//   - Runner: runs one workflow per question on its own goroutine
//   - Controller: chat presenter logic over storage, ingestion and the Runner
//   - Event: progress and completion of a run
//
// # Usage
//
//	ctrl := session.NewController(session.Options{Store: db, Runner: runner, Ingest: job})
//	ctrl.Ingest(ctx, "paper.pdf")
//	chatID, err := ctrl.Submit(ctx, "What is the main result?")
//	for ev := range ctrl.Events() {
//	    // EventStep, EventToken, EventResponse, EventFinished or EventFailed
//	}
//
// The AI row of an exchange is written before its EventFinished or
// EventFailed is delivered, so listeners can reload the chat from storage.
package session
