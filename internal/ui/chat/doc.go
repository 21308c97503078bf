// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat implements the ragrun terminal UI as a Bubble Tea model.

# Layout

	+-----------------+---------------------------------------+
	| Chats           | transcript (viewport, glamour)        |
	| filter: ...     |                                       |
	| > Chat title    |                                       |
	|   Other chat    | | grading documents  3.2s             |
	|                 | +-------------------------------------+
	|                 | textarea                              |
	+-----------------+---------------------------------------+
	model llama3.2 | store hnsw | chunks 120 | [OK] index ready
	enter ask  ctrl+s stop  ctrl+n new  ...

# Wiring

The model drives a session.Controller. Questions are submitted with
Controller.Submit and their progress arrives on Controller.Events, which the
model reads with one outstanding tea.Cmd at a time. Ingestion progress is read
the same way from Controller.IngestEvents. Chat list and transcript are
reloaded from storage after every finished run, so what is shown is always
what was saved.

# Keys

	enter    ask the question in the input (opens the chat when the list has focus)
	ctrl+s   force-stop the running question
	ctrl+n   start a new chat
	ctrl+d   delete the selected chat
	ctrl+r   rename the selected chat
	ctrl+f   filter the chat list
	ctrl+o   ingest a document
	ctrl+y   copy the last answer to the clipboard
	tab      switch focus between input and chat list
	ctrl+c   quit
*/
package chat
