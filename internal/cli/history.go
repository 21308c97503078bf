// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - "ragrun history": browse and manage saved chats.
//
// Subcommands:
//
//	list [--filter TEXT]        List chats, newest first (default)
//	show <id> [--markdown]      Print a chat transcript
//	export <id> [file]          Write a chat as markdown, json or html
//	       [--format F] [--graph]
//	rename <id> <title>         Retitle a chat
//	delete <id>                 Delete a chat and its messages

package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/ragrun/internal/export"
	"github.com/jeranaias/ragrun/internal/storage"
)

const historyUsage = "ragrun history [list|show <id>|export <id> [file] [--format md|json|html] [--graph]|rename <id> <title>|delete <id>]"

// HandleHistory runs "ragrun history".
func HandleHistory(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "markdown", "md", "graph")

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	svc, err := OpenServices(ctx, cfg, ServiceOptions{Verbose: args.Verbose, Storage: true})
	if err != nil {
		return err
	}
	defer svc.Close()
	db := svc.DB

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		return historyList(ctx, db, args, p.Flag("filter", "f"))
	case "show", "view":
		id, err := ParseID(p.Positional(1), "chat id")
		if err != nil {
			return err
		}
		return historyShow(ctx, db, args, id, p.BoolFlag("markdown", "md"))
	case "export":
		id, err := ParseID(p.Positional(1), "chat id")
		if err != nil {
			return err
		}
		return historyExport(ctx, db, id, p.Positional(2), p.Flag("format"), p.BoolFlag("graph"))
	case "rename":
		id, err := ParseID(p.Positional(1), "chat id")
		if err != nil {
			return err
		}
		title := JoinPositionalArgs(p, 2)
		if title == "" {
			return ErrMissingArgument("title", "ragrun history rename 3 \"Quarterly report\"")
		}
		if err := db.RenameChat(ctx, id, title); err != nil {
			return err
		}
		return done(args, "history rename", fmt.Sprintf("Renamed chat %d", id), map[string]any{"id": id, "title": title})
	case "delete", "rm":
		id, err := ParseID(p.Positional(1), "chat id")
		if err != nil {
			return err
		}
		if err := db.DeleteChat(ctx, id); err != nil {
			return err
		}
		return done(args, "history delete", fmt.Sprintf("Deleted chat %d", id), map[string]any{"id": id})
	default:
		return ErrUnknownSubcommand("history", sub, historyUsage)
	}
}

func historyList(ctx context.Context, db *storage.DB, args Args, filter string) error {
	chats, err := db.ListChats(ctx, filter)
	if err != nil {
		return err
	}
	if args.JSON {
		if chats == nil {
			chats = []storage.Chat{}
		}
		return NewJSONResponse("history list", chats).Print()
	}
	fmt.Print(storage.FormatChatList(chats))
	return nil
}

func historyShow(ctx context.Context, db *storage.DB, args Args, id int64, markdown bool) error {
	chat, details, err := loadChat(ctx, db, id)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("history show", HistoryShowData{Chat: *chat, Details: details}).Print()
	}

	md := storage.ExportMarkdown(*chat, details)
	if markdown {
		fmt.Print(md)
		return nil
	}
	fmt.Print(renderMarkdown(md, 0))
	fmt.Println(DimStyle.Render(strconv.Itoa(len(details)) + " message(s)"))
	return nil
}

// historyExport writes chat id to file, or stdout when file is empty. The
// format comes from the flag, else from the file extension.
func historyExport(ctx context.Context, db *storage.DB, id int64, file, format string, graph bool) error {
	if format == "" {
		format = export.FormatFromPath(file)
	}
	e, err := export.New(format, &export.Options{IncludeGraph: graph, Theme: "dark", Now: time.Now})
	if err != nil {
		return NewValidationErrorWithExample("format", format, "use markdown, json or html", "ragrun history export 3 chat.html")
	}

	chat, details, err := loadChat(ctx, db, id)
	if err != nil {
		return err
	}
	out, err := e.Export(export.Transcript{Chat: *chat, Details: details})
	if err != nil {
		return fmt.Errorf("export chat %d: %w", id, err)
	}
	return writeOutput(file, out)
}

func loadChat(ctx context.Context, db *storage.DB, id int64) (*storage.Chat, []storage.Detail, error) {
	chat, err := db.GetChat(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	details, err := db.ListDetails(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return chat, details, nil
}

// done reports a successful mutation.
func done(args Args, command, msg string, data any) error {
	if args.JSON {
		return NewJSONResponse(command, data).Print()
	}
	fmt.Println(SuccessStyle.Render(msg))
	return nil
}
