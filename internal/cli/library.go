// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// library.go - "ragrun library": the saved prompt library.
//
// Subcommands:
//
//	list                                    List saved prompts (default)
//	show <id>                               Print one prompt
//	add [--title T] [--prompt P]            Save a prompt
//	update <id> [--title T] [--prompt P]    Edit a prompt; omitted fields are kept
//	delete <id>                             Remove a prompt

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/util"
)

const libraryUsage = "ragrun library [list|show <id>|add|update <id>|delete <id>] [--title T] [--prompt P]"

// HandleLibrary runs "ragrun library".
func HandleLibrary(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)

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
		items, err := db.ListPrompts(ctx)
		if err != nil {
			return err
		}
		if args.JSON {
			if items == nil {
				items = []storage.Prompt{}
			}
			return NewJSONResponse("library list", items).Print()
		}
		printLibrary(items)
		return nil

	case "show":
		id, err := ParseID(p.Positional(1), "prompt id")
		if err != nil {
			return err
		}
		item, err := db.GetPrompt(ctx, id)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("library show", item).Print()
		}
		fmt.Println(SectionStyle.Render(item.Title))
		fmt.Println(item.Body)
		return nil

	case "add", "new":
		body := p.Flag("prompt", "p")
		if body == "" {
			body = JoinPositionalArgs(p, 1)
		}
		item, err := db.AddPrompt(ctx, p.Flag("title", "t"), body)
		if err != nil {
			return err
		}
		return done(args, "library add", fmt.Sprintf("Saved prompt %d: %s", item.ID, item.Title), item)

	case "update", "edit":
		id, err := ParseID(p.Positional(1), "prompt id")
		if err != nil {
			return err
		}
		item, err := db.GetPrompt(ctx, id)
		if err != nil {
			return err
		}
		if p.HasFlag("title") || p.HasFlag("t") {
			item.Title = p.Flag("title", "t")
		}
		if p.HasFlag("prompt") || p.HasFlag("p") {
			item.Body = p.Flag("prompt", "p")
		}
		if err := db.UpdatePrompt(ctx, *item); err != nil {
			return err
		}
		return done(args, "library update", fmt.Sprintf("Updated prompt %d", id), item)

	case "delete", "rm":
		id, err := ParseID(p.Positional(1), "prompt id")
		if err != nil {
			return err
		}
		if err := db.DeletePrompt(ctx, id); err != nil {
			return err
		}
		return done(args, "library delete", fmt.Sprintf("Deleted prompt %d", id), map[string]any{"id": id})

	default:
		return ErrUnknownSubcommand("library", sub, libraryUsage)
	}
}

func printLibrary(items []storage.Prompt) {
	if len(items) == 0 {
		fmt.Println("No saved prompts. Add one with: ragrun library add --title T --prompt P")
		return
	}
	fmt.Println(TitleStyle.Render("Saved prompts"))
	for _, it := range items {
		fmt.Printf("  %s  %s  %s\n",
			DimStyle.Render(fmt.Sprintf("%4s", strconv.FormatInt(it.ID, 10))),
			ValueStyle.Render(util.TruncateWidth(it.Title, 30)),
			DimStyle.Render(util.OneLine(it.Body, 50)))
	}
}
