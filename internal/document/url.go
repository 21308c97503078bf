// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// loadURL fetches a web page and keeps its visible text.
func (l *Loader) loadURL(ctx context.Context, rawURL string) ([]Document, error) {
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	limit := l.MaxURLBytes
	if limit <= 0 {
		limit = 10 << 20
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "ragrun/1.0 (+document ingestion)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", rawURL, resp.Status)
	}

	body := io.LimitReader(resp.Body, limit)
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
		}
		return []Document{{Content: string(data), Metadata: Metadata{Source: rawURL, Type: TypeURL}}}, nil
	}

	title, text, err := HTMLText(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	return []Document{{
		Content:  text,
		Metadata: Metadata{Source: rawURL, Type: TypeURL, Title: title},
	}}, nil
}

// skipped elements never contribute text.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "svg": true, "iframe": true, "nav": true, "footer": true,
}

// block elements end the current line.
var block = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "pre": true, "blockquote": true,
	"table": true, "ul": true, "ol": true, "hr": true,
}

// HTMLText parses an HTML document and returns its title and visible text,
// one line per block element.
func HTMLText(r io.Reader) (title, text string, err error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if n.Data == "head" {
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "title" && c.FirstChild != nil && title == "" {
						title = strings.TrimSpace(c.FirstChild.Data)
					}
				}
				return
			}
			if skipped[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				if b.Len() > 0 {
					last := b.String()[b.Len()-1]
					if last != '\n' && last != ' ' {
						b.WriteByte(' ')
					}
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(root)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return title, strings.Join(out, "\n"), nil
}
