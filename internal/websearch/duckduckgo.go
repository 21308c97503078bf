// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DuckDuckGoEndpoint is the keyless HTML search endpoint.
const DuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

const ddgUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DuckDuckGo scrapes the DuckDuckGo HTML results page. It needs no API key.
// The result Content is the snippet shown under each link.
type DuckDuckGo struct {
	// Endpoint overrides DuckDuckGoEndpoint (tests).
	Endpoint string

	client *http.Client
}

// NewDuckDuckGo returns a DuckDuckGo searcher. A zero timeout means 15s.
func NewDuckDuckGo(timeout time.Duration) *DuckDuckGo {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DuckDuckGo{
		Endpoint: DuckDuckGoEndpoint,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

// Search fetches the results page and returns up to k results.
func (d *DuckDuckGo) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = 3
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	// Leave Accept-Encoding to net/http so it decompresses transparently.
	req.Header.Set("User-Agent", ddgUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo search: HTTP %d", resp.StatusCode)
	}

	results, err := ParseDuckDuckGo(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ParseDuckDuckGo extracts results from a DuckDuckGo HTML page:
//
//	<a class="result__a" href="//duckduckgo.com/l/?uddg=URL">Title</a>
//	<a class="result__snippet" href="...">Snippet</a>
//
// A snippet attaches to the most recent title link.
func ParseDuckDuckGo(r io.Reader) ([]Result, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var (
		results []Result
		current *Result
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				if current != nil {
					results = append(results, *current)
					current = nil
				}
				if u := actualURL(attr(n, "href")); u != "" {
					if title := textOf(n); title != "" {
						current = &Result{Title: title, URL: u}
					}
				}
				return
			case hasClass(n, "result__snippet"):
				if current != nil {
					current.Content = textOf(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if current != nil {
		results = append(results, *current)
	}

	return results, nil
}

// actualURL unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=ENCODED redirect.
func actualURL(href string) string {
	if strings.Contains(href, "uddg=") {
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return ""
		}
		if u := parsed.Query().Get("uddg"); u != "" {
			return u
		}
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textOf returns the text under n with whitespace collapsed.
func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
