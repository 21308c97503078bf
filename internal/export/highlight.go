// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"html"
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Chroma styles used for code blocks in each page theme.
const (
	codeStyleDark  = "monokai"
	codeStyleLight = "github"
)

// codeHighlighter renders fenced code blocks with chroma instead of
// goldmark's plain <pre><code>. Colors are inlined so the page stays
// standalone.
type codeHighlighter struct {
	style string
}

// highlighterPriority puts codeHighlighter ahead of goldmark's HTML
// renderer, which registers at 1000.
const highlighterPriority = 200

func newCodeHighlighter(theme string) util.PrioritizedValue {
	style := codeStyleDark
	if theme == "light" {
		style = codeStyleLight
	}
	return util.Prioritized(&codeHighlighter{style: style}, highlighterPriority)
}

func (h *codeHighlighter) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, h.renderFencedCode)
}

func (h *codeHighlighter) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var lang string
	if l := n.Language(source); l != nil {
		lang = string(l)
	}
	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	if err := highlightCode(w, code.String(), lang, h.style); err != nil {
		// Plain block, same markup goldmark would have written.
		_, _ = w.WriteString("<pre><code>" + html.EscapeString(code.String()) + "</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}

// highlightCode writes code as chroma HTML. The lexer comes from lang, or is
// guessed from the code.
func highlightCode(w io.Writer, code, lang, styleName string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.TabWidth(4)).Format(&buf, style, iterator); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}
