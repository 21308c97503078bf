// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/ragrun/internal/document"
	"github.com/jeranaias/ragrun/internal/util"
)

// formatDurationShort formats an elapsed time for display.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

// formatBytes formats a byte count for display.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func truncate(s string, n int) string {
	return util.OneLine(s, n)
}

func sourceLabel(m document.Metadata) string {
	src := m.Source
	if !strings.Contains(src, "://") {
		src = filepath.Base(src)
	}
	if m.Page > 0 {
		return fmt.Sprintf("%s p.%d", src, m.Page)
	}
	return src
}

// renderMarkdown renders md with glamour when stdout is a terminal and
// returns it unchanged otherwise.
func renderMarkdown(md string, wrap int) string {
	if !IsStdoutTTY() || !ColorsEnabled() {
		return md
	}
	if wrap <= 0 {
		wrap = GetTerminalWidth() - 4
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// writeOutput writes data to path atomically, or to stdout when path is
// empty or "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return util.AtomicWriteFile(path, data, 0o644)
}
