// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the ragrun TUI.

All colors are lipgloss AdaptiveColors, so they follow the terminal's light
or dark background. Theme bundles the styles of the chat screen:

	theme := styles.NewTheme()
	theme.SetSize(msg.Width, msg.Height)
	listWidth := theme.ChatListWidth(focused)

Status markers ([OK], [X], [!]) accompany every status color so states are
readable without color. Spinner frames and the progress bar are ASCII.
*/
package styles
