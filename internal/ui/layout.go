// Package ui holds the frame shared by every TaskHub screen.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/theme"
)

// Layout is the terminal split into a one-line header, the content area
// and a one-line status bar.
type Layout struct {
	Width  int
	Height int
}

const (
	headerHeight    = 1
	statusBarHeight = 1
	minContent      = 3
)

// NewLayout creates a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth returns the width available to views.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left between the header and the status
// bar. Tiny terminals still get a few rows.
func (l Layout) ContentHeight() int {
	return max(l.Height-headerHeight-statusBarHeight, minContent)
}

// RenderHeader renders the title on the left and the session summary on
// the right.
func (l Layout) RenderHeader(title, session string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(session)
	return l.bar(theme.HeaderStyle, left, right)
}

// RenderStatusBar renders the key hints.
func (l Layout) RenderStatusBar(hints string) string {
	return l.bar(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), "")
}

// RenderErrorBar replaces the status bar while an operation error is
// shown.
func (l Layout) RenderErrorBar(message string) string {
	return l.bar(theme.ErrorBarStyle, theme.ErrorBarStyle.Render(message), "")
}

// bar fills the gap between left and right with style's background so the
// bar spans the full width.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
