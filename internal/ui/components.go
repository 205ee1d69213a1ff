package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TitledTop draws the top edge of a rounded box of the given outer width
// with title set into it. A title that does not fit is dropped.
func TitledTop(title string, width int, color lipgloss.TerminalColor) string {
	b := lipgloss.RoundedBorder()
	edge := lipgloss.NewStyle().Foreground(color)
	if width < 2 {
		return ""
	}
	label := ""
	if title != "" {
		label = " " + title + " "
	}
	fill := width - 2 - 1 - lipgloss.Width(label)
	if label == "" || fill < 0 {
		return edge.Render(b.TopLeft + strings.Repeat(b.Top, width-2) + b.TopRight)
	}
	return edge.Render(b.TopLeft+b.Top) + label + edge.Render(strings.Repeat(b.Top, fill)+b.TopRight)
}

// Panel renders content in a rounded box of outer width with the title in
// the top edge. height 0 sizes the box to its content. Focused panels use
// the primary color.
func Panel(title, content string, width, height int, focused bool) string {
	color := lipgloss.TerminalColor(Subtle)
	if focused {
		color = Primary
	}

	body := lipgloss.NewStyle().
		Width(max(width-2, 0)).
		Border(lipgloss.RoundedBorder(), false, true, true, true).
		BorderForeground(color).
		Padding(0, 1)
	if height > 0 {
		body = body.Height(max(height-2, 0))
	}
	return TitledTop(title, width, color) + "\n" + body.Render(content)
}

// Title renders a page title.
func Title(text string) string {
	return TitleStyle.Render(text)
}

// StatusKey renders a key hint for the status bar.
func StatusKey(k, desc string) string {
	return StatusBarKeyStyle.Render(k) + StatusBarStyle.Render(":"+desc)
}

// Badge renders text on a colored background.
func Badge(text string, bg lipgloss.TerminalColor) string {
	return lipgloss.NewStyle().Foreground(OnBadge).Background(bg).Padding(0, 1).Render(text)
}

// OutcomeBadge renders a run outcome (success, failed, stopped, error).
func OutcomeBadge(outcome string) string {
	switch outcome {
	case "success":
		return Badge(outcome, Success)
	case "stopped":
		return Badge(outcome, Warning)
	case "":
		return Badge("unknown", Subtle)
	}
	return Badge(outcome, Error)
}

// Checkbox renders [x] or [ ].
func Checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}
