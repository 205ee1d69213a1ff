// Package ui holds the shared palette and small rendering helpers.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Each color has a light and a dark terminal variant.
var (
	Primary   = lipgloss.AdaptiveColor{Light: "30", Dark: "43"}   // teal
	Secondary = lipgloss.AdaptiveColor{Light: "25", Dark: "75"}   // blue
	Accent    = lipgloss.AdaptiveColor{Light: "161", Dark: "211"} // rose
	Success   = lipgloss.AdaptiveColor{Light: "28", Dark: "78"}
	Warning   = lipgloss.AdaptiveColor{Light: "166", Dark: "214"}
	Error     = lipgloss.AdaptiveColor{Light: "160", Dark: "203"}
	Subtle    = lipgloss.AdaptiveColor{Light: "250", Dark: "241"}
	Surface   = lipgloss.AdaptiveColor{Light: "254", Dark: "236"}
	Text      = lipgloss.AdaptiveColor{Light: "235", Dark: "252"}
	TextDim   = lipgloss.AdaptiveColor{Light: "243", Dark: "245"}
	OnBadge   = lipgloss.AdaptiveColor{Light: "255", Dark: "230"}
)

// Shell.
var (
	SidebarStyle = lipgloss.NewStyle().
			Width(20).
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(Surface).
			Padding(1, 1)

	SidebarItemStyle   = lipgloss.NewStyle().Foreground(TextDim).PaddingLeft(1)
	SidebarActiveStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true).PaddingLeft(1)

	ContentStyle = lipgloss.NewStyle().Padding(1, 2)

	StatusBarStyle    = lipgloss.NewStyle().Foreground(TextDim).Background(Surface).Padding(0, 1)
	StatusBarKeyStyle = lipgloss.NewStyle().Foreground(Text).Background(Surface).Bold(true)

	TitleStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true).MarginBottom(1)
)

// Forms.
var (
	LabelStyle        = lipgloss.NewStyle().Foreground(Text)
	FocusedLabelStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	GroupStyle        = lipgloss.NewStyle().Foreground(Secondary).Bold(true).Underline(true)
	RequiredMark      = lipgloss.NewStyle().Foreground(Accent).Render("*")
)

// Text.
var (
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	DimStyle     = lipgloss.NewStyle().Foreground(TextDim)
	AccentStyle  = lipgloss.NewStyle().Foreground(Accent)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
)
