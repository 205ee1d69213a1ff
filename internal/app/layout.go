package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/meshflash/internal/ui"
)

const sidebarWidth = 22 // 20 content + 2 border/padding

func renderSelectionBar(board, variant, port, env string, width int, sidebarFocused bool) string {
	display := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}
	content := fmt.Sprintf("Board: %s  Variant: %s  Port: %s", display(board), display(variant), display(port))
	if env != "" {
		content += "  " + ui.DimStyle.Render("env "+env)
	}
	hint := ""
	if sidebarFocused {
		hint = ui.DimStyle.Render("  [b] board  [v] variant  [p] port")
	}
	return ui.StatusBarStyle.Width(width).Render(content + hint)
}

func renderSidebar(pages []PageID, active PageID, pageMap map[PageID]Page, height int, focused bool) string {
	var b strings.Builder
	if focused {
		b.WriteString(ui.BoldStyle.Render("meshflash *"))
	} else {
		b.WriteString(ui.TitleStyle.Render("meshflash"))
	}
	b.WriteString("\n\n")

	for _, id := range pages {
		p := pageMap[id]
		if p == nil {
			continue
		}
		if id == active {
			b.WriteString(ui.SidebarActiveStyle.Render("▸ " + p.Name()))
		} else {
			b.WriteString(ui.SidebarItemStyle.Render("  " + p.Name()))
		}
		b.WriteString("\n")
	}

	style := ui.SidebarStyle.Height(height)
	if focused {
		style = style.BorderForeground(ui.Primary)
	}
	return style.Render(b.String())
}

func renderStatusBar(pageHelp []key.Binding, width int, focus FocusArea) string {
	var parts []string

	if focus == FocusSidebar {
		parts = append(parts,
			ui.StatusKey("↑/↓", "navigate"),
			ui.StatusKey("enter", "select"),
			ui.StatusKey("b", "board"),
			ui.StatusKey("v", "variant"),
		)
	} else {
		for _, kb := range pageHelp {
			if kb.Enabled() {
				parts = append(parts, ui.StatusKey(kb.Help().Key, kb.Help().Desc))
			}
		}
	}

	parts = append(parts,
		ui.StatusKey("tab", "focus"),
		ui.StatusKey("?", "help"),
		ui.StatusKey("q", "quit"),
	)

	return ui.StatusBarStyle.Width(width).Render(strings.Join(parts, "  "))
}

// renderHelp lists every binding of the active page plus the global ones.
func renderHelp(pageName string, pageHelp []key.Binding, width int) string {
	var b strings.Builder
	row := func(k, desc string) {
		b.WriteString(fmt.Sprintf("%-10s %s\n", ui.BoldStyle.Render(k), desc))
	}
	for _, kb := range pageHelp {
		row(kb.Help().Key, kb.Help().Desc)
	}
	b.WriteString("\n")
	for _, kb := range []key.Binding{GlobalKeys.ToggleFocus, GlobalKeys.BoardPicker, GlobalKeys.VariantPicker, GlobalKeys.PortPicker, GlobalKeys.Help, GlobalKeys.Quit} {
		row(kb.Help().Key, kb.Help().Desc)
	}
	w := width - 4
	if w > 60 {
		w = 60
	}
	return ui.Panel(pageName+" keys", b.String(), w, 0, true)
}

func renderLayout(selectionBar, sidebar, content, statusBar string) string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, selectionBar, main, statusBar)
}
