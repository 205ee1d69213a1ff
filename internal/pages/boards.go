package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/meshflash/internal/app"
	"github.com/buckleypaul/meshflash/internal/catalog"
	"github.com/buckleypaul/meshflash/internal/ui"
)

// BoardsPage browses the catalog: boards on the left, the highlighted
// board's variants and environments on the right.
type BoardsPage struct {
	cat      *catalog.Catalog
	boards   []catalog.Board
	cursor   int
	selected string

	width, height int
}

func NewBoardsPage(cat *catalog.Catalog) *BoardsPage {
	return &BoardsPage{cat: cat, boards: cat.Boards()}
}

func (p *BoardsPage) Init() tea.Cmd { return nil }

func (p *BoardsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.BoardSelectedMsg:
		p.selected = msg.Board
		for i, b := range p.boards {
			if b.ID == msg.Board {
				p.cursor = i
			}
		}
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down":
			if p.cursor < len(p.boards)-1 {
				p.cursor++
			}
		case "enter":
			if len(p.boards) == 0 {
				return p, nil
			}
			id := p.boards[p.cursor].ID
			return p, func() tea.Msg { return app.BoardSelectedMsg{Board: id} }
		}
	}
	return p, nil
}

func (p *BoardsPage) View() string {
	listWidth := 34
	if listWidth > p.width/2 {
		listWidth = p.width / 2
	}

	// Keep the cursor inside the visible window.
	visible := p.height - 3
	if visible < 1 {
		visible = len(p.boards)
	}
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := start + visible
	if end > len(p.boards) {
		end = len(p.boards)
	}

	var list strings.Builder
	for i := start; i < end; i++ {
		b := p.boards[i]
		marker := "  "
		if b.ID == p.selected {
			marker = ui.AccentStyle.Render("● ")
		}
		name := b.Name
		if i == p.cursor {
			name = ui.FocusedLabelStyle.Render(name)
		}
		list.WriteString(marker + name + "\n")
	}

	left := ui.Panel("Boards", list.String(), listWidth, 0, true)
	right := ui.Panel("Details", p.details(), p.width-listWidth, 0, false)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (p *BoardsPage) details() string {
	if len(p.boards) == 0 {
		return ui.DimStyle.Render("Catalog is empty")
	}
	b := p.boards[p.cursor]

	var s strings.Builder
	fmt.Fprintf(&s, "%s\n", ui.BoldStyle.Render(b.Name))
	fmt.Fprintf(&s, "id:        %s\n", b.ID)
	fmt.Fprintf(&s, "platform:  %s\n", b.Platform)
	if b.PostProcess != "" {
		fmt.Fprintf(&s, "output:    %s\n", b.PostProcess)
	}
	s.WriteString("\n")
	for _, v := range p.cat.VariantsForBoard(b.ID) {
		env, err := p.cat.EnvironmentName(b.ID, v.ID)
		if err != nil {
			env = ui.ErrorStyle.Render("no environment")
		}
		fmt.Fprintf(&s, "%-16s %s\n", v.Name, ui.DimStyle.Render(env))
	}
	return s.String()
}

func (p *BoardsPage) Name() string { return "Boards" }

func (p *BoardsPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select board")),
	}
}

func (p *BoardsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
