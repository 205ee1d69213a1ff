package pages

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/meshflash/internal/app"
	"github.com/buckleypaul/meshflash/internal/catalog"
)

func TestBoardsPageSelectsBoard(t *testing.T) {
	cat := catalog.MustLoad()
	p := NewBoardsPage(cat)

	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected selection command")
	}
	msg, ok := cmd().(app.BoardSelectedMsg)
	if !ok {
		t.Fatal("expected BoardSelectedMsg")
	}
	if msg.Board != cat.Boards()[1].ID {
		t.Fatalf("expected %q, got %q", cat.Boards()[1].ID, msg.Board)
	}
}

func TestBoardsPageFollowsSelection(t *testing.T) {
	cat := catalog.MustLoad()
	p := NewBoardsPage(cat)
	p.SetSize(120, 40)

	p.Update(app.BoardSelectedMsg{Board: "rak4631"})
	if p.boards[p.cursor].ID != "rak4631" {
		t.Fatalf("expected cursor on rak4631, got %q", p.boards[p.cursor].ID)
	}

	view := p.View()
	if !strings.Contains(view, "nordicnrf52") {
		t.Fatal("expected platform in details")
	}
	env, err := cat.EnvironmentName("rak4631", "repeater")
	if err != nil {
		t.Fatalf("EnvironmentName: %v", err)
	}
	if !strings.Contains(view, env) {
		t.Fatalf("expected environment %q in details", env)
	}
}
