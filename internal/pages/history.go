package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/meshflash/internal/app"
	"github.com/buckleypaul/meshflash/internal/store"
	"github.com/buckleypaul/meshflash/internal/ui"
)

const historyLimit = 50

type historyLoadedMsg struct {
	builds  []store.BuildRecord
	flashes []store.FlashRecord
	err     error
}

// HistoryPage lists recent builds and flashes, newest first.
type HistoryPage struct {
	store       *store.Store
	builds      []store.BuildRecord
	flashes     []store.FlashRecord
	showFlashes bool
	cursor      int
	expanded    bool

	width, height int
	message       string
}

func NewHistoryPage(st *store.Store) *HistoryPage {
	return &HistoryPage{store: st}
}

func (p *HistoryPage) Init() tea.Cmd { return p.load() }

func (p *HistoryPage) load() tea.Cmd {
	st := p.store
	if st == nil {
		return nil
	}
	return func() tea.Msg {
		builds, err := st.RecentBuilds(historyLimit)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		flashes, err := st.RecentFlashes(historyLimit)
		return historyLoadedMsg{builds: builds, flashes: flashes, err: err}
	}
}

func (p *HistoryPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.HistoryChangedMsg:
		return p, p.load()

	case historyLoadedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Error loading history: %v", msg.err)
			return p, nil
		}
		p.message = ""
		p.builds = msg.builds
		p.flashes = msg.flashes
		p.clampCursor()
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down":
			if p.cursor < p.count()-1 {
				p.cursor++
			}
		case "f":
			p.showFlashes = !p.showFlashes
			p.cursor = 0
			p.expanded = false
		case "enter":
			p.expanded = !p.expanded
		case "r":
			return p, p.load()
		}
	}
	return p, nil
}

func (p *HistoryPage) count() int {
	if p.showFlashes {
		return len(p.flashes)
	}
	return len(p.builds)
}

func (p *HistoryPage) clampCursor() {
	if p.cursor >= p.count() {
		p.cursor = p.count() - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func (p *HistoryPage) recordAt(i int) (store.BuildRecord, string) {
	if p.showFlashes {
		f := p.flashes[i]
		return f.BuildRecord, f.Port
	}
	return p.builds[i], ""
}

func (p *HistoryPage) View() string {
	var b strings.Builder
	title := "Builds"
	if p.showFlashes {
		title = "Flashes"
	}

	if p.message != "" {
		b.WriteString(p.message + "\n\n")
	}
	if p.count() == 0 {
		b.WriteString(ui.DimStyle.Render("Nothing recorded yet."))
		return ui.Panel(title, b.String(), p.width, 0, true)
	}

	for i := 0; i < p.count(); i++ {
		rec, port := p.recordAt(i)
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}
		line := fmt.Sprintf("%s  %-18s %-16s %8s",
			rec.Timestamp.Local().Format("2006-01-02 15:04"), rec.Board, rec.Variant, rec.Duration)
		if port != "" {
			line += "  " + port
		}
		b.WriteString(cursor + ui.OutcomeBadge(rec.Outcome) + " " + line + "\n")

		if i == p.cursor && p.expanded {
			b.WriteString(p.details(rec))
		}
	}
	return ui.Panel(title, b.String(), p.width, 0, true)
}

func (p *HistoryPage) details(rec store.BuildRecord) string {
	var b strings.Builder
	indent := "      "
	fmt.Fprintf(&b, "%sid:   %s\n", indent, rec.RequestID)
	fmt.Fprintf(&b, "%senv:  %s\n", indent, rec.Env)
	if rec.ExitCode != 0 {
		fmt.Fprintf(&b, "%sexit: %d\n", indent, rec.ExitCode)
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "%s%s\n", indent, ui.ErrorStyle.Render(rec.Error))
	}
	for _, f := range rec.Flags {
		fmt.Fprintf(&b, "%s%s\n", indent, ui.DimStyle.Render("-D"+f))
	}
	return b.String()
}

func (p *HistoryPage) Name() string { return "History" }

func (p *HistoryPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "builds/flashes")),
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
}

func (p *HistoryPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
