package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/buckleypaul/meshflash/internal/ui"
)

// PickerItem is one selectable row.
type PickerItem struct {
	Label string
	Value string
	Desc  string // optional, rendered dimmed after the label
}

// PickerKind says what a picker selects.
type PickerKind int

const (
	PickBoard PickerKind = iota
	PickVariant
	PickPort
)

var pickerNouns = map[PickerKind]string{
	PickBoard:   "boards",
	PickVariant: "variants",
	PickPort:    "ports",
}

// PickerSelectedMsg is sent when the user selects an item.
type PickerSelectedMsg struct {
	Kind  PickerKind
	Value string
}

// PickerClosedMsg is sent when the user closes the picker without selecting.
type PickerClosedMsg struct{}

// Picker is a fuzzy-filtered list shown over the content area. Matches are
// ranked so prefix and word-start hits come first.
type Picker struct {
	kind    PickerKind
	title   string
	items   []PickerItem
	matches []PickerItem
	query   textinput.Model
	cursor  int
	offset  int
	width   int
	height  int
}

const pickerRows = 12

func NewPicker(kind PickerKind, title string, items []PickerItem) *Picker {
	q := textinput.New()
	q.Placeholder = "type to filter..."
	q.Prompt = "/ "
	q.CharLimit = 64
	q.Focus()

	p := &Picker{kind: kind, title: title, query: q}
	p.SetItems(items)
	return p
}

// SetItems replaces the list and re-applies the current filter.
func (p *Picker) SetItems(items []PickerItem) {
	p.items = items
	p.refilter()
}

func (p *Picker) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *Picker) Update(msg tea.Msg) (*Picker, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return p, func() tea.Msg { return PickerClosedMsg{} }
		case "enter":
			if p.cursor >= len(p.matches) {
				return p, nil
			}
			sel := PickerSelectedMsg{Kind: p.kind, Value: p.matches[p.cursor].Value}
			return p, func() tea.Msg { return sel }
		case "up", "ctrl+p":
			p.move(-1)
			return p, nil
		case "down", "ctrl+n":
			p.move(1)
			return p, nil
		case "pgup":
			p.move(-pickerRows)
			return p, nil
		case "pgdown":
			p.move(pickerRows)
			return p, nil
		}
	}

	before := p.query.Value()
	var cmd tea.Cmd
	p.query, cmd = p.query.Update(msg)
	if p.query.Value() != before {
		p.cursor, p.offset = 0, 0
		p.refilter()
	}
	return p, cmd
}

func (p *Picker) move(delta int) {
	if len(p.matches) == 0 {
		return
	}
	p.cursor = clamp(p.cursor+delta, 0, len(p.matches)-1)
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+pickerRows {
		p.offset = p.cursor - pickerRows + 1
	}
}

func (p *Picker) refilter() {
	query := strings.ToLower(strings.TrimSpace(p.query.Value()))
	if query == "" {
		p.matches = p.items
	} else {
		type hit struct {
			item  PickerItem
			score int
		}
		var hits []hit
		for _, item := range p.items {
			best, ok := matchScore(strings.ToLower(item.Label), query)
			if s, vok := matchScore(strings.ToLower(item.Value), query); vok && (!ok || s > best) {
				best, ok = s, true
			}
			if ok {
				hits = append(hits, hit{item, best})
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
		p.matches = make([]PickerItem, len(hits))
		for i, h := range hits {
			p.matches[i] = h.item
		}
	}
	p.cursor = clamp(p.cursor, 0, max(len(p.matches)-1, 0))
	p.offset = clamp(p.offset, 0, p.cursor)
}

// matchScore reports whether every rune of query appears in s in order,
// and how good the match is. Consecutive runs, word starts and an exact
// prefix score higher; gaps cost a point each.
func matchScore(s, query string) (int, bool) {
	if strings.HasPrefix(s, query) {
		return 1000 - len(s), true
	}
	text, q := []rune(s), []rune(query)
	score, qi, last := 0, 0, -1
	for i := 0; i < len(text) && qi < len(q); i++ {
		if text[i] != q[qi] {
			continue
		}
		switch {
		case last >= 0 && i == last+1:
			score += 8
		case i == 0 || isWordBreak(text[i-1]):
			score += 6
		default:
			score++
		}
		if last >= 0 {
			score -= i - last - 1
		}
		last = i
		qi++
	}
	return score, qi == len(q)
}

func isWordBreak(r rune) bool {
	return r == ' ' || r == '_' || r == '-' || r == '/' || r == '.'
}

func (p *Picker) View() string {
	boxWidth := clamp(p.width-4, 30, 60)
	inner := boxWidth - 4 // border + padding

	var b strings.Builder
	p.query.Width = inner - lipgloss.Width(p.query.Prompt) - 1
	b.WriteString(p.query.View())
	b.WriteString("\n\n")

	end := min(p.offset+pickerRows, len(p.matches))
	selected := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)
	for i := p.offset; i < end; i++ {
		item := p.matches[i]
		label := truncate.StringWithTail(item.Label, uint(inner-2), "…")
		if item.Desc != "" && lipgloss.Width(label)+len(item.Desc)+3 <= inner {
			label += " " + ui.DimStyle.Render(item.Desc)
		}
		if i == p.cursor {
			b.WriteString(selected.Render("▸ ") + label)
		} else {
			b.WriteString("  " + label)
		}
		b.WriteString("\n")
	}
	if len(p.matches) == 0 {
		b.WriteString(ui.DimStyle.Render("  No matches") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render(fmt.Sprintf("%d/%d %s  enter:select  esc:close",
		len(p.matches), len(p.items), pickerNouns[p.kind])))

	body := lipgloss.NewStyle().
		Width(boxWidth).
		Border(lipgloss.RoundedBorder(), false, true, true, true).
		BorderForeground(ui.Primary).
		Padding(1, 1).
		Render(b.String())

	return ui.TitledTop(p.title, lipgloss.Width(body), ui.Primary) + "\n" + body
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
