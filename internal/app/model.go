package app

import (
	"io"
	"sort"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/buckleypaul/meshflash/internal/catalog"
	"github.com/buckleypaul/meshflash/internal/config"
	"github.com/buckleypaul/meshflash/internal/serial"
	"github.com/buckleypaul/meshflash/internal/ui"
)

type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusContent
)

// Options configure the root model.
type Options struct {
	Catalog *catalog.Catalog
	// Selection is the board and variant restored from config.
	Selection config.Selection
	// ConfigPath receives the selection whenever it changes; empty disables
	// persistence.
	ConfigPath string
	// ListPorts feeds the port picker; defaults to serial.ListPorts.
	ListPorts func() ([]serial.PortInfo, error)
	Logger    *log.Logger
}

type Model struct {
	pages           map[PageID]Page
	activePage      PageID
	focus           FocusArea
	width           int
	height          int
	showHelp        bool
	selectedBoard   string
	selectedVariant string
	selectedPort    string
	picker          *Picker
	cat             *catalog.Catalog
	cfgPath         string
	listPorts       func() ([]serial.PortInfo, error)
	log             *log.Logger
}

func New(pages map[PageID]Page, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	listPorts := opts.ListPorts
	if listPorts == nil {
		listPorts = serial.ListPorts
	}
	m := Model{
		pages:        pages,
		cat:          opts.Catalog,
		cfgPath:      opts.ConfigPath,
		listPorts:    listPorts,
		log:          logger,
		activePage:   PageOrder[0],
		selectedPort: opts.Selection.Port,
	}
	if _, err := m.cat.Board(opts.Selection.Board); err == nil {
		m.selectedBoard = opts.Selection.Board
	}
	if m.variantAllowed(opts.Selection.Variant) {
		m.selectedVariant = opts.Selection.Variant
	}
	return m
}

// Selection returns the current board and variant.
func (m Model) Selection() (board, variant string) {
	return m.selectedBoard, m.selectedVariant
}

// Port returns the selected serial port.
func (m Model) Port() string {
	return m.selectedPort
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.broadcastSelection()}
	for _, id := range PageOrder {
		p, ok := m.pages[id]
		if !ok {
			continue
		}
		if cmd := p.Init(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// broadcastSelection tells pages about the restored selection.
func (m Model) broadcastSelection() tea.Cmd {
	board, variant := m.selectedBoard, m.selectedVariant
	var cmds []tea.Cmd
	if board != "" {
		cmds = append(cmds, func() tea.Msg { return BoardSelectedMsg{Board: board} })
	}
	if variant != "" {
		cmds = append(cmds, func() tea.Msg { return VariantSelectedMsg{Variant: variant} })
	}
	return tea.Sequence(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentWidth, contentHeight := m.contentSize()
		for _, p := range m.pages {
			p.SetSize(contentWidth, contentHeight)
		}
		return m, nil

	case PickerSelectedMsg:
		m.picker = nil
		value := msg.Value
		switch msg.Kind {
		case PickVariant:
			return m, func() tea.Msg { return VariantSelectedMsg{Variant: value} }
		case PickPort:
			return m, func() tea.Msg { return PortSelectedMsg{Port: value} }
		}
		return m, func() tea.Msg { return BoardSelectedMsg{Board: value} }

	case PickerClosedMsg:
		m.picker = nil
		return m, nil

	case BoardSelectedMsg:
		m.selectedBoard = msg.Board
		var extra tea.Cmd
		if m.selectedVariant != "" && !m.variantAllowed(m.selectedVariant) {
			m.selectedVariant = ""
			extra = func() tea.Msg { return VariantSelectedMsg{} }
		}
		m.persist()
		return m, tea.Batch(m.broadcast(msg), extra)

	case VariantSelectedMsg:
		m.selectedVariant = msg.Variant
		m.persist()
		return m, m.broadcast(msg)

	case PortSelectedMsg:
		m.selectedPort = msg.Port
		m.persist()
		return m, m.broadcast(msg)

	case tea.KeyMsg:
		if m.picker != nil {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}

		// When a page has an active text input, forward all keys
		// directly to the page; only ctrl+c still quits.
		if m.focus == FocusContent {
			if ic, ok := m.pages[m.activePage].(InputCapturer); ok && ic.InputCaptured() {
				if msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				return m, m.updateActive(msg)
			}
		}

		switch {
		case key.Matches(msg, GlobalKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, GlobalKeys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, GlobalKeys.ToggleFocus):
			if m.focus == FocusSidebar {
				m.focus = FocusContent
				return m, nil
			}
		}

		if m.focus == FocusSidebar {
			switch {
			case key.Matches(msg, GlobalKeys.BoardPicker):
				m.openPicker(PickBoard)
				return m, nil
			case key.Matches(msg, GlobalKeys.VariantPicker):
				m.openPicker(PickVariant)
				return m, nil
			case key.Matches(msg, GlobalKeys.PortPicker):
				m.openPicker(PickPort)
				return m, nil
			}
			switch msg.String() {
			case "up":
				m.prevPage()
			case "down":
				m.nextPage()
			case "enter", "right":
				m.focus = FocusContent
			}
			return m, nil
		}

		if msg.String() == "left" {
			m.focus = FocusSidebar
			return m, nil
		}
		return m, m.updateActive(msg)
	}

	// Non-key messages (command results, etc.) go to all pages so
	// responses reach the page that initiated the command.
	return m, m.broadcast(msg)
}

func (m Model) updateActive(msg tea.Msg) tea.Cmd {
	page, ok := m.pages[m.activePage]
	if !ok {
		return nil
	}
	newPage, cmd := page.Update(msg)
	m.pages[m.activePage] = newPage
	return cmd
}

func (m Model) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for id, page := range m.pages {
		newPage, cmd := page.Update(msg)
		m.pages[id] = newPage
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) openPicker(kind PickerKind) {
	var items []PickerItem
	title := "Select Board"
	switch kind {
	case PickBoard:
		for _, b := range m.cat.Boards() {
			items = append(items, PickerItem{Label: b.Name, Value: b.ID, Desc: b.ID})
		}
	case PickVariant:
		title = "Select Variant"
		variants := m.cat.Variants()
		if m.selectedBoard != "" {
			variants = m.cat.VariantsForBoard(m.selectedBoard)
		}
		for _, v := range variants {
			items = append(items, PickerItem{Label: v.Name, Value: v.ID, Desc: v.ID})
		}
	case PickPort:
		title = "Select Port"
		ports, err := m.listPorts()
		if err != nil {
			m.log.Warn("listing ports", "err", err)
		}
		// Likely dev boards first, then everything else.
		sort.SliceStable(ports, func(i, j int) bool {
			return ports[i].LikelyDevBoard && !ports[j].LikelyDevBoard
		})
		for _, p := range ports {
			items = append(items, PickerItem{Label: p.DisplayName(), Value: p.Name})
		}
	}
	m.picker = NewPicker(kind, title, items)
	m.picker.SetSize(m.contentSize())
}

// variantAllowed reports whether id is a known variant the selected board
// supports (any known variant when no board is selected).
func (m Model) variantAllowed(id string) bool {
	if _, err := m.cat.Variant(id); err != nil {
		return false
	}
	if m.selectedBoard == "" {
		return true
	}
	b, err := m.cat.Board(m.selectedBoard)
	return err == nil && b.Supports(id)
}

func (m Model) persist() {
	if m.cfgPath == "" {
		return
	}
	sel := config.Selection{Board: m.selectedBoard, Variant: m.selectedVariant, Port: m.selectedPort}
	if err := config.Save(sel, m.cfgPath); err != nil {
		m.log.Warn("saving selection", "path", m.cfgPath, "err", err)
	}
}

func (m Model) contentSize() (int, int) {
	return m.width - sidebarWidth, m.height - 2 - 1 // status bar + selection bar
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	contentWidth, contentHeight := m.contentSize()
	page := m.pages[m.activePage]

	env := ""
	if m.selectedBoard != "" && m.selectedVariant != "" {
		env, _ = m.cat.EnvironmentName(m.selectedBoard, m.selectedVariant)
	}

	selectionBar := renderSelectionBar(m.selectedBoard, m.selectedVariant, m.selectedPort, env, m.width, m.focus == FocusSidebar)
	sidebar := renderSidebar(PageOrder, m.activePage, m.pages, contentHeight, m.focus == FocusSidebar)
	content := ui.ContentStyle.
		Width(contentWidth).
		Height(contentHeight).
		Render(page.View())

	switch {
	case m.picker != nil:
		m.picker.SetSize(contentWidth, contentHeight)
		content = lipgloss.Place(contentWidth, contentHeight, lipgloss.Center, lipgloss.Center, m.picker.View())
	case m.showHelp:
		content = lipgloss.Place(contentWidth, contentHeight, lipgloss.Center, lipgloss.Center,
			renderHelp(page.Name(), page.ShortHelp(), contentWidth))
	}

	statusBar := renderStatusBar(page.ShortHelp(), m.width, m.focus)

	return renderLayout(selectionBar, sidebar, content, statusBar)
}

func (m *Model) nextPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i+1)%len(PageOrder)]
			return
		}
	}
}

func (m *Model) prevPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i-1+len(PageOrder))%len(PageOrder)]
			return
		}
	}
}
