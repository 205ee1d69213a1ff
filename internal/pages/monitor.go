package pages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/meshflash/internal/app"
	"github.com/buckleypaul/meshflash/internal/serial"
	"github.com/buckleypaul/meshflash/internal/store"
	"github.com/buckleypaul/meshflash/internal/ui"
)

type monitorState int

const (
	monitorStatePortSelect monitorState = iota
	monitorStateConnected
)

// maxScrollback bounds the retained serial output.
const maxScrollback = 256 * 1024

// serialConn is the subset of serial.Monitor the page uses.
type serialConn interface {
	Connect(port string, baud int) error
	Disconnect()
	Write(data []byte) error
	DataChan() <-chan string
	Connected() bool
	Reset() error
}

var listPorts = serial.ListPorts

type portsLoadedMsg struct {
	ports []serial.PortInfo
	err   error
}

type monitorConnectedMsg struct {
	portName string
	baudRate int
	err      error
}

// serialDataMsg carries data read under connection generation gen.
type serialDataMsg struct {
	gen  int
	data string
}

type monitorTickMsg struct{}

type monitorResetMsg struct{ err error }

type MonitorPage struct {
	conn  serialConn
	store *store.Store

	state     monitorState
	ports     []serial.PortInfo
	showAll   bool
	cursor    int
	preferred string
	baudRate  int
	portName  string
	gen       int

	input    textinput.Model
	output   strings.Builder
	viewport viewport.Model
	logFile  *os.File

	width, height int
	message       string
}

func NewMonitorPage(st *store.Store, baudRate int) *MonitorPage {
	if baudRate <= 0 {
		baudRate = serial.DefaultBaudRate
	}
	ti := textinput.New()
	ti.Placeholder = "type and press enter to send"
	ti.CharLimit = 256
	ti.Prompt = "> "
	return &MonitorPage{
		conn:     serial.NewMonitor(),
		store:    st,
		baudRate: baudRate,
		input:    ti,
		viewport: viewport.New(0, 0),
	}
}

func (p *MonitorPage) Init() tea.Cmd {
	return loadPorts()
}

func loadPorts() tea.Cmd {
	return func() tea.Msg {
		ports, err := listPorts()
		return portsLoadedMsg{ports: ports, err: err}
	}
}

// seekPreferred moves the cursor to the port chosen elsewhere, if listed.
func (p *MonitorPage) seekPreferred() {
	for i, port := range p.visiblePorts() {
		if port.Name == p.preferred {
			p.cursor = i
			return
		}
	}
}

// visiblePorts hides ports that do not look like dev boards unless asked.
func (p *MonitorPage) visiblePorts() []serial.PortInfo {
	if p.showAll {
		return p.ports
	}
	boards := serial.DevBoards(p.ports)
	if len(boards) == 0 {
		return p.ports
	}
	return boards
}

func (p *MonitorPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case portsLoadedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Error listing ports: %v", msg.err)
			return p, nil
		}
		p.ports = msg.ports
		if p.cursor >= len(p.visiblePorts()) {
			p.cursor = 0
		}
		p.seekPreferred()
		return p, nil

	case app.PortSelectedMsg:
		p.preferred = msg.Port
		if p.state != monitorStateConnected {
			p.seekPreferred()
		}
		return p, nil

	case monitorConnectedMsg:
		if msg.err != nil {
			p.state = monitorStatePortSelect
			p.message = fmt.Sprintf("Failed to connect: %v", msg.err)
			return p, nil
		}
		p.state = monitorStateConnected
		p.portName = msg.portName
		p.baudRate = msg.baudRate
		p.gen++
		p.message = fmt.Sprintf("Connected to %s @ %d", msg.portName, msg.baudRate)
		port := msg.portName
		return p, tea.Batch(
			p.input.Focus(),
			p.waitForData(),
			monitorTick(),
			func() tea.Msg { return app.PortSelectedMsg{Port: port} },
		)

	case serialDataMsg:
		if p.state == monitorStateConnected {
			p.appendOutput(msg.data)
		}
		if msg.gen != p.gen || p.state != monitorStateConnected {
			return p, nil
		}
		return p, p.waitForData()

	case monitorTickMsg:
		if p.state != monitorStateConnected {
			return p, nil
		}
		if !p.conn.Connected() {
			p.disconnect()
			p.message = "Port closed"
			return p, loadPorts()
		}
		return p, monitorTick()

	case monitorResetMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Reset failed: %v", msg.err)
		} else {
			p.message = "Board reset"
		}
		return p, nil

	case app.UploadStartingMsg:
		if p.state == monitorStateConnected && msg.Port == p.portName {
			p.disconnect()
			p.message = fmt.Sprintf("Released %s for upload", msg.Port)
		}
		return p, nil

	case tea.KeyMsg:
		if p.state == monitorStateConnected {
			return p.handleConnectedKey(msg)
		}
		return p.handleSelectKey(msg)
	}
	return p, nil
}

func (p *MonitorPage) handleSelectKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	ports := p.visiblePorts()
	switch msg.String() {
	case "up":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down":
		if p.cursor < len(ports)-1 {
			p.cursor++
		}
	case "r":
		p.message = "Refreshing ports..."
		return p, loadPorts()
	case "a":
		p.showAll = !p.showAll
		p.cursor = 0
	case "+", "=":
		p.baudRate = stepBaud(p.baudRate, 1)
	case "-":
		p.baudRate = stepBaud(p.baudRate, -1)
	case "enter":
		if len(ports) == 0 {
			return p, nil
		}
		name, baud, conn := ports[p.cursor].Name, p.baudRate, p.conn
		p.message = fmt.Sprintf("Connecting to %s...", name)
		return p, func() tea.Msg {
			err := conn.Connect(name, baud)
			return monitorConnectedMsg{portName: name, baudRate: baud, err: err}
		}
	}
	return p, nil
}

func (p *MonitorPage) handleConnectedKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	switch msg.String() {
	case "ctrl+d":
		p.disconnect()
		p.message = "Disconnected"
		return p, loadPorts()
	case "ctrl+r":
		conn := p.conn
		return p, func() tea.Msg { return monitorResetMsg{err: conn.Reset()} }
	case "ctrl+l":
		p.toggleLogging()
		return p, nil
	case "ctrl+k":
		p.output.Reset()
		p.viewport.SetContent("")
		return p, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	case "esc":
		if p.input.Focused() {
			p.input.Blur()
		} else {
			return p, p.input.Focus()
		}
		return p, nil
	case "enter":
		line := p.input.Value()
		p.input.SetValue("")
		if err := p.conn.Write([]byte(line + "\r\n")); err != nil {
			p.message = fmt.Sprintf("Write failed: %v", err)
		}
		return p, nil
	}

	if !p.input.Focused() {
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *MonitorPage) waitForData() tea.Cmd {
	ch, gen := p.conn.DataChan(), p.gen
	return func() tea.Msg {
		return serialDataMsg{gen: gen, data: <-ch}
	}
}

func monitorTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return monitorTickMsg{} })
}

func stepBaud(current, dir int) int {
	rates := serial.CommonBaudRates
	for i, r := range rates {
		if r == current {
			return rates[(i+dir+len(rates))%len(rates)]
		}
	}
	return serial.DefaultBaudRate
}

func (p *MonitorPage) disconnect() {
	p.conn.Disconnect()
	p.stopLogging()
	p.state = monitorStatePortSelect
	p.input.Blur()
}

// Close releases the port and log file.
func (p *MonitorPage) Close() {
	p.disconnect()
}

func (p *MonitorPage) toggleLogging() {
	if p.logFile != nil {
		p.stopLogging()
		p.message = "Logging stopped"
		return
	}
	if p.store == nil {
		p.message = "Logging unavailable"
		return
	}
	dir, err := p.store.LogsDir()
	if err != nil {
		p.message = fmt.Sprintf("Logging failed: %v", err)
		return
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("serial-%s.log", now.Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		p.message = fmt.Sprintf("Logging failed: %v", err)
		return
	}
	p.logFile = f
	_ = p.store.AddSerialLog(store.SerialLog{Port: p.portName, BaudRate: p.baudRate, Timestamp: now, LogFile: path})
	p.message = "Logging to " + path
}

func (p *MonitorPage) stopLogging() {
	if p.logFile != nil {
		p.logFile.Close()
		p.logFile = nil
	}
}

func (p *MonitorPage) appendOutput(data string) {
	if p.logFile != nil {
		if _, err := p.logFile.WriteString(data); err != nil {
			p.message = fmt.Sprintf("Logging failed: %v", err)
			p.stopLogging()
		}
	}
	p.output.WriteString(normalizeOutput(data))
	if p.output.Len() > maxScrollback {
		keep := p.output.String()[p.output.Len()-maxScrollback/2:]
		p.output.Reset()
		p.output.WriteString(keep)
	}
	atBottom := p.viewport.AtBottom()
	p.refreshViewport()
	if atBottom {
		p.viewport.GotoBottom()
	}
}

func (p *MonitorPage) refreshViewport() {
	if p.viewport.Width > 0 {
		p.viewport.SetContent(wrap.String(p.output.String(), p.viewport.Width))
		return
	}
	p.viewport.SetContent(p.output.String())
}

func (p *MonitorPage) View() string {
	if p.state == monitorStateConnected {
		return p.viewConnected()
	}
	return p.viewPortSelect()
}

func (p *MonitorPage) viewPortSelect() string {
	var b strings.Builder
	ports := p.visiblePorts()
	if len(ports) == 0 {
		b.WriteString(ui.DimStyle.Render("No serial ports found. Press r to refresh."))
		b.WriteString("\n")
	}
	for i, port := range ports {
		cursor := "  "
		name := port.DisplayName()
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
			name = ui.FocusedLabelStyle.Render(name)
		}
		b.WriteString(cursor + name + "\n")
	}
	b.WriteString("\n")
	scope := "dev boards"
	if p.showAll {
		scope = "all ports"
	}
	b.WriteString(fmt.Sprintf("Baud: %d  Showing: %s\n", p.baudRate, scope))
	if p.message != "" {
		b.WriteString("\n" + p.message + "\n")
	}
	return ui.Panel("Serial Monitor", b.String(), p.width, 0, true)
}

func (p *MonitorPage) viewConnected() string {
	header := fmt.Sprintf("%s @ %d", p.portName, p.baudRate)
	if p.logFile != nil {
		header += "  " + ui.AccentStyle.Render("● logging")
	}
	status := ui.DimStyle.Render(p.message)

	outHeight := p.height - 5
	if outHeight < 3 {
		outHeight = 3
	}
	oldWidth := p.viewport.Width
	p.viewport.Width = p.width - 2
	p.viewport.Height = outHeight
	if oldWidth != p.viewport.Width {
		p.refreshViewport()
	}

	p.input.Width = p.width - 4
	return lipgloss.JoinVertical(lipgloss.Left,
		ui.BoldStyle.Render(header),
		p.viewport.View(),
		p.input.View(),
		status,
	)
}

func (p *MonitorPage) Name() string { return "Monitor" }

func (p *MonitorPage) ShortHelp() []key.Binding {
	if p.state == monitorStateConnected {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
			key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset board")),
			key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "log to file")),
			key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("ctrl+k", "clear")),
			key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "disconnect")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all ports")),
		key.NewBinding(key.WithKeys("+", "-"), key.WithHelp("+/-", "baud")),
	}
}

func (p *MonitorPage) InputCaptured() bool {
	return p.state == monitorStateConnected && p.input.Focused()
}

func (p *MonitorPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
