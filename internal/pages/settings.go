package pages

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/meshflash/internal/app"
	"github.com/buckleypaul/meshflash/internal/config"
	"github.com/buckleypaul/meshflash/internal/ui"
)

type settingField struct {
	label string
	key   string
}

var settingFields = []settingField{
	{"Serial Port", "serial_port"},
	{"Serial Baud Rate", "serial_baud_rate"},
	{"Default Board", "default_board"},
	{"Default Variant", "default_variant"},
	{"Source Directory", "source_dir"},
	{"Resources Directory", "resources_dir"},
	{"pio Executable", "pio_path"},
	{"Python Runtime", "python_path"},
	{"Log Level", "log_level"},
	{"Stop Grace Window", "grace_window"},
}

// SettingsPage edits the config and saves it to the global config file.
// Path and toolchain changes apply on the next start.
type SettingsPage struct {
	cfg     *config.Config
	path    string
	cursor  int
	editing bool
	dirty   map[string]bool
	input   textinput.Model

	width, height int
	message       string
}

func NewSettingsPage(cfg *config.Config, path string) *SettingsPage {
	ti := textinput.New()
	ti.CharLimit = 256
	return &SettingsPage{
		cfg:   cfg,
		path:  path,
		dirty: map[string]bool{},
		input: ti,
	}
}

func (p *SettingsPage) Init() tea.Cmd { return nil }

func (p *SettingsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.BoardSelectedMsg:
		p.cfg.DefaultBoard = msg.Board
		return p, nil
	case app.VariantSelectedMsg:
		p.cfg.DefaultVariant = msg.Variant
		return p, nil

	case tea.KeyMsg:
		if p.editing {
			switch msg.String() {
			case "enter":
				p.applyValue(p.input.Value())
				p.editing = false
				p.input.Blur()
				return p, nil
			case "esc":
				p.editing = false
				p.input.Blur()
				return p, nil
			}
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return p, cmd
		}

		switch msg.String() {
		case "down":
			if p.cursor < len(settingFields)-1 {
				p.cursor++
			}
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "enter", "e":
			p.editing = true
			p.input.SetValue(p.getValue(p.cursor))
			return p, p.input.Focus()
		case "s":
			p.save()
		}
	}
	return p, nil
}

func (p *SettingsPage) save() {
	if len(p.dirty) == 0 {
		p.message = "Nothing to save"
		return
	}
	values := map[string]any{}
	for i, f := range settingFields {
		if p.dirty[f.key] {
			values[f.key] = p.getValue(i)
		}
	}
	if err := config.SaveValues(values, p.path); err != nil {
		p.message = fmt.Sprintf("Error saving: %v", err)
		return
	}
	p.dirty = map[string]bool{}
	p.message = "Saved to " + p.path
}

func (p *SettingsPage) View() string {
	var inner strings.Builder

	for i, f := range settingFields {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		val := p.getValue(i)
		if val == "" {
			val = ui.DimStyle.Render("(not set)")
		}
		mark := " "
		if p.dirty[f.key] {
			mark = ui.WarningStyle.Render("*")
		}

		inner.WriteString(fmt.Sprintf("%s%-20s%s %s\n", cursor, f.label, mark, val))
	}

	if p.editing {
		inner.WriteString("\n")
		inner.WriteString(fmt.Sprintf("  Edit %s:\n", settingFields[p.cursor].label))
		inner.WriteString("  " + p.input.View())
		inner.WriteString("\n")
	}

	if p.message != "" {
		inner.WriteString("\n  " + p.message)
	}

	return ui.Panel("Settings", inner.String(), p.width, 0, false)
}

func (p *SettingsPage) Name() string { return "Settings" }

func (p *SettingsPage) ShortHelp() []key.Binding {
	if p.editing {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save to disk")),
	}
}

func (p *SettingsPage) InputCaptured() bool {
	return p.editing
}

func (p *SettingsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *SettingsPage) getValue(idx int) string {
	switch settingFields[idx].key {
	case "serial_port":
		return p.cfg.SerialPort
	case "serial_baud_rate":
		return strconv.Itoa(p.cfg.SerialBaudRate)
	case "default_board":
		return p.cfg.DefaultBoard
	case "default_variant":
		return p.cfg.DefaultVariant
	case "source_dir":
		return p.cfg.SourceDir
	case "resources_dir":
		return p.cfg.ResourcesDir
	case "pio_path":
		return p.cfg.PioPath
	case "python_path":
		return p.cfg.PythonPath
	case "log_level":
		return p.cfg.LogLevel
	case "grace_window":
		return p.cfg.GraceWindow.String()
	}
	return ""
}

func (p *SettingsPage) applyValue(val string) {
	f := settingFields[p.cursor]
	val = strings.TrimSpace(val)
	switch f.key {
	case "serial_port":
		p.cfg.SerialPort = val
	case "serial_baud_rate":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			p.message = fmt.Sprintf("Invalid baud rate %q", val)
			return
		}
		p.cfg.SerialBaudRate = n
	case "default_board":
		p.cfg.DefaultBoard = val
	case "default_variant":
		p.cfg.DefaultVariant = val
	case "source_dir":
		p.cfg.SourceDir = val
	case "resources_dir":
		p.cfg.ResourcesDir = val
	case "pio_path":
		p.cfg.PioPath = val
	case "python_path":
		p.cfg.PythonPath = val
	case "log_level":
		switch val {
		case "debug", "info", "warn", "error":
			p.cfg.LogLevel = val
		default:
			p.message = fmt.Sprintf("Invalid log level %q", val)
			return
		}
	case "grace_window":
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			p.message = fmt.Sprintf("Invalid duration %q", val)
			return
		}
		p.cfg.GraceWindow = d
	}
	p.dirty[f.key] = true
	p.message = fmt.Sprintf("%s updated", f.label)
}
