package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// PageID names a sidebar entry.
type PageID int

const (
	BuildPage PageID = iota
	MonitorPage
	HistoryPage
	BoardsPage
	SettingsPage
)

// PageOrder is the sidebar order.
var PageOrder = []PageID{BuildPage, MonitorPage, HistoryPage, BoardsPage, SettingsPage}

// Page is one screen of the content area.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is implemented by pages with text fields. While
// InputCaptured is true every key goes to the page and global shortcuts
// are suspended.
type InputCapturer interface {
	InputCaptured() bool
}

// BoardSelectedMsg tells every page the board changed.
type BoardSelectedMsg struct {
	Board string
}

// VariantSelectedMsg tells every page the variant changed.
type VariantSelectedMsg struct {
	Variant string
}

// PortSelectedMsg tells every page the serial port changed, whether it was
// picked from the sidebar or connected on the monitor.
type PortSelectedMsg struct {
	Port string
}

// HistoryChangedMsg is broadcast after a run was recorded.
type HistoryChangedMsg struct{}

// UploadStartingMsg is broadcast before an upload so a monitor holding the
// same port can let go of it.
type UploadStartingMsg struct {
	Port string
}
