package pages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/meshflash/internal/app"
	"github.com/buckleypaul/meshflash/internal/catalog"
	"github.com/buckleypaul/meshflash/internal/pio"
	"github.com/buckleypaul/meshflash/internal/store"
	"github.com/buckleypaul/meshflash/internal/ui"
)

type buildState int

const (
	buildStateIdle buildState = iota
	buildStateRunning
	buildStateDone
)

const (
	labelWidth   = 22
	maxFormLines = 16
	stopTimeout  = 30 * time.Second
)

// BuildOptions wire the build page.
type BuildOptions struct {
	Catalog *catalog.Catalog
	Runner  Runner
	Store   *store.Store
	Logger  *log.Logger
	// Port seeds the upload port field.
	Port string
}

// BuildPage is the configure/build/flash form plus the tool output.
type BuildPage struct {
	cat    *catalog.Catalog
	runner Runner
	store  *store.Store
	log    *log.Logger

	board   string
	variant string

	rows    []formRow
	focused int
	blurred bool

	state    buildState
	output   strings.Builder
	viewport viewport.Model

	events  *runEvents
	ctx     context.Context
	cancel  context.CancelFunc
	current *activeRun

	width, height int
	message       string
}

// activeRun is the bookkeeping the page needs to record history.
type activeRun struct {
	req     pio.Request
	op      pio.Operation
	env     string
	flags   []string
	started time.Time
}

func NewBuildPage(opts BuildOptions) *BuildPage {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &BuildPage{
		cat:      opts.Catalog,
		runner:   opts.Runner,
		store:    opts.Store,
		log:      logger,
		viewport: viewport.New(0, 0),
		events:   newRunEvents(),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.rows = p.fixedRows(opts.Port)
	p.focusCurrent()
	return p
}

func (p *BuildPage) fixedRows(port string) []formRow {
	rows := make([]formRow, fixedRows)

	rows[rowPort] = newTextRow("Upload port", "e.g. /dev/ttyUSB0 or COM3", 256)
	rows[rowPort].input.SetValue(port)

	rows[rowErase] = formRow{kind: rowToggle, label: "Erase before upload"}

	presets := []string{""}
	for _, pr := range p.cat.Presets() {
		presets = append(presets, pr.ID)
	}
	rows[rowPreset] = formRow{kind: rowSelect, label: "Regional preset", options: presets}

	rows[rowCustom] = newTextRow("Custom flags", "e.g. -DLORA_TX_POWER=20 MY_FLAG=1", 512)
	return rows
}

// Close releases a run blocked on the page and stops it.
func (p *BuildPage) Close() {
	p.events.close()
	p.cancel()
}

func (p *BuildPage) Init() tea.Cmd { return nil }

func (p *BuildPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.BoardSelectedMsg:
		p.board = msg.Board
		return p, nil

	case app.VariantSelectedMsg:
		p.setVariant(msg.Variant)
		return p, nil

	case app.PortSelectedMsg:
		if p.state != buildStateRunning {
			p.rows[rowPort].input.SetValue(msg.Port)
		}
		return p, nil

	case runOutputMsg:
		if p.current == nil || msg.id != p.current.req.ID {
			return p, nil
		}
		p.appendOutput(normalizeOutput(msg.chunk))
		return p, p.events.wait()

	case runDoneMsg:
		if p.current == nil || msg.id != p.current.req.ID {
			return p, nil
		}
		return p, p.finish(msg)

	case runStoppedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Stop: %v", msg.err)
		}
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// setVariant rebuilds the field rows for the variant's flags.
func (p *BuildPage) setVariant(id string) {
	p.variant = id
	rows := p.rows[:fixedRows]
	if v, err := p.cat.Variant(id); err == nil {
		for _, g := range p.cat.FieldGroups(v) {
			for i, f := range g.Fields {
				group := ""
				if i == 0 {
					group = g.Name
				}
				rows = append(rows, fieldRow(group, f))
			}
		}
	}
	p.rows = rows
	if p.focused >= len(p.rows) {
		p.focused = 0
	}
	if !p.blurred {
		p.focusCurrent()
	}
}

func (p *BuildPage) handleKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	keyStr := msg.String()

	if p.state == buildStateRunning {
		if keyStr == "ctrl+x" {
			p.message = "Stopping..."
			return p, p.stop()
		}
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}

	switch keyStr {
	case "tab", "down":
		p.advance(1)
		return p, nil
	case "shift+tab", "up":
		p.advance(-1)
		return p, nil
	case "ctrl+b":
		return p, p.start(pio.OpBuild)
	case "ctrl+f":
		return p, p.start(pio.OpUpload)
	case "ctrl+p":
		p.showPlan()
		return p, nil
	case "y":
		if !p.InputCaptured() && p.output.Len() > 0 {
			p.copyToClipboard()
			return p, nil
		}
	case "esc":
		if p.state == buildStateDone {
			p.state = buildStateIdle
			p.output.Reset()
			p.updateViewportContent()
			return p, nil
		}
		p.blurCurrent()
		p.blurred = true
		return p, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}

	if p.blurred {
		return p, nil
	}

	row := &p.rows[p.focused]
	switch row.kind {
	case rowToggle:
		if keyStr == "enter" || keyStr == " " {
			row.on = !row.on
		}
		return p, nil
	case rowSelect:
		switch keyStr {
		case "enter", " ", "right", "l":
			row.cycle(1)
		case "h":
			row.cycle(-1)
		default:
			return p, nil
		}
		if p.focused == rowPreset {
			p.applyPreset(row.value())
		}
		return p, nil
	}

	if keyStr == "enter" {
		p.advance(1)
		return p, nil
	}
	var cmd tea.Cmd
	row.input, cmd = row.input.Update(msg)
	return p, cmd
}

// applyPreset replaces the custom flag text with the preset's radio settings.
func (p *BuildPage) applyPreset(id string) {
	if id == "" {
		p.rows[rowCustom].input.SetValue("")
		return
	}
	pr, err := p.cat.Preset(id)
	if err != nil {
		return
	}
	p.rows[rowCustom].input.SetValue(pr.CustomFlags())
	p.message = fmt.Sprintf("Preset %s: %s", pr.Name, pr.Description)
}

func (p *BuildPage) advance(dir int) {
	p.blurCurrent()
	p.blurred = false
	p.focused = (p.focused + len(p.rows) + dir) % len(p.rows)
	p.focusCurrent()
}

func (p *BuildPage) blurCurrent() {
	if p.focused < len(p.rows) && p.rows[p.focused].kind == rowText {
		p.rows[p.focused].input.Blur()
	}
}

func (p *BuildPage) focusCurrent() {
	if p.focused < len(p.rows) && p.rows[p.focused].kind == rowText {
		p.rows[p.focused].input.Focus()
	}
}

// request assembles a request from the form.
func (p *BuildPage) request() pio.Request {
	values := map[string]string{}
	for _, r := range p.rows[fixedRows:] {
		values[r.flag] = r.value()
	}
	return pio.Request{
		ID:      uuid.NewString(),
		Board:   p.board,
		Variant: p.variant,
		Port:    strings.TrimSpace(p.rows[rowPort].value()),
		Flags:   values,
		Custom:  p.rows[rowCustom].value(),
		Erase:   p.rows[rowErase].on,
	}
}

func (p *BuildPage) start(op pio.Operation) tea.Cmd {
	if p.board == "" || p.variant == "" {
		p.message = "Select a board and a variant first"
		return nil
	}

	req := p.request()
	run := &activeRun{req: req, op: op, started: time.Now()}
	if plan, err := p.runner.Plan(op, req); err == nil {
		run.env = plan.Env
		run.flags = plan.Flags
	}

	startFn := p.runner.StartBuild
	label := "Building"
	if op == pio.OpUpload {
		startFn = p.runner.StartUpload
		label = "Flashing"
	}
	if err := startFn(p.ctx, req, p.events.handlers(req.ID)); err != nil {
		p.message = err.Error()
		return nil
	}

	p.current = run
	p.state = buildStateRunning
	p.message = ""
	p.output.Reset()
	p.appendOutput(fmt.Sprintf("%s %s for %s...\n\n", label, p.variant, p.board))
	p.log.Info("run started", "id", req.ID, "op", op, "board", p.board, "variant", p.variant)
	if op == pio.OpUpload {
		port := req.Port
		return tea.Batch(
			func() tea.Msg { return app.UploadStartingMsg{Port: port} },
			p.events.wait(),
		)
	}
	return p.events.wait()
}

func (p *BuildPage) stop() tea.Cmd {
	runner := p.runner
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		return runStoppedMsg{err: runner.Stop(ctx)}
	}
}

// finish renders the outcome and records it.
func (p *BuildPage) finish(msg runDoneMsg) tea.Cmd {
	run := p.current
	p.current = nil
	p.state = buildStateDone

	duration := time.Since(run.started)
	env := run.env
	if msg.err == nil {
		duration = msg.result.Duration
		env = msg.result.Env
		p.appendOutput(fmt.Sprintf("\n%s in %s\n", msg.result.Message, duration.Round(time.Millisecond)))
	} else {
		p.appendOutput(fmt.Sprintf("\n%s\n", describeError(msg.err)))
	}
	p.viewport.GotoBottom()

	if p.store == nil {
		return nil
	}
	err := p.store.AddRun(store.Run{
		RequestID: run.req.ID,
		Upload:    run.op == pio.OpUpload,
		Board:     run.req.Board,
		Variant:   run.req.Variant,
		Env:       env,
		Port:      run.req.Port,
		Erase:     run.req.Erase,
		Flags:     run.flags,
		Started:   run.started,
		Duration:  duration,
		ExitCode:  pio.ExitCodeOf(msg.err),
		Outcome:   pio.Outcome(msg.err),
		Err:       msg.err,
	})
	if err != nil {
		p.log.Warn("recording run", "id", run.req.ID, "err", err)
		return nil
	}
	return func() tea.Msg { return app.HistoryChangedMsg{} }
}

// describeError phrases a run error for the output pane.
func describeError(err error) string {
	var e *pio.Error
	if !errors.As(err, &e) {
		return "Error: " + err.Error()
	}
	switch e.Kind {
	case pio.StoppedByUser:
		return "Stopped."
	case pio.ProcessFailure:
		if e.Signal != "" {
			return fmt.Sprintf("Failed: terminated by %s", e.Signal)
		}
		return fmt.Sprintf("Failed (exit code: %d)", e.ExitCode)
	case pio.DependenciesUnavailable:
		return "Toolchain unavailable: " + err.Error() + "\nRun `meshflash doctor` for details."
	}
	return "Error: " + err.Error()
}

// showPlan prints the command a build would run without running it.
func (p *BuildPage) showPlan() {
	if p.board == "" || p.variant == "" {
		p.message = "Select a board and a variant first"
		return
	}
	op := pio.OpBuild
	if p.rows[rowPort].value() != "" {
		op = pio.OpUpload
	}
	plan, err := p.runner.Plan(op, p.request())
	if err != nil {
		p.message = err.Error()
		return
	}
	p.state = buildStateDone
	p.output.Reset()
	var b strings.Builder
	fmt.Fprintf(&b, "Environment: %s\n", plan.Env)
	if len(plan.Flags) > 0 {
		fmt.Fprintf(&b, "Build flags: -D%s\n", strings.Join(plan.Flags, " -D"))
	}
	fmt.Fprintf(&b, "Command: %s\n", plan.Command("pio"))
	p.appendOutput(b.String())
}

func (p *BuildPage) appendOutput(s string) {
	p.output.WriteString(s)
	atBottom := p.viewport.AtBottom()
	p.updateViewportContent()
	if atBottom {
		p.viewport.GotoBottom()
	}
}

func (p *BuildPage) View() string {
	formHeight := p.formLines() + 4 // title, blank, help, message
	outputHeight := p.height - formHeight - 1
	if outputHeight < 5 {
		outputHeight = 5
		formHeight = p.height - outputHeight - 1
	}

	form := p.viewForm(p.width, formHeight)
	output := p.viewOutput(p.width, outputHeight)

	return lipgloss.JoinVertical(lipgloss.Left, form, output)
}

func (p *BuildPage) formLines() int {
	n := len(p.rows)
	for _, r := range p.rows {
		if r.group != "" {
			n++
		}
	}
	if n > maxFormLines {
		n = maxFormLines
	}
	return n
}

// visibleRows picks a window of rows around the focused one.
func (p *BuildPage) visibleRows() (int, int) {
	limit := maxFormLines * 2 / 3
	if len(p.rows) <= limit {
		return 0, len(p.rows)
	}
	start := p.focused - limit/2
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > len(p.rows) {
		end = len(p.rows)
		start = end - limit
	}
	return start, end
}

func (p *BuildPage) viewForm(width int, height int) string {
	var b strings.Builder
	b.WriteString(ui.Title("Build & Flash"))
	b.WriteString("\n")

	inputWidth := width - labelWidth - 4
	if inputWidth < 10 {
		inputWidth = 10
	}

	start, end := p.visibleRows()
	for i := start; i < end; i++ {
		r := &p.rows[i]
		if r.group != "" {
			b.WriteString(ui.GroupStyle.Render(r.group) + "\n")
		}
		if r.kind == rowText {
			r.input.Width = inputWidth
		}

		label := fmt.Sprintf("%-*s", labelWidth-2, r.label)
		style := ui.LabelStyle
		if i == p.focused && !p.blurred {
			style = ui.FocusedLabelStyle
		}
		mark := " "
		if r.required {
			mark = ui.RequiredMark
		}
		b.WriteString(style.Render(label) + mark + " " + r.display() + "\n")
	}
	if p.variant == "" {
		b.WriteString(ui.DimStyle.Render("Select a variant to edit its settings") + "\n")
	}

	b.WriteString("\n")
	if p.message != "" {
		b.WriteString(p.message + "\n")
	} else if p.focused < len(p.rows) && p.rows[p.focused].hint != "" {
		b.WriteString(ui.DimStyle.Render(p.rows[p.focused].hint) + "\n")
	}
	help := "ctrl+b: build  ctrl+f: flash  ctrl+p: plan  tab: next field  esc: unfocus"
	if p.output.Len() > 0 {
		help += "  y: copy output"
	}
	b.WriteString(ui.DimStyle.Render(help))

	return lipgloss.NewStyle().MaxHeight(height).Render(b.String())
}

func (p *BuildPage) viewOutput(width int, height int) string {
	contentWidth := width - 3
	contentHeight := height - 2
	if contentWidth < 10 {
		contentWidth = 10
	}
	if contentHeight < 3 {
		contentHeight = 3
	}

	oldWidth := p.viewport.Width
	p.viewport.Width = contentWidth
	p.viewport.Height = contentHeight
	if oldWidth != contentWidth && p.output.Len() > 0 {
		p.updateViewportContent()
	}

	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderTop(true).
		BorderForeground(ui.Surface).
		PaddingLeft(1)

	if p.output.Len() == 0 {
		return style.Render(ui.DimStyle.Render("Build output will appear here..."))
	}
	return style.Render(p.viewport.View())
}

func (p *BuildPage) Name() string { return "Build" }

func (p *BuildPage) ShortHelp() []key.Binding {
	if p.state == buildStateRunning {
		return []key.Binding{
			key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "stop")),
			key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
		}
	}
	bindings := []key.Binding{
		key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "build")),
		key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "flash")),
		key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "plan")),
		key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "unfocus")),
	}
	if p.output.Len() > 0 {
		bindings = append(bindings, key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy output")))
	}
	return bindings
}

func (p *BuildPage) InputCaptured() bool {
	return p.state != buildStateRunning && !p.blurred &&
		p.focused < len(p.rows) && p.rows[p.focused].kind == rowText
}

func (p *BuildPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *BuildPage) updateViewportContent() {
	if p.viewport.Width <= 0 {
		p.viewport.SetContent(p.output.String())
		return
	}
	// Hard wrap handles long paths and commands without spaces.
	wrapped := wrap.String(p.output.String(), p.viewport.Width)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		if ansi.PrintableRuneWidth(line) > p.viewport.Width {
			lines[i] = truncate.String(line, uint(p.viewport.Width))
		}
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
}

func (p *BuildPage) copyToClipboard() {
	if err := clipboard.WriteAll(p.output.String()); err != nil {
		p.message = fmt.Sprintf("Failed to copy: %v", err)
		return
	}
	p.message = "Output copied to clipboard"
}
