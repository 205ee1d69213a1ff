package pages

import (
	"context"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/meshflash/internal/pio"
)

// Runner is the part of the orchestrator the pages drive.
type Runner interface {
	Plan(op pio.Operation, req pio.Request) (pio.Plan, error)
	StartBuild(ctx context.Context, req pio.Request, h pio.Handlers) error
	StartUpload(ctx context.Context, req pio.Request, h pio.Handlers) error
	Stop(ctx context.Context) error
}

// runOutputMsg carries one chunk of tool output.
type runOutputMsg struct {
	id    string
	chunk string
}

// runDoneMsg is the terminal event of a run: err is nil on success.
type runDoneMsg struct {
	id     string
	result pio.Result
	err    error
}

// runStoppedMsg reports the return of a Stop call.
type runStoppedMsg struct {
	err error
}

// runEvents turns orchestrator callbacks into messages. Handlers block
// until the program takes the message, so output is never dropped; close
// releases them once the program is gone.
type runEvents struct {
	ch   chan tea.Msg
	quit chan struct{}
	once sync.Once
}

func newRunEvents() *runEvents {
	return &runEvents{ch: make(chan tea.Msg, 64), quit: make(chan struct{})}
}

func (e *runEvents) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.quit:
	}
}

func (e *runEvents) handlers(id string) pio.Handlers {
	return pio.Handlers{
		OnOutput:   func(s string) { e.send(runOutputMsg{id: id, chunk: s}) },
		OnComplete: func(r pio.Result) { e.send(runDoneMsg{id: id, result: r}) },
		OnError:    func(err error) { e.send(runDoneMsg{id: id, err: err}) },
	}
}

// wait returns a command that delivers the next event.
func (e *runEvents) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.quit:
			return nil
		}
	}
}

func (e *runEvents) close() {
	e.once.Do(func() { close(e.quit) })
}

// normalizeOutput turns CRLF and bare CR (progress bars) into newlines.
func normalizeOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
