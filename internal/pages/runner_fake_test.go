package pages

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/meshflash/internal/pio"
)

// fakeRunner completes runs synchronously from inside Start.
type fakeRunner struct {
	plan     pio.Plan
	planErr  error
	startErr error
	// hold leaves the run open so it can be stopped.
	hold bool

	output []string
	result pio.Result
	runErr error

	builds  []pio.Request
	uploads []pio.Request
	stops   int
}

func (f *fakeRunner) Plan(op pio.Operation, req pio.Request) (pio.Plan, error) {
	p := f.plan
	p.Operation = op
	return p, f.planErr
}

func (f *fakeRunner) StartBuild(_ context.Context, req pio.Request, h pio.Handlers) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.builds = append(f.builds, req)
	f.run(pio.OpBuild, req, h)
	return nil
}

func (f *fakeRunner) StartUpload(_ context.Context, req pio.Request, h pio.Handlers) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.uploads = append(f.uploads, req)
	f.run(pio.OpUpload, req, h)
	return nil
}

func (f *fakeRunner) run(op pio.Operation, req pio.Request, h pio.Handlers) {
	if f.hold {
		return
	}
	for _, s := range f.output {
		h.OnOutput(s)
	}
	if f.runErr != nil {
		h.OnError(f.runErr)
		return
	}
	r := f.result
	r.Operation = op
	r.RequestID = req.ID
	h.OnComplete(r)
}

func (f *fakeRunner) Stop(context.Context) error {
	f.stops++
	return nil
}

// drainRun feeds queued run events to the page until the run finishes and
// returns the command produced by the terminal event.
func drainRun(t *testing.T, p *BuildPage) tea.Cmd {
	t.Helper()
	for i := 0; i < 100; i++ {
		msg := p.events.wait()()
		_, cmd := p.Update(msg)
		if _, done := msg.(runDoneMsg); done {
			return cmd
		}
	}
	t.Fatal("run did not finish")
	return nil
}
