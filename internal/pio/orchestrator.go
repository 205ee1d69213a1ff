// Package pio drives PlatformIO: it resolves a board/variant selection into
// a command line, injects extra compile definitions through a derived
// environment, and runs at most one build or upload at a time.
package pio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/buckleypaul/meshflash/internal/catalog"
)

// DefaultGraceWindow is how long Stop waits after the graceful signal
// before killing the process group.
const DefaultGraceWindow = 5 * time.Second

const readChunk = 4096

// State is the orchestrator's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configure an Orchestrator.
type Options struct {
	// WorkDir is the PlatformIO project holding platformio.ini.
	WorkDir string
	// ToolPath is the pio executable.
	ToolPath string
	// PythonPath is the bundled Python runtime (interpreter or prefix).
	// Optional; when set it must exist.
	PythonPath  string
	GraceWindow time.Duration
	Logger      *log.Logger
}

// Handlers receive the progress of one run. OnOutput may be called any
// number of times, then exactly one of OnComplete or OnError is called.
// Handlers are invoked from the run's goroutine.
type Handlers struct {
	OnOutput   func(string)
	OnComplete func(Result)
	OnError    func(error)
}

func (h Handlers) output(s string) {
	if h.OnOutput != nil {
		h.OnOutput(s)
	}
}

// Result describes a successful run.
type Result struct {
	Operation Operation
	RequestID string
	Env       string
	ExitCode  int
	Duration  time.Duration
	Message   string
}

// Orchestrator owns the single external PlatformIO process.
type Orchestrator struct {
	cat  *catalog.Catalog
	opts Options
	log  *log.Logger

	// startProcess is swapped in tests to count spawns.
	startProcess func(*exec.Cmd) error

	mu  sync.Mutex
	cur *run
}

// run is the bookkeeping for one accepted request.
type run struct {
	id string

	mu       sync.Mutex
	stopping bool
	exited   bool
	proc     *os.Process
	timer    *time.Timer

	// done is closed after the process exited, the artifact was removed and
	// the orchestrator went back to Idle.
	done chan struct{}
}

// New returns an idle Orchestrator.
func New(cat *catalog.Catalog, opts Options) *Orchestrator {
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = DefaultGraceWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Orchestrator{
		cat:          cat,
		opts:         opts,
		log:          logger,
		startProcess: func(cmd *exec.Cmd) error { return cmd.Start() },
	}
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	cur := o.cur
	o.mu.Unlock()
	if cur == nil {
		return Idle
	}
	cur.mu.Lock()
	defer cur.mu.Unlock()
	if cur.stopping {
		return Stopping
	}
	return Running
}

// Running reports whether a build or upload is in progress.
func (o *Orchestrator) Running() bool {
	return o.State() != Idle
}

// Plan resolves a request without running anything.
func (o *Orchestrator) Plan(op Operation, req Request) (Plan, error) {
	return resolve(o.cat, o.opts.WorkDir, op, req)
}

// StartBuild compiles the selected environment.
func (o *Orchestrator) StartBuild(ctx context.Context, req Request, h Handlers) error {
	return o.start(ctx, OpBuild, req, h)
}

// StartUpload compiles and flashes the selected environment to req.Port.
func (o *Orchestrator) StartUpload(ctx context.Context, req Request, h Handlers) error {
	return o.start(ctx, OpUpload, req, h)
}

// start accepts the request or rejects it with AlreadyRunning. Rejection is
// returned directly and no handler is called. Everything else, including
// invalid requests, is reported through h.
func (o *Orchestrator) start(ctx context.Context, op Operation, req Request, h Handlers) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	o.mu.Lock()
	if o.cur != nil {
		o.mu.Unlock()
		return newError(AlreadyRunning, "a build or upload is already in progress")
	}
	r := &run{id: req.ID, done: make(chan struct{})}
	o.cur = r
	o.mu.Unlock()

	go o.watchContext(ctx, r)
	go o.execute(op, req, h, r)
	return nil
}

// watchContext stops the run when the caller's context ends first.
func (o *Orchestrator) watchContext(ctx context.Context, r *run) {
	select {
	case <-ctx.Done():
		o.log.Debug("context done, stopping run", "id", r.id, "err", ctx.Err())
		o.requestStop(r)
	case <-r.done:
	}
}

// Stop cancels the current run: SIGTERM to the process group, then SIGKILL
// once the grace window has passed. It returns after the process exited and
// the run was cleaned up, or with ctx.Err() if ctx ends first. Stop on an
// idle orchestrator returns nil immediately.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	r := o.cur
	o.mu.Unlock()
	if r == nil {
		return nil
	}

	o.requestStop(r)

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) requestStop(r *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping {
		return
	}
	r.stopping = true
	if r.proc == nil || r.exited {
		// Not spawned yet; execute sees stopping and never spawns.
		return
	}

	o.log.Info("stopping", "id", r.id, "pid", r.proc.Pid)
	if err := terminate(r.proc); err != nil {
		o.log.Warn("graceful termination failed", "pid", r.proc.Pid, "err", err)
	}
	proc := r.proc
	r.timer = time.AfterFunc(o.opts.GraceWindow, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.exited {
			return
		}
		o.log.Warn("grace window elapsed, killing", "pid", proc.Pid)
		if err := kill(proc); err != nil {
			o.log.Warn("kill failed", "pid", proc.Pid, "err", err)
		}
	})
}

func (r *run) stopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

// execute runs one accepted request to completion. Exactly one terminal
// handler is called, after the artifact is gone and the orchestrator is Idle.
func (o *Orchestrator) execute(op Operation, req Request, h Handlers, r *run) {
	started := time.Now()
	var (
		result Result
		runErr error
		custom *CustomEnv
	)

	defer func() {
		custom.Cleanup(o.log)

		o.mu.Lock()
		o.cur = nil
		o.mu.Unlock()
		close(r.done)

		if runErr != nil {
			o.log.Info("run failed", "id", r.id, "op", op, "err", runErr)
			if h.OnError != nil {
				h.OnError(runErr)
			}
			return
		}
		o.log.Info("run finished", "id", r.id, "op", op, "env", result.Env, "duration", result.Duration)
		if h.OnComplete != nil {
			h.OnComplete(result)
		}
	}()

	plan, err := o.Plan(op, req)
	if err != nil {
		runErr = err
		h.output(fmt.Sprintf("error: %v\r\n", err))
		return
	}
	if err := o.checkDependencies(); err != nil {
		runErr = err
		h.output(fmt.Sprintf("error: %v\r\n", err))
		return
	}

	if len(plan.Flags) > 0 {
		h.output("Build flags: -D" + strings.Join(plan.Flags, " -D") + "\r\n")
		custom, err = Synthesizer{WorkDir: o.opts.WorkDir}.Materialize(plan.BaseEnv, plan.Flags)
		if err != nil {
			runErr = wrapError(err, DependenciesUnavailable, "derived environment")
			return
		}
		o.log.Debug("materialized derived environment", "env", custom.EnvName, "path", custom.ConfigPath)
	}
	if op == OpUpload && req.Erase {
		h.output("Board will be erased before upload\r\n")
	}
	h.output("Command: " + plan.Command(o.opts.ToolPath) + "\r\n\r\n")

	exitCode, signal, err := o.spawnAndWait(plan, h, r)
	if err != nil {
		runErr = err
		return
	}

	stopped := r.stopRequested()
	switch {
	case stopped && (exitCode != 0 || signal != ""):
		runErr = &Error{Kind: StoppedByUser, Message: fmt.Sprintf("%s stopped by user", op), ExitCode: exitCode, Signal: signal}
	case exitCode == 0 && signal == "":
		result = Result{
			Operation: op,
			RequestID: r.id,
			Env:       plan.Env,
			ExitCode:  0,
			Duration:  time.Since(started),
			Message:   successMessage(op),
		}
	case signal != "":
		runErr = &Error{Kind: ProcessFailure, Message: fmt.Sprintf("pio terminated by %s", signal), ExitCode: exitCode, Signal: signal}
	default:
		runErr = &Error{Kind: ProcessFailure, Message: fmt.Sprintf("pio exited with code %d", exitCode), ExitCode: exitCode}
	}
}

func successMessage(op Operation) string {
	if op == OpUpload {
		return "Upload completed successfully"
	}
	return "Build completed successfully"
}

// checkDependencies fails when the project or tool is missing. Nothing is
// provisioned here.
func (o *Orchestrator) checkDependencies() error {
	info, err := os.Stat(o.opts.WorkDir)
	if err != nil {
		return wrapError(err, DependenciesUnavailable, "project directory %s", o.opts.WorkDir)
	}
	if !info.IsDir() {
		return newError(DependenciesUnavailable, "project directory %s is not a directory", o.opts.WorkDir)
	}
	if o.opts.ToolPath == "" {
		return newError(DependenciesUnavailable, "pio executable not configured")
	}
	if _, err := os.Stat(o.opts.ToolPath); err != nil {
		return wrapError(err, DependenciesUnavailable, "pio executable %s", o.opts.ToolPath)
	}
	if o.opts.PythonPath != "" {
		if _, err := os.Stat(o.opts.PythonPath); err != nil {
			return wrapError(err, DependenciesUnavailable, "python runtime %s", o.opts.PythonPath)
		}
	}
	return nil
}

// spawnAndWait starts the tool with stdout and stderr on one pipe, streams
// the pipe to h.OnOutput and waits for exit. A non-nil error means the
// process never ran.
func (o *Orchestrator) spawnAndWait(plan Plan, h Handlers, r *run) (int, string, error) {
	cmd := exec.Command(o.opts.ToolPath, plan.Args...)
	cmd.Dir = o.opts.WorkDir
	cmd.Env = processEnv(os.Environ(), toolDirs(o.opts.ToolPath, o.opts.PythonPath)...)
	setProcessGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return 0, "", wrapError(err, SpawnFailure, "output pipe")
	}
	defer pr.Close()
	cmd.Stdout = pw
	cmd.Stderr = pw

	// The stop check and the spawn share r.mu so a Stop issued before the
	// spawn cannot be lost.
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		pw.Close()
		return 0, "", &Error{Kind: StoppedByUser, Message: fmt.Sprintf("%s stopped by user", plan.Operation)}
	}
	err = o.startProcess(cmd)
	if err == nil {
		r.proc = cmd.Process
	}
	r.mu.Unlock()
	pw.Close()
	if err != nil {
		return 0, "", wrapError(err, SpawnFailure, "start %s", o.opts.ToolPath)
	}
	o.log.Info("spawned", "id", r.id, "pid", cmd.Process.Pid, "env", plan.Env)

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		buf := make([]byte, readChunk)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				h.output(string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	waitErr := cmd.Wait()

	r.mu.Lock()
	r.exited = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()

	// A grandchild that outlives the tool can hold the pipe open; give the
	// reader a moment to drain, then close our end.
	select {
	case <-copied:
	case <-time.After(2 * time.Second):
		pr.Close()
		<-copied
	}

	if waitErr == nil {
		return 0, "", nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), exitSignal(exitErr.ProcessState), nil
	}
	return -1, "", wrapError(waitErr, ProcessFailure, "wait for %s", o.opts.ToolPath)
}
