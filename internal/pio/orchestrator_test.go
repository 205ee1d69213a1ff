//go:build !windows

package pio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/meshflash/internal/catalog"
)

const baseIni = "[platformio]\ndefault_envs = Heltec_v3_repeater\n"

const echoScript = `#!/bin/sh
echo "args: $*"
if [ "$2" = "-c" ] && [ -f "$3" ]; then
  echo "config present"
fi
echo "to stderr" 1>&2
exit 0
`

type fixture struct {
	o       *Orchestrator
	project string
	spawns  *atomic.Int32
}

func (f fixture) artifact() string {
	return filepath.Join(f.project, CustomConfigName)
}

func newFixture(t *testing.T, script string) fixture {
	t.Helper()
	dir := t.TempDir()
	project := filepath.Join(dir, "meshcore")
	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, BaseConfigName), []byte(baseIni), 0o644))

	tool := filepath.Join(dir, "platformio", "penv", "bin", "pio")
	require.NoError(t, os.MkdirAll(filepath.Dir(tool), 0o755))
	require.NoError(t, os.WriteFile(tool, []byte(script), 0o755))

	o := New(catalog.MustLoad(), Options{
		WorkDir:     project,
		ToolPath:    tool,
		GraceWindow: 300 * time.Millisecond,
	})
	spawns := &atomic.Int32{}
	o.startProcess = func(cmd *exec.Cmd) error {
		spawns.Add(1)
		return cmd.Start()
	}
	return fixture{o: o, project: project, spawns: spawns}
}

// recorder collects handler calls for one run.
type recorder struct {
	mu        sync.Mutex
	out       strings.Builder
	result    *Result
	err       error
	terminals int

	done      chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}), ready: make(chan struct{})}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOutput: func(s string) {
			r.mu.Lock()
			r.out.WriteString(s)
			seen := strings.Contains(r.out.String(), "PIO_READY")
			r.mu.Unlock()
			if seen {
				r.readyOnce.Do(func() { close(r.ready) })
			}
		},
		OnComplete: func(res Result) {
			r.mu.Lock()
			r.result = &res
			r.terminals++
			r.mu.Unlock()
			close(r.done)
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.err = err
			r.terminals++
			r.mu.Unlock()
			close(r.done)
		},
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

func (r *recorder) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-r.ready:
	case <-time.After(10 * time.Second):
		t.Fatal("process never reported ready")
	}
}

func (r *recorder) output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.String()
}

func repeaterRequest() Request {
	return Request{Board: "heltec_v3", Variant: "repeater", Flags: repeaterFlags}
}

func assertNoArtifact(t *testing.T, f fixture) {
	t.Helper()
	_, err := os.Stat(f.artifact())
	assert.True(t, os.IsNotExist(err), "derived configuration should be removed, stat err = %v", err)
}

func TestBuildSucceedsWithDerivedEnv(t *testing.T) {
	f := newFixture(t, echoScript)
	rec := newRecorder()

	req := repeaterRequest()
	req.ID = "req-1"
	require.NoError(t, f.o.StartBuild(context.Background(), req, rec.handlers()))
	rec.wait(t)

	require.NoError(t, rec.err)
	require.NotNil(t, rec.result)
	assert.Equal(t, 1, rec.terminals)
	assert.Equal(t, OpBuild, rec.result.Operation)
	assert.Equal(t, "req-1", rec.result.RequestID)
	assert.Equal(t, "Heltec_v3_repeater_custom", rec.result.Env)
	assert.Equal(t, 0, rec.result.ExitCode)
	assert.Equal(t, "Build completed successfully", rec.result.Message)

	out := rec.output()
	assert.Contains(t, out, "args: run -c "+f.artifact()+" -e Heltec_v3_repeater_custom")
	assert.Contains(t, out, "config present")
	assert.Contains(t, out, "to stderr")
	assert.Contains(t, out, "-DADVERT_NAME='\"Node1\"'")

	assertNoArtifact(t, f)
	assert.Equal(t, Idle, f.o.State())
	assert.Equal(t, int32(1), f.spawns.Load())

	base, err := os.ReadFile(filepath.Join(f.project, BaseConfigName))
	require.NoError(t, err)
	assert.Equal(t, baseIni, string(base))
}

func TestBuildWithoutFlagsSkipsSynthesis(t *testing.T) {
	f := newFixture(t, echoScript)
	rec := newRecorder()

	req := Request{Board: "heltec_v3", Variant: "terminal_chat", Flags: noFlags}
	require.NoError(t, f.o.StartBuild(context.Background(), req, rec.handlers()))
	rec.wait(t)

	require.NoError(t, rec.err)
	assert.Equal(t, "Heltec_v3_terminal_chat", rec.result.Env)
	assert.Contains(t, rec.output(), "args: run -e Heltec_v3_terminal_chat")
	assert.NotEmpty(t, rec.result.RequestID)
}

func TestUploadPassesPortAndErase(t *testing.T) {
	f := newFixture(t, echoScript)
	rec := newRecorder()

	req := repeaterRequest()
	req.Port = "/dev/ttyUSB0"
	req.Erase = true
	require.NoError(t, f.o.StartUpload(context.Background(), req, rec.handlers()))
	rec.wait(t)

	require.NoError(t, rec.err)
	assert.Equal(t, "Upload completed successfully", rec.result.Message)
	assert.Contains(t, rec.output(), "--target erase --target upload --upload-port /dev/ttyUSB0")
	assertNoArtifact(t, f)
}

func TestNonZeroExitIsProcessFailure(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho compiling\nexit 3\n")
	rec := newRecorder()

	require.NoError(t, f.o.StartBuild(context.Background(), repeaterRequest(), rec.handlers()))
	rec.wait(t)

	require.Error(t, rec.err)
	var perr *Error
	require.True(t, errors.As(rec.err, &perr))
	assert.Equal(t, ProcessFailure, perr.Kind)
	assert.Equal(t, 3, perr.ExitCode)
	assert.Empty(t, perr.Signal)
	assert.Nil(t, rec.result)
	assert.Contains(t, rec.output(), "compiling")
	assertNoArtifact(t, f)
	assert.Equal(t, Idle, f.o.State())
}

func TestUploadWithoutPortNeverSpawns(t *testing.T) {
	f := newFixture(t, echoScript)
	rec := newRecorder()

	require.NoError(t, f.o.StartUpload(context.Background(), repeaterRequest(), rec.handlers()))
	rec.wait(t)

	assert.True(t, errors.Is(rec.err, ErrInvalidConfiguration), "got %v", rec.err)
	assert.Equal(t, int32(0), f.spawns.Load())
	assertNoArtifact(t, f)
	assert.Equal(t, Idle, f.o.State())
}

func TestUnknownBoardNeverSpawns(t *testing.T) {
	f := newFixture(t, echoScript)
	rec := newRecorder()

	require.NoError(t, f.o.StartBuild(context.Background(), Request{Board: "nope", Variant: "repeater"}, rec.handlers()))
	rec.wait(t)

	assert.True(t, errors.Is(rec.err, ErrInvalidConfiguration))
	assert.Equal(t, int32(0), f.spawns.Load())
}

func TestMissingDependencies(t *testing.T) {
	tests := []struct {
		name  string
		alter func(f fixture)
	}{
		{"missing tool", func(f fixture) { f.o.opts.ToolPath = filepath.Join(f.project, "no-such-pio") }},
		{"missing project", func(f fixture) { f.o.opts.WorkDir = filepath.Join(f.project, "gone") }},
		{"missing python", func(f fixture) { f.o.opts.PythonPath = filepath.Join(f.project, "python3") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, echoScript)
			tt.alter(f)
			rec := newRecorder()

			require.NoError(t, f.o.StartBuild(context.Background(), repeaterRequest(), rec.handlers()))
			rec.wait(t)

			assert.True(t, errors.Is(rec.err, ErrDependenciesUnavailable), "got %v", rec.err)
			assert.Equal(t, int32(0), f.spawns.Load())
			assertNoArtifact(t, f)
		})
	}
}

func TestSecondStartIsRejectedWhileRunning(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho PIO_READY\nsleep 30\n")
	rec := newRecorder()

	require.NoError(t, f.o.StartBuild(context.Background(), repeaterRequest(), rec.handlers()))
	rec.waitReady(t)
	assert.Equal(t, Running, f.o.State())

	second := newRecorder()
	err := f.o.StartUpload(context.Background(), Request{Board: "heltec_v3", Variant: "repeater", Port: "/dev/ttyUSB0"}, second.handlers())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
	err = f.o.StartBuild(context.Background(), repeaterRequest(), second.handlers())
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
	assert.Equal(t, int32(1), f.spawns.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.o.Stop(ctx))
	assert.Equal(t, Idle, f.o.State())
	assertNoArtifact(t, f)

	rec.wait(t)
	assert.True(t, errors.Is(rec.err, ErrStoppedByUser), "got %v", rec.err)
	assert.Equal(t, 1, rec.terminals)

	select {
	case <-second.done:
		t.Fatal("rejected start must not call handlers")
	default:
	}
}

func TestStopWhenIdle(t *testing.T) {
	f := newFixture(t, echoScript)

	start := time.Now()
	require.NoError(t, f.o.Stop(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int32(0), f.spawns.Load())
}

func TestStopEscalatesAfterGraceWindow(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\ntrap '' TERM\necho PIO_READY\nexec sleep 30\n")
	rec := newRecorder()

	require.NoError(t, f.o.StartBuild(context.Background(), repeaterRequest(), rec.handlers()))
	rec.waitReady(t)

	start := time.Now()
	require.NoError(t, f.o.Stop(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, f.o.opts.GraceWindow)
	assert.Less(t, elapsed, 10*time.Second)
	assert.Equal(t, Idle, f.o.State())
	assertNoArtifact(t, f)

	rec.wait(t)
	var perr *Error
	require.True(t, errors.As(rec.err, &perr))
	assert.Equal(t, StoppedByUser, perr.Kind)
	assert.Equal(t, "SIGKILL", perr.Signal)
}

func TestContextCancelStopsRun(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho PIO_READY\nsleep 30\n")
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.o.StartBuild(ctx, repeaterRequest(), rec.handlers()))
	rec.waitReady(t)

	cancel()
	rec.wait(t)

	assert.True(t, errors.Is(rec.err, ErrStoppedByUser), "got %v", rec.err)
	assert.Equal(t, Idle, f.o.State())
	assertNoArtifact(t, f)
}

func TestStopTimesOutWithCallerContext(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\ntrap '' TERM\necho PIO_READY\nexec sleep 30\n")
	f.o.opts.GraceWindow = 2 * time.Second
	rec := newRecorder()

	require.NoError(t, f.o.StartBuild(context.Background(), repeaterRequest(), rec.handlers()))
	rec.waitReady(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.o.Stop(ctx), context.DeadlineExceeded)
	assert.Equal(t, Stopping, f.o.State())

	require.NoError(t, f.o.Stop(context.Background()))
	rec.wait(t)
	assert.True(t, errors.Is(rec.err, ErrStoppedByUser))
}

func TestHandlerMayStartNextRun(t *testing.T) {
	f := newFixture(t, echoScript)
	second := newRecorder()

	startErr := make(chan error, 1)
	first := Handlers{
		OnComplete: func(Result) {
			startErr <- f.o.StartBuild(context.Background(), repeaterRequest(), second.handlers())
		},
	}
	require.NoError(t, f.o.StartBuild(context.Background(), repeaterRequest(), first))

	select {
	case err := <-startErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("first run did not complete")
	}
	second.wait(t)

	assert.NoError(t, second.err)
	assert.Equal(t, int32(2), f.spawns.Load())
}
