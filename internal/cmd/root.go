// Package cmd is the meshflash command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/buckleypaul/meshflash/internal/catalog"
	"github.com/buckleypaul/meshflash/internal/config"
	"github.com/buckleypaul/meshflash/internal/logs"
	"github.com/buckleypaul/meshflash/internal/output"
	"github.com/buckleypaul/meshflash/internal/pio"
	"github.com/buckleypaul/meshflash/internal/resources"
	"github.com/buckleypaul/meshflash/internal/serial"
	"github.com/buckleypaul/meshflash/internal/store"
)

// Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// runner is the orchestrator surface the commands use.
type runner interface {
	Plan(op pio.Operation, req pio.Request) (pio.Plan, error)
	StartBuild(ctx context.Context, req pio.Request, h pio.Handlers) error
	StartUpload(ctx context.Context, req pio.Request, h pio.Handlers) error
	Stop(ctx context.Context) error
}

// Replaced in tests.
var (
	loadConfig = func(flags *pflag.FlagSet) (config.Config, []string, error) {
		l := config.NewLoader()
		cfg, err := l.Load(flags)
		return cfg, l.Used(), err
	}
	resolvePaths = resources.Resolve
	newRunner    = func(cat *catalog.Catalog, opts pio.Options) runner { return pio.New(cat, opts) }
	listPorts    = serial.ListPorts
	newMonitor   = func() monitorConn { return serial.NewMonitor() }
	stateDir     = config.StateDir
	runTUI       = runProgram
)

// session is what every command gets after config is loaded.
type session struct {
	cfg   config.Config
	files []string
	paths resources.Paths
	cat   *catalog.Catalog
	log   *logs.Logger
	out   *output.Printer

	outputFormat string
}

func (s *session) store() *store.Store {
	return store.New(stateDir())
}

func (s *session) runner() runner {
	return newRunner(s.cat, pio.Options{
		WorkDir:     s.paths.Source,
		ToolPath:    s.paths.Tool,
		PythonPath:  s.paths.Python,
		GraceWindow: s.cfg.GraceWindow,
		Logger:      s.log.Logger,
	})
}

// NewRootCmd builds the command tree. Without a subcommand it starts the TUI.
func NewRootCmd() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:   "meshflash",
		Short: "Configure, build and flash MeshCore firmware",
		Long: `meshflash builds MeshCore firmware for a board and role with PlatformIO,
flashes it over a serial port, and monitors the device console.

Run without arguments for the interactive interface.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.log != nil {
				s.log.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(s)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&s.outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	pf.String("resources", "", "Resources directory holding the source tree and toolchain")
	pf.String("source", "", "Firmware source directory (contains platformio.ini)")
	pf.String("pio", "", "PlatformIO executable")
	pf.String("python", "", "Python runtime (interpreter or prefix)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.Duration("grace", 0, "How long a stop waits before killing the tool")

	root.AddCommand(newTUICmd(s))
	root.AddCommand(newBoardsCmd(s))
	root.AddCommand(newVariantsCmd(s))
	root.AddCommand(newFieldsCmd(s))
	root.AddCommand(newPresetsCmd(s))
	root.AddCommand(newBuildCmd(s))
	root.AddCommand(newFlashCmd(s))
	root.AddCommand(newPortsCmd(s))
	root.AddCommand(newMonitorCmd(s))
	root.AddCommand(newHistoryCmd(s))
	root.AddCommand(newDoctorCmd(s))

	return root
}

func (s *session) init(cmd *cobra.Command) error {
	format, err := output.ParseFormat(s.outputFormat)
	if err != nil {
		return err
	}
	s.out = output.New(cmd.OutOrStdout(), format)

	cfg, files, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.files = files

	logger, err := logs.New(logs.Config{
		Output: logs.OutputStderr,
		Level:  cfg.LogLevel,
		Prefix: "meshflash",
	})
	if err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	s.log = logger

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	s.cat = cat
	s.paths = resolvePaths(cfg)
	s.log.Debug("resolved paths", "source", s.paths.Source, "pio", s.paths.Tool, "python", s.paths.Python)
	return nil
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}

// exitCode passes the tool's own exit code through when it failed, and
// uses 130 for a run stopped by the user.
func exitCode(err error) int {
	var e *pio.Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Kind {
	case pio.StoppedByUser:
		return 130
	case pio.ProcessFailure:
		if e.ExitCode > 0 {
			return e.ExitCode
		}
	}
	return 1
}
