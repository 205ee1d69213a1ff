package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/meshflash/internal/pio"
	"github.com/buckleypaul/meshflash/internal/store"
)

// runFlags are shared by build and flash.
type runFlags struct {
	flags  []string
	custom string
	preset string
	dryRun bool
	erase  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("board", "", "Board id (see `meshflash boards`)")
	fs.String("variant", "", "Variant id (see `meshflash variants`)")
	fs.StringArrayVarP(&f.flags, "flag", "D", nil, "Set a variant setting, NAME=VALUE (repeatable)")
	fs.StringVar(&f.custom, "custom", "", "Extra definitions, e.g. \"MY_FLAG=1 -DOTHER=2\"")
	fs.StringVar(&f.preset, "preset", "", "Regional LoRa preset (see `meshflash presets`)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print the command without running it")
}

func newBuildCmd(s *session) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build firmware for a board and variant",
		Example: `  meshflash build --board heltec_v3 --variant repeater -D ADVERT_NAME="Hilltop" --preset uk_eu
  meshflash build --board rak4631 --variant companion_ble --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, pio.OpBuild, f)
		},
	}
	f.register(cmd)
	return cmd
}

func newFlashCmd(s *session) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:     "flash",
		Short:   "Build firmware and upload it to a board",
		Example: `  meshflash flash --board heltec_v3 --variant companion_usb --port /dev/ttyUSB0 --erase`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, pio.OpUpload, f)
		},
	}
	f.register(cmd)
	cmd.Flags().String("port", "", "Serial port of the board")
	cmd.Flags().BoolVar(&f.erase, "erase", false, "Erase flash before uploading")
	return cmd
}

// request assembles a request from config (which carries --board, --variant
// and --port) and the run flags.
func (s *session) request(op pio.Operation, f *runFlags) (pio.Request, error) {
	req := pio.Request{
		ID:      uuid.NewString(),
		Board:   s.cfg.DefaultBoard,
		Variant: s.cfg.DefaultVariant,
		Flags:   map[string]string{},
		Custom:  f.custom,
		Erase:   f.erase,
	}
	if req.Board == "" {
		return req, errors.New("no board selected: pass --board or set default_board")
	}
	if req.Variant == "" {
		return req, errors.New("no variant selected: pass --variant or set default_variant")
	}

	for _, kv := range f.flags {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return req, fmt.Errorf("invalid --flag %q: want NAME=VALUE", kv)
		}
		req.Flags[name] = value
	}

	if f.preset != "" {
		p, err := s.cat.Preset(f.preset)
		if err != nil {
			return req, err
		}
		req.Custom = strings.TrimSpace(req.Custom + " " + p.CustomFlags())
	}

	if op == pio.OpUpload {
		req.Port = s.cfg.SerialPort
		if req.Port == "" {
			return req, errors.New("no upload port: pass --port or set serial_port (see `meshflash ports`)")
		}
	}
	return req, nil
}

// planView is the dry-run output.
type planView struct {
	Operation pio.Operation `json:"operation" yaml:"operation"`
	Env       string        `json:"env" yaml:"env"`
	Flags     []string      `json:"flags,omitempty" yaml:"flags,omitempty"`
	WorkDir   string        `json:"work_dir" yaml:"work_dir"`
	Command   string        `json:"command" yaml:"command"`
}

// runOutcome is the terminal event of a run.
type runOutcome struct {
	result pio.Result
	err    error
}

// stopTimeout bounds how long an interrupted command waits for the tool.
func (s *session) stopTimeout() time.Duration {
	return 2*s.cfg.GraceWindow + 5*time.Second
}

func (s *session) run(cmd *cobra.Command, op pio.Operation, f *runFlags) error {
	req, err := s.request(op, f)
	if err != nil {
		return err
	}
	r := s.runner()

	plan, planErr := r.Plan(op, req)
	if f.dryRun {
		if planErr != nil {
			return planErr
		}
		tool := s.paths.Tool
		if tool == "" {
			tool = "pio"
		}
		view := planView{Operation: op, Env: plan.Env, Flags: plan.Flags, WorkDir: s.paths.Source, Command: plan.Command(tool)}
		return s.out.Print(view, func() error {
			s.out.Message("Environment: %s", view.Env)
			if len(view.Flags) > 0 {
				s.out.Message("Build flags: -D%s", strings.Join(view.Flags, " -D"))
			}
			s.out.Message("Directory:   %s", view.WorkDir)
			s.out.Message("Command:     %s", view.Command)
			return nil
		})
	}

	out := cmd.OutOrStdout()
	done := make(chan runOutcome, 1)
	handlers := pio.Handlers{
		OnOutput:   func(chunk string) { io.WriteString(out, chunk) },
		OnComplete: func(res pio.Result) { done <- runOutcome{result: res} },
		OnError:    func(err error) { done <- runOutcome{err: err} },
	}

	start := r.StartBuild
	if op == pio.OpUpload {
		start = r.StartUpload
	}
	started := time.Now()
	s.log.Info("starting", "op", op, "id", req.ID, "board", req.Board, "variant", req.Variant)
	if err := start(cmd.Context(), req, handlers); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var res runOutcome
	select {
	case res = <-done:
	case <-ctx.Done():
		fmt.Fprintln(cmd.ErrOrStderr(), "\nStopping...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), s.stopTimeout())
		if err := r.Stop(stopCtx); err != nil {
			s.log.Warn("stop", "err", err)
		}
		stopCancel()
		res = <-done
	}

	s.record(op, req, plan, started, res)

	if res.err != nil {
		return res.err
	}
	fmt.Fprintf(out, "\n%s (%s, %s)\n", res.result.Message, res.result.Env, res.result.Duration.Round(time.Millisecond))
	return nil
}

// record files the run in history. A failure to record never fails the run.
func (s *session) record(op pio.Operation, req pio.Request, plan pio.Plan, started time.Time, res runOutcome) {
	env, duration := plan.Env, time.Since(started)
	if res.err == nil {
		env, duration = res.result.Env, res.result.Duration
	}
	err := s.store().AddRun(store.Run{
		RequestID: req.ID,
		Upload:    op == pio.OpUpload,
		Board:     req.Board,
		Variant:   req.Variant,
		Env:       env,
		Port:      req.Port,
		Erase:     req.Erase,
		Flags:     plan.Flags,
		Started:   started,
		Duration:  duration,
		ExitCode:  pio.ExitCodeOf(res.err),
		Outcome:   pio.Outcome(res.err),
		Err:       res.err,
	})
	if err != nil {
		s.log.Warn("recording run", "id", req.ID, "err", err)
	}
}
