package cmd

import (
	"context"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/meshflash/internal/app"
	"github.com/buckleypaul/meshflash/internal/config"
	"github.com/buckleypaul/meshflash/internal/logs"
	"github.com/buckleypaul/meshflash/internal/pages"
	"github.com/buckleypaul/meshflash/internal/pio"
	"github.com/buckleypaul/meshflash/internal/store"
)

func newTUICmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive interface (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(s)
		},
	}
	cmd.Flags().String("board", "", "Preselect a board")
	cmd.Flags().String("variant", "", "Preselect a variant")
	cmd.Flags().String("port", "", "Preselect a serial port")
	cmd.Flags().Int("baud", 0, "Monitor baud rate")
	return cmd
}

// runProgram runs the TUI. The alt screen owns the terminal, so logs go to
// a file in the state dir.
func runProgram(s *session) error {
	cfg := s.cfg
	logger, err := logs.New(logs.Config{
		Output: logs.OutputFile,
		File:   filepath.Join(stateDir(), "meshflash.log"),
		Level:  cfg.LogLevel,
		Prefix: "meshflash",
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	orch := pio.New(s.cat, pio.Options{
		WorkDir:     s.paths.Source,
		ToolPath:    s.paths.Tool,
		PythonPath:  s.paths.Python,
		GraceWindow: cfg.GraceWindow,
		Logger:      logger.Logger,
	})
	st := store.New(stateDir())

	build := pages.NewBuildPage(pages.BuildOptions{
		Catalog: s.cat,
		Runner:  orch,
		Store:   st,
		Logger:  logger.Logger,
		Port:    cfg.SerialPort,
	})
	monitor := pages.NewMonitorPage(st, cfg.SerialBaudRate)

	pageMap := map[app.PageID]app.Page{
		app.BuildPage:    build,
		app.MonitorPage:  monitor,
		app.HistoryPage:  pages.NewHistoryPage(st),
		app.BoardsPage:   pages.NewBoardsPage(s.cat),
		app.SettingsPage: pages.NewSettingsPage(&cfg, config.GlobalConfigPath()),
	}

	model := app.New(pageMap, app.Options{
		Catalog: s.cat,
		Selection: config.Selection{
			Board:   cfg.DefaultBoard,
			Variant: cfg.DefaultVariant,
			Port:    cfg.SerialPort,
		},
		ConfigPath: config.GlobalConfigPath(),
		Logger:     logger.Logger,
	})

	logger.Info("tui starting", "source", s.paths.Source, "pio", s.paths.Tool)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, runErr := p.Run()

	// Release anything a run is blocked on, then wait for the tool to exit.
	build.Close()
	monitor.Close()
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout())
	defer cancel()
	if err := orch.Stop(ctx); err != nil {
		logger.Warn("stopping run on exit", "err", err)
	}
	return runErr
}
