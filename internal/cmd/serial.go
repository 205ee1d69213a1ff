package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/buckleypaul/meshflash/internal/serial"
	"github.com/buckleypaul/meshflash/internal/store"
)

// monitorConn is the part of serial.Monitor the monitor command uses.
type monitorConn interface {
	Connect(port string, baud int) error
	Disconnect()
	Write(data []byte) error
	DataChan() <-chan string
	Connected() bool
	Reset() error
}

var errPortClosed = errors.New("serial port closed")

// portPollInterval is how often the monitor checks the port is still there.
var portPollInterval = time.Second

func newPortsCmd(s *session) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := listPorts()
			if err != nil {
				return err
			}
			if !all {
				if boards := serial.DevBoards(ports); len(boards) > 0 {
					ports = boards
				}
			}
			return s.out.Print(ports, func() error {
				rows := make([][]string, 0, len(ports))
				for _, p := range ports {
					ids := ""
					if p.IsUSB {
						ids = p.VID + ":" + p.PID
					}
					rows = append(rows, []string{p.Name, ids, p.Product, strconv.FormatBool(p.LikelyDevBoard)})
				}
				return s.out.Table([]string{"PORT", "USB ID", "PRODUCT", "DEV BOARD"}, rows)
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include ports that do not look like dev boards")
	return cmd
}

func newMonitorCmd(s *session) *cobra.Command {
	var (
		reset   bool
		logPath string
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Open the serial console of a board",
		Long: `Streams the board's serial output to stdout and sends each line read from
stdin to the board. Stops on Ctrl-C or when the port goes away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, baud := s.cfg.SerialPort, s.cfg.SerialBaudRate
			if port == "" {
				return errors.New("no port: pass --port or set serial_port (see `meshflash ports`)")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return s.monitor(ctx, cmd, port, baud, reset, logPath)
		},
	}
	cmd.Flags().String("port", "", "Serial port")
	cmd.Flags().Int("baud", serial.DefaultBaudRate, "Baud rate")
	cmd.Flags().BoolVar(&reset, "reset", false, "Reset the board after connecting")
	cmd.Flags().StringVar(&logPath, "log", "", "Also append the output to this file")
	return cmd
}

func (s *session) monitor(ctx context.Context, cmd *cobra.Command, port string, baud int, reset bool, logPath string) error {
	conn := newMonitor()
	if err := conn.Connect(port, baud); err != nil {
		return fmt.Errorf("connect %s: %w", port, err)
	}
	defer conn.Disconnect()
	fmt.Fprintf(cmd.ErrOrStderr(), "Connected to %s @ %d (Ctrl-C to quit)\n", port, baud)

	out := cmd.OutOrStdout()
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = io.MultiWriter(out, f)
		if err := s.store().AddSerialLog(store.SerialLog{Port: port, BaudRate: baud, Timestamp: time.Now(), LogFile: logPath}); err != nil {
			s.log.Warn("recording serial log", "err", err)
		}
	}

	if reset {
		if err := conn.Reset(); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// Reading stdin cannot be interrupted, so lines come in over a channel
	// the group can abandon.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-gctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		ticker := time.NewTicker(portPollInterval)
		defer ticker.Stop()
		data := conn.DataChan()
		for {
			select {
			case <-gctx.Done():
				return nil
			case chunk := <-data:
				if _, err := io.WriteString(out, chunk); err != nil {
					return err
				}
			case <-ticker.C:
				if !conn.Connected() {
					drain(data, out)
					return errPortClosed
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					// stdin closed; keep listening.
					<-gctx.Done()
					return nil
				}
				if err := conn.Write([]byte(line + "\r\n")); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

// drain writes whatever the reader buffered before the port went away.
func drain(data <-chan string, out io.Writer) {
	for {
		select {
		case chunk := <-data:
			io.WriteString(out, chunk)
		default:
			return
		}
	}
}
