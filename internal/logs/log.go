// Package logs provides the logger shared by the CLI and the TUI.
// The TUI owns the terminal, so it logs to a file instead of stderr.
package logs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// LogOutput selects where log lines go.
type LogOutput string

const (
	// OutputStderr writes to standard error.
	OutputStderr LogOutput = "stderr"
	// OutputFile appends to Config.File.
	OutputFile LogOutput = "file"
	// OutputDiscard drops everything.
	OutputDiscard LogOutput = "discard"
)

// Logger wraps the charm logger and owns its output file, if any.
type Logger struct {
	*log.Logger
	output LogOutput
	closer io.Closer
}

// Config holds the configuration for the logger.
type Config struct {
	Output LogOutput
	// File is the log file path when Output is OutputFile.
	File string
	// Level is one of debug, info, warn, error.
	Level  string
	Prefix string
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() Config {
	return Config{
		Output: OutputStderr,
		Level:  "info",
		Prefix: "meshflash",
	}
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New creates a Logger. Opening the log file is the only failure mode.
func New(cfg Config) (*Logger, error) {
	var (
		writer io.Writer = os.Stderr
		closer io.Closer
	)

	switch cfg.Output {
	case OutputFile:
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writer, closer = f, f
	case OutputDiscard:
		writer = io.Discard
	default:
		cfg.Output = OutputStderr
	}

	logger := log.NewWithOptions(writer, log.Options{
		Level:           parseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		ReportTimestamp: cfg.Output == OutputFile,
	})

	return &Logger{Logger: logger, output: cfg.Output, closer: closer}, nil
}

// NewDefault creates a stderr logger with default configuration.
func NewDefault() *Logger {
	l, _ := New(DefaultConfig())
	return l
}

// Output returns the current output destination.
func (l *Logger) Output() LogOutput {
	return l.output
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
