package pio

import (
	"errors"
	"fmt"
)

// Kind distinguishes operation failures so callers can tell a user
// cancellation from a tool failure from a broken environment.
type Kind string

const (
	ConfigurationMissing    Kind = "configuration_missing"
	InvalidConfiguration    Kind = "invalid_configuration"
	DependenciesUnavailable Kind = "dependencies_unavailable"
	AlreadyRunning          Kind = "already_running"
	ProcessFailure          Kind = "process_failure"
	StoppedByUser           Kind = "stopped_by_user"
	SpawnFailure            Kind = "spawn_failure"
)

// Error is the error type reported through Handlers.OnError and returned
// synchronously by Start when an operation is already running.
type Error struct {
	Kind    Kind
	Message string

	// ExitCode and Signal are set for ProcessFailure. ExitCode is -1 when
	// the process was terminated by a signal.
	ExitCode int
	Signal   string

	cause error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same Kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrConfigurationMissing    = &Error{Kind: ConfigurationMissing}
	ErrInvalidConfiguration    = &Error{Kind: InvalidConfiguration}
	ErrDependenciesUnavailable = &Error{Kind: DependenciesUnavailable}
	ErrAlreadyRunning          = &Error{Kind: AlreadyRunning}
	ErrProcessFailure          = &Error{Kind: ProcessFailure}
	ErrStoppedByUser           = &Error{Kind: StoppedByUser}
	ErrSpawnFailure            = &Error{Kind: SpawnFailure}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Outcome summarizes a run's terminal error for history: "success" for
// nil, "stopped" for StoppedByUser, "failed" when the tool ran and failed,
// "error" otherwise.
func Outcome(err error) string {
	switch KindOf(err) {
	case "":
		if err == nil {
			return "success"
		}
		return "error"
	case StoppedByUser:
		return "stopped"
	case ProcessFailure:
		return "failed"
	}
	return "error"
}

// ExitCodeOf returns the tool's exit code carried by err, or 0.
func ExitCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode
	}
	return 0
}
