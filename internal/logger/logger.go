// Package logger provides the levelled, process-wide logger used by the
// cleaner, the loaders and the CLI.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Messages follow an `event=name key=value` layout so they stay greppable:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("event=batch_start tables=%d", n)
//	logger.Debugf("event=iteration table=%s n=%d removed=%d", name, i, k)
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs failures and warnings.
	Info               // Info logs run lifecycle and terminal states.
	Debug              // Debug logs per-iteration diagnostics.
	Trace              // Trace logs per-quote decisions.
)

// current holds the active verbosity level.
// Only messages with level <= current are written.
var current atomic.Int32

// std writes to stderr with date, time and caller file:line.
//
// Example output:
//
//	2026/01/25 15:42:10 cleaner.go:87 [INFO]  event=table_clean name=calls_1
var std = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)

func init() {
	current.Store(int32(Info))
}

// SetVerbosity sets the global logging verbosity. Out-of-range values are
// clamped to [Error, Trace].
func SetVerbosity(v int) {
	switch {
	case v < int(Error):
		v = int(Error)
	case v > int(Trace):
		v = int(Trace)
	}
	current.Store(int32(v))
}

// Verbosity returns the active level.
func Verbosity() Level { return Level(current.Load()) }

// ParseVerbosity maps a config value ("error", "info", "debug", "trace" or
// a digit 0-3) to a Level.
func ParseVerbosity(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "warn":
		return Error, nil
	case "", "info":
		return Info, nil
	case "debug":
		return Debug, nil
	case "trace":
		return Trace, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(Error) || n > int(Trace) {
		return Info, fmt.Errorf("unknown verbosity %q", s)
	}
	return Level(n), nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// logf checks verbosity and hands the formatted line to std. The call depth
// skips logf and the exported wrapper so Lshortfile names the caller.
func logf(l Level, prefix, format string, args ...any) {
	if Verbosity() >= l {
		_ = std.Output(3, prefix+fmt.Sprintf(format, args...))
	}
}

// Errorf logs an error-level message.
func Errorf(format string, args ...any) {
	logf(Error, "[ERROR] ", format, args...)
}

// Warnf logs a non-fatal anomaly at error verbosity.
func Warnf(format string, args ...any) {
	logf(Error, "[WARN]  ", format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logf(Info, "[INFO]  ", format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	logf(Debug, "[DEBUG] ", format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, "[TRACE] ", format, args...)
}
