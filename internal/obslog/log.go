// Package obslog provides the engine's minimal logging surface. The
// teacher never reaches for a structured-logging dependency (it writes
// warnings straight to stderr with fmt.Fprintf), so this package stays
// just as thin: a leveled wrapper around the standard library's log.Logger
// used only off the hot path (WAL recovery warnings, failed index loads,
// corruption skips).
package obslog

import (
	"log"
	"os"
)

// Logger is the engine-wide logging surface. The zero value is unusable;
// use Default().
type Logger struct {
	l *log.Logger
}

var std = New(os.Stderr)

// Default returns the process-wide logger.
func Default() *Logger { return std }

// New creates a logger writing to w with engine-standard formatting.
func New(w *os.File) *Logger {
	return &Logger{l: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

// Warnf logs a warning. Used for recoverable conditions the caller should
// know about but that do not abort the operation: WAL truncation,
// corruption skip, best-effort index reload failure.
func (lg *Logger) Warnf(format string, args ...any) {
	lg.l.Printf("WARN "+format, args...)
}

// Infof logs an informational message.
func (lg *Logger) Infof(format string, args ...any) {
	lg.l.Printf("INFO "+format, args...)
}

func Warnf(format string, args ...any) { std.Warnf(format, args...) }
func Infof(format string, args ...any) { std.Infof(format, args...) }
