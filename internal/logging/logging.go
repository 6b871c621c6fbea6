// Package logging constructs the run logger. The pipeline receives a
// zerolog.Logger explicitly; nothing logs through package globals.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Invalid or empty
	// falls back to info.
	Level string

	// Format is "console" or "json". Default is console.
	Format string

	// Output receives log lines. Default is stderr.
	Output io.Writer
}

// New builds a logger with a timestamp and the given run id attached to
// every line.
func New(opts Options, runID string) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp().
		Str("run", runID).
		Logger()
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
