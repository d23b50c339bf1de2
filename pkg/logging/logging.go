// Package logging configures zerolog for kiln. Components derive their
// loggers from the global one with a "component" field.
package logging

import (
	"io"
	stdLog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var logWriter io.Writer

func init() {
	// quiet until the CLI has read its configuration
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
}

// stdLogWriter forwards standard library log output at debug level.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (int, error) {
	w.logger.Debug().Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// ConfigureGlobal sets the global level and rebuilds the global logger on
// the current writer. Standard library log output is redirected to it.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(logWriter).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: log.With().Str("component", "stdlog").Logger()})
}

// ParseLevel converts a configured level name; unknown or empty names fall
// back to error.
func ParseLevel(name string) zerolog.Level {
	if name == "" {
		return zerolog.ErrorLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		log.Error().Err(err).Str("logLevel", name).Msg("Invalid log level provided. Defaulting to error level.")
		return zerolog.ErrorLevel
	}
	return level
}

// SetFormat selects the writer used by the next ConfigureGlobal call.
func SetFormat(format string, noColor bool) {
	if strings.EqualFold(format, FormatJSON) {
		SetLogWriter(os.Stderr)
		return
	}
	SetLogWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: noColor})
}

// SetLogWriter sets the global log writer.
func SetLogWriter(w io.Writer) {
	logWriter = w
}
