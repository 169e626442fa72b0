// Package logger builds the zerolog logger of a run.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/config"
)

// FromConfig returns a logger with settings matching cfg. Logs go to stderr
// so the summary on stdout stays machine readable.
func FromConfig(cfg config.LoggingConfig) zerolog.Logger {
	return New(os.Stderr, cfg)
}

// New returns a logger writing to w.
func New(w io.Writer, cfg config.LoggingConfig) zerolog.Logger {
	if cfg.Format == config.LogFormatText {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(Level(cfg.Level)).With().Timestamp().Logger()
}

// Level maps a configured level name to a zerolog level. Unknown names
// fall back to info.
func Level(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
