// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing human-readable lines to w at the given
// level. Unknown levels fall back to info.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(console).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything. Handy for tests and
// for components constructed without a caller-supplied logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
