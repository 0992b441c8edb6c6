// Package logger builds the process-wide structured logger.
package logger

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New returns a timestamped logger writing to w at the named level.
// Unknown level names fall back to info. Output is JSON, except when w is
// a terminal, where the console writer is friendlier.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = zerolog.ConsoleWriter{Out: f}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
