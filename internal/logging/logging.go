// Package logging builds the CLI loggers: a tint-colored slog handler and a
// *log.Logger bridge for packages that take a Printf-style Logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a logger writing to stderr. verbose enables debug output.
func New(verbose bool) *slog.Logger {
	return NewWriter(os.Stderr, verbose, false)
}

// NewWriter is New with an explicit destination. noColor strips ANSI
// escapes, for files and tests.
func NewWriter(w io.Writer, verbose, noColor bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:   level,
		NoColor: noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Std bridges l to a *log.Logger at info level. Lines logged through it
// keep their "stage=... key=value" text as the message.
func Std(l *slog.Logger) *log.Logger {
	return slog.NewLogLogger(l.Handler(), slog.LevelInfo)
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s.%03dZ", t.Format("2006-01-02T15:04:05"), t.Nanosecond()/1_000_000)
}
