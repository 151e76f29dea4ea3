// Package logging builds the zerolog loggers used across the service.
// Every line is one JSON object carrying "ts" in the configured time zone,
// "level" and, when present, "msg".
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.MessageFieldName = "msg"
	zerolog.ErrorFieldName = "error_message"
}

// tsHook stamps each event with the wall clock in loc.
type tsHook struct {
	loc *time.Location
}

func (h tsHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str("ts", time.Now().In(h.loc).Format(time.RFC3339Nano))
}

// New returns a JSON logger writing to w at the given level.
// Unknown levels fall back to info; a nil loc means UTC.
func New(w io.Writer, level string, loc *time.Location) zerolog.Logger {
	if loc == nil {
		loc = time.UTC
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).Hook(tsHook{loc: loc})
}

// Stdout is New writing to os.Stdout.
func Stdout(level string, loc *time.Location) zerolog.Logger {
	return New(os.Stdout, level, loc)
}

// Component returns a child logger tagged with component=name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
