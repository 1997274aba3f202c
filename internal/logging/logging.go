// Package logging defines the structured Logger interface used across the engine:
// leveled Debug/Info/Warn/Error with key-value pairs and a scoping With, backed by
// zerolog behind a small first-party interface rather than importing it directly at
// every call site.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logging interface every component depends on.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type zeroLogger struct {
	z zerolog.Logger
}

// New returns a Logger that writes structured, leveled JSON to w.
func New(w io.Writer, level zerolog.Level) Logger {
	z := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &zeroLogger{z: z}
}

// NewStdout returns a Logger writing to stdout in a human-readable console format,
// suitable for the CLI entrypoints.
func NewStdout(level zerolog.Level) Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	z := zerolog.New(cw).Level(level).With().Timestamp().Logger()
	return &zeroLogger{z: z}
}

func (l *zeroLogger) event(e *zerolog.Event, msg string, keyvals ...any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

func (l *zeroLogger) Debug(msg string, keyvals ...any) { l.event(l.z.Debug(), msg, keyvals...) }
func (l *zeroLogger) Info(msg string, keyvals ...any)  { l.event(l.z.Info(), msg, keyvals...) }
func (l *zeroLogger) Warn(msg string, keyvals ...any)  { l.event(l.z.Warn(), msg, keyvals...) }
func (l *zeroLogger) Error(msg string, keyvals ...any) { l.event(l.z.Error(), msg, keyvals...) }

func (l *zeroLogger) With(keyvals ...any) Logger {
	ctx := l.z.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, keyvals[i+1])
	}
	return &zeroLogger{z: ctx.Logger()}
}

// Noop returns a Logger that discards everything, for tests that don't care about logs.
func Noop() Logger {
	return New(io.Discard, zerolog.Disabled)
}
