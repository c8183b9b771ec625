// Package logging provides the structured logger used across mnemo's
// components. It keeps the teacher's minimal Logger interface shape
// (Debug/Info/Warn/Error/With) but backs it with zerolog instead of a
// hand-rolled writer, matching the rest of the retrieved corpus.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the interface every component depends on. Keeping it narrow lets
// callers swap in a no-op logger for tests without pulling in zerolog.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type zlogger struct {
	l zerolog.Logger
}

// New creates a Logger that writes JSON lines to w at the given minimum level.
func New(w io.Writer, level zerolog.Level) Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &zlogger{l: zl}
}

// NewStd creates a Logger writing to stdout at info level.
func NewStd() Logger {
	return New(os.Stdout, zerolog.InfoLevel)
}

func (z *zlogger) event(e *zerolog.Event, msg string, keyvals ...any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

func (z *zlogger) Debug(msg string, keyvals ...any) { z.event(z.l.Debug(), msg, keyvals...) }
func (z *zlogger) Info(msg string, keyvals ...any)  { z.event(z.l.Info(), msg, keyvals...) }
func (z *zlogger) Warn(msg string, keyvals ...any)  { z.event(z.l.Warn(), msg, keyvals...) }
func (z *zlogger) Error(msg string, keyvals ...any) { z.event(z.l.Error(), msg, keyvals...) }

func (z *zlogger) With(keyvals ...any) Logger {
	ctx := z.l.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, keyvals[i+1])
	}
	return &zlogger{l: ctx.Logger()}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }

// Nop returns a Logger that discards everything, for tests.
func Nop() Logger { return nopLogger{} }
