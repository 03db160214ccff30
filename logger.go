package asyncdb

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	// Debug logs a message at the debug level with context key/value pairs
	Debug(msg string, ctx ...any)

	// Info logs a message at the info level with context key/value pairs
	Info(msg string, ctx ...any)

	// Warn logs a message at the warn level with context key/value pairs
	Warn(msg string, ctx ...any)

	// Error logs a message at the error level with context key/value pairs
	Error(msg string, ctx ...any)
}

// zeroLogger adapts a zerolog.Logger to Logger. Context arguments are read as
// alternating key/value pairs.
type zeroLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zeroLogger{l: l}
}

// NewLogger returns a human readable console logger writing to stderr.
func NewLogger(level zerolog.Level) Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, TimeFormat: time.RFC3339}
	cw.FormatLevel = func(i any) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	return NewZerologLogger(zerolog.New(cw).Level(level).With().Timestamp().Str("component", "asyncdb").Logger())
}

// NewJSONLogger returns a logger writing one JSON object per line to w.
func NewJSONLogger(w io.Writer, level zerolog.Level) Logger {
	return NewZerologLogger(zerolog.New(w).Level(level).With().Timestamp().Str("component", "asyncdb").Logger())
}

// NopLogger discards everything.
func NopLogger() Logger {
	return NewZerologLogger(zerolog.Nop())
}

func (z *zeroLogger) Debug(msg string, ctx ...any) { z.emit(z.l.Debug(), msg, ctx) }
func (z *zeroLogger) Info(msg string, ctx ...any)  { z.emit(z.l.Info(), msg, ctx) }
func (z *zeroLogger) Warn(msg string, ctx ...any)  { z.emit(z.l.Warn(), msg, ctx) }
func (z *zeroLogger) Error(msg string, ctx ...any) { z.emit(z.l.Error(), msg, ctx) }

func (z *zeroLogger) emit(e *zerolog.Event, msg string, ctx []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		if i+1 >= len(ctx) {
			e = e.Interface(key, nil)
			break
		}
		switch v := ctx[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case string:
			e = e.Str(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
