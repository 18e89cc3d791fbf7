package observe

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logger every package logs through.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: a span in ctx is attached to the line as trace_id/span_id.
//   - Errors: logging is best-effort and never panics.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// With returns a child logger that adds fields to every line.
	With(fields ...Field) Logger
}

// Field is one key/value pair on a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

var levels = map[string]zerolog.Level{
	"":        zerolog.InfoLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// redactedKeys are field keys, lowercased, whose values never reach the
// output. Cached payloads can belong to an authenticated caller, so bodies
// are redacted alongside credentials.
var redactedKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"password":      true,
	"secret":        true,
	"api_key":       true,
	"apikey":        true,
	"credential":    true,
	"payload":       true,
	"body":          true,
}

func knownLevel(name string) bool {
	_, ok := levels[strings.ToLower(name)]
	return ok
}

// ParseLogLevel maps a config level name onto a zerolog level.
// Unknown names fall back to info.
func ParseLogLevel(name string) zerolog.Level {
	if lvl, ok := levels[strings.ToLower(name)]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

type zerologLogger struct {
	zl zerolog.Logger
}

// NewLogger creates a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	zl := zerolog.New(w).Level(ParseLogLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// NewConsoleLogger creates a human readable logger for local development.
func NewConsoleLogger(level string, w io.Writer) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(ParseLogLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}

func (l *zerologLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...Field) Logger {
	c := l.zl.With()
	for _, f := range fields {
		c = c.Interface(f.Key, redact(f))
	}
	return &zerologLogger{zl: c.Logger()}
}

func (l *zerologLogger) emit(ctx context.Context, ev *zerolog.Event, msg string, fields []Field) {
	// nil when the level is disabled
	if ev == nil {
		return
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			ev = ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
	}

	for _, f := range fields {
		if err, ok := f.Value.(error); ok && f.Key == "error" {
			ev = ev.AnErr(f.Key, err)
			continue
		}
		ev = ev.Interface(f.Key, redact(f))
	}

	ev.Msg(msg)
}

func redact(f Field) any {
	if redactedKeys[strings.ToLower(f.Key)] {
		return "[REDACTED]"
	}
	return f.Value
}

var _ Logger = (*zerologLogger)(nil)
