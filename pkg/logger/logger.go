// Package logger is the process-wide structured logger, a thin layer over
// log/slog with typed fields and call-site annotation.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Output formats accepted by InitWithFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// frames between a level method's caller and runtime.Caller in emit.
const callerDepth = 3

// ErrNotInitialized is the panic value of Get before Init.
var ErrNotInitialized = errors.New("logger not initialized; call logger.Init first")

// Logger is the logging surface used across the module.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	// Fatal logs at error level and exits the process.
	Fatal(ctx context.Context, msg string, fields ...Field)

	// Named nests later fields under name.
	Named(name string) Logger
	// With attaches fields to every record of the returned logger.
	With(fields ...Field) Logger
}

// Field is one key/value attribute of a record.
type Field struct {
	Key   string
	Value any
}

func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Strings(key string, val []string) Field       { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field        { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field              { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Any(key string, val any) Field                { return Field{Key: key, Value: val} }

// Error records err under "error"; a nil error is written as "<nil>".
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

func attrs(fields []Field) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

type slogLogger struct {
	sl *slog.Logger
}

func (l *slogLogger) Named(name string) Logger {
	return &slogLogger{sl: l.sl.WithGroup(name)}
}

func (l *slogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, 0, len(fields))
	for _, a := range attrs(fields) {
		args = append(args, a)
	}
	return &slogLogger{sl: l.sl.With(args...)}
}

func (l *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelError, msg, fields)
}

func (l *slogLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelError, msg, fields)
	os.Exit(1)
}

func (l *slogLogger) emit(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if !l.sl.Enabled(ctx, level) {
		return
	}
	a := attrs(fields)
	a = append(a, slog.String("source", caller(callerDepth)))
	l.sl.LogAttrs(ctx, level, msg, a...)
}

// caller formats the call site as dir/file.go:line.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown:0"
	}
	if i := strings.LastIndexByte(file, '/'); i > 0 {
		if j := strings.LastIndexByte(file[:i], '/'); j >= 0 {
			file = file[j+1:]
		}
	}
	return file + ":" + strconv.Itoa(line)
}

var (
	global Logger
	level  slog.LevelVar
)

// Init installs a text logger on stdout at info level.
func Init() error {
	return InitWithWriter(os.Stdout)
}

// InitWithWriter installs a text logger writing to w.
func InitWithWriter(w io.Writer) error {
	return InitWithFormat(w, FormatText)
}

// InitWithFormat installs a logger writing format (text or json) to w at
// info level.
func InitWithFormat(w io.Writer, format string) error {
	if w == nil {
		return errors.New("logger writer is nil")
	}
	level.Set(slog.LevelInfo)
	opts := &slog.HandlerOptions{Level: &level}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		h = slog.NewTextHandler(w, opts)
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	global = &slogLogger{sl: slog.New(h)}
	return nil
}

// Get returns the installed logger and panics before Init.
func Get() Logger {
	if global == nil {
		panic(ErrNotInitialized)
	}
	return global
}

// Default is Get for library code: before Init it returns Nop instead of
// panicking.
func Default() Logger {
	if global == nil {
		return Nop()
	}
	return global
}

// Nop drops every record.
func Nop() Logger {
	return &slogLogger{sl: slog.New(slog.DiscardHandler)}
}

func Named(name string) Logger {
	return Get().Named(name)
}

// Sync exists for symmetry with buffered loggers; slog writes through.
func Sync() error { return nil }

func SetLevel(l slog.Level) { level.Set(l) }

// SetLevelString accepts debug, info, warn or warning, and error in any
// case. An empty string means info.
func SetLevelString(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		SetLevel(slog.LevelDebug)
	case "", "info":
		SetLevel(slog.LevelInfo)
	case "warn", "warning":
		SetLevel(slog.LevelWarn)
	case "error":
		SetLevel(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", s)
	}
	return nil
}
