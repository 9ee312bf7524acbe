// Package log provides the logging contract used by the engine.
// The library is silent by default (NopLogger); hosts inject their own
// implementation through engine.WithLogger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is for connect/teardown tracing.
	LevelDebug Level = iota
	// LevelInfo is for lifecycle events.
	LevelInfo
	// LevelWarn is for timeouts and retries.
	LevelWarn
	// LevelError is for failures the engine cannot recover from locally.
	LevelError
	// LevelSilent disables all logging.
	LevelSilent
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "SILENT", "OFF":
		return LevelSilent, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger defines the logging interface used by the engine.
// Implementations must be safe for concurrent use: lanes of different
// connections log from different goroutines.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Debug(format string, args ...interface{}) {}
func (NopLogger) Info(format string, args ...interface{})  {}
func (NopLogger) Warn(format string, args ...interface{})  {}
func (NopLogger) Error(format string, args ...interface{}) {}

// Nop returns the silent logger.
func Nop() Logger {
	return NopLogger{}
}

// StdLogger writes leveled lines to an io.Writer.
type StdLogger struct {
	mu     sync.Mutex
	writer io.Writer
	level  Level
	prefix string
}

// StdLoggerOption configures a StdLogger.
type StdLoggerOption func(*StdLogger)

// WithWriter sets the output writer.
func WithWriter(w io.Writer) StdLoggerOption {
	return func(l *StdLogger) {
		l.writer = w
	}
}

// WithLevel sets the minimum level that is written.
func WithLevel(level Level) StdLoggerOption {
	return func(l *StdLogger) {
		l.level = level
	}
}

// WithPrefix sets a prefix printed after the timestamp.
func WithPrefix(prefix string) StdLoggerOption {
	return func(l *StdLogger) {
		l.prefix = prefix
	}
}

// NewStdLogger creates a StdLogger writing to os.Stderr at Info level.
func NewStdLogger(opts ...StdLoggerOption) *StdLogger {
	l := &StdLogger{
		writer: os.Stderr,
		level:  LevelInfo,
		prefix: "[asio2]",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *StdLogger) log(level Level, format string, args ...interface{}) {
	if level < l.level || l.level == LevelSilent {
		return
	}

	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05.000")

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prefix != "" {
		fmt.Fprintf(l.writer, "%s %s %s %s\n", ts, l.prefix, level, msg)
	} else {
		fmt.Fprintf(l.writer, "%s %s %s\n", ts, level, msg)
	}
}

func (l *StdLogger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *StdLogger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *StdLogger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *StdLogger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// Default returns a StdLogger writing to stderr at Info level.
func Default() Logger {
	return NewStdLogger()
}

// named prepends a component name to every message.
type named struct {
	base Logger
	tag  string
}

// Named scopes every line written through the returned Logger with name,
// e.g. a connection id. A nil base yields the silent logger.
func Named(base Logger, name string) Logger {
	if base == nil {
		return Nop()
	}
	if _, ok := base.(NopLogger); ok {
		return base
	}
	if n, ok := base.(*named); ok {
		return &named{base: n.base, tag: n.tag + "/" + name}
	}
	return &named{base: base, tag: name}
}

func (n *named) Debug(format string, args ...interface{}) {
	n.base.Debug("["+n.tag+"] "+format, args...)
}

func (n *named) Info(format string, args ...interface{}) {
	n.base.Info("["+n.tag+"] "+format, args...)
}

func (n *named) Warn(format string, args ...interface{}) {
	n.base.Warn("["+n.tag+"] "+format, args...)
}

func (n *named) Error(format string, args ...interface{}) {
	n.base.Error("["+n.tag+"] "+format, args...)
}
