package utils

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
)

// LogLevel is the severity of a message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name. Unknown names mean LevelInfo.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the interface for logging. Components receive a Logger through
// their constructors; there is no process-wide instance.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// fields are the key/value pairs attached to a child logger.
type fields map[string]interface{}

func (f fields) with(more map[string]interface{}) fields {
	merged := make(fields, len(f)+len(more))
	maps.Copy(merged, f)
	maps.Copy(merged, more)
	return merged
}

// String renders the fields sorted by key, each preceded by a space.
func (f fields) String() string {
	var sb strings.Builder
	for _, k := range slices.Sorted(maps.Keys(f)) {
		fmt.Fprintf(&sb, " %s=%v", k, f[k])
	}
	return sb.String()
}

// DefaultLogger writes one line per message:
//
//	[2006-01-02 15:04:05.000] [LEVEL] k=v msg
//
// Children created by WithFields share the writer and its lock.
type DefaultLogger struct {
	mu     *sync.Mutex
	level  LogLevel
	output io.Writer
	clock  Clock
	fields fields
}

// NewDefaultLogger creates a logger writing messages at or above level.
func NewDefaultLogger(level LogLevel, output io.Writer) *DefaultLogger {
	return &DefaultLogger{
		mu:     &sync.Mutex{},
		level:  level,
		output: output,
		clock:  NewRealClock(),
	}
}

// SetClock replaces the clock used for timestamps.
func (l *DefaultLogger) SetClock(clock Clock) {
	l.clock = clock
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }
func (l *DefaultLogger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args) }
func (l *DefaultLogger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args) }
func (l *DefaultLogger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *DefaultLogger) WithFields(more map[string]interface{}) Logger {
	child := *l
	child.fields = l.fields.with(more)
	return &child
}

func (l *DefaultLogger) log(level LogLevel, msg string, args []interface{}) {
	if level < l.level {
		return
	}
	line := fmt.Sprintf("[%s] [%s]%s %s\n",
		l.clock.Now().Format("2006-01-02 15:04:05.000"), level, l.fields, fmt.Sprintf(msg, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.output, line)
}

// NullLogger discards every message.
type NullLogger struct{}

func (l *NullLogger) Debug(msg string, args ...interface{}) {}
func (l *NullLogger) Info(msg string, args ...interface{})  {}
func (l *NullLogger) Warn(msg string, args ...interface{})  {}
func (l *NullLogger) Error(msg string, args ...interface{}) {}

func (l *NullLogger) WithField(key string, value interface{}) Logger  { return l }
func (l *NullLogger) WithFields(fields map[string]interface{}) Logger { return l }

// LogEntry is a message captured by a MemoryLogger.
type LogEntry struct {
	Level   LogLevel
	Message string
	Fields  map[string]interface{}
}

// MemoryLogger keeps every message in memory. Children share the entry
// list of their parent.
type MemoryLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	fields  fields
}

// NewMemoryLogger creates an empty MemoryLogger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{mu: &sync.Mutex{}, entries: &[]LogEntry{}}
}

func (l *MemoryLogger) Debug(msg string, args ...interface{}) { l.add(LevelDebug, msg, args) }
func (l *MemoryLogger) Info(msg string, args ...interface{})  { l.add(LevelInfo, msg, args) }
func (l *MemoryLogger) Warn(msg string, args ...interface{})  { l.add(LevelWarn, msg, args) }
func (l *MemoryLogger) Error(msg string, args ...interface{}) { l.add(LevelError, msg, args) }

func (l *MemoryLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *MemoryLogger) WithFields(more map[string]interface{}) Logger {
	child := *l
	child.fields = l.fields.with(more)
	return &child
}

func (l *MemoryLogger) add(level LogLevel, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, LogEntry{Level: level, Message: fmt.Sprintf(msg, args...), Fields: l.fields})
}

// Entries returns the captured entries at or above min.
func (l *MemoryLogger) Entries(min LogLevel) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range *l.entries {
		if e.Level >= min {
			out = append(out, e)
		}
	}
	return out
}
