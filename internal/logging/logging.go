// Package logging provides a small leveled logger with structured fields.
package logging

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log severity level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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
	}
	return "UNKNOWN"
}

// Fields holds structured key/value pairs attached to a log entry
type Fields map[string]interface{}

// WithField creates a Fields with a single key/value pair
func WithField(key string, value interface{}) Fields {
	return Fields{key: value}
}

// WithFields creates a Fields from a map
func WithFields(fields map[string]interface{}) Fields {
	return Fields(fields)
}

// Logger writes leveled log lines to stderr
type Logger struct {
	mu    sync.Mutex
	level Level
}

// New creates a logger that emits entries at or above the given level
func New(level Level) *Logger {
	return &Logger{level: level}
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs at info level
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs at error level
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(LevelError, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...Fields) {
	if level < l.level {
		return
	}

	merged := Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}

	var sb strings.Builder
	sb.WriteString(time.Now().UTC().Format(time.RFC3339))
	sb.WriteString(" [")
	sb.WriteString(level.String())
	sb.WriteString("] ")
	sb.WriteString(msg)

	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf(" %s=%v", k, merged[k]))
		}
	}

	l.mu.Lock()
	fmt.Fprintln(os.Stderr, sb.String())
	l.mu.Unlock()
}
