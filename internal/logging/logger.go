// Package logging provides leveled logging on top of the standard logger.
package logging

import (
	"io"
	"log"
	"strings"
)

// Level represents different logging verbosity levels
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN":
		return LevelWarn
	case "DEBUG", "TRACE":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Logger writes leveled messages tagged with a component name
type Logger struct {
	level     Level
	component string
	printf    func(format string, args ...interface{})
}

// New creates a logger for component at the given level
func New(level Level, component string) *Logger {
	return &Logger{level: level, component: component, printf: log.Printf}
}

// NewWriter creates a logger that writes timestamped lines to w
func NewWriter(level Level, component string, w io.Writer) *Logger {
	return &Logger{level: level, component: component, printf: log.New(w, "", log.LstdFlags).Printf}
}

// With returns a logger for another component at the same level
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{level: l.level, component: component, printf: l.printf}
}

// Level returns the current log level
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError
	}
	return l.level
}

func (l *Logger) emit(at Level, tag, format string, args ...interface{}) {
	if l == nil || l.level < at {
		return
	}
	l.printf("["+l.component+"] "+tag+format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(LevelError, "ERROR ", format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(LevelWarn, "WARN ", format, args...)
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(LevelInfo, "", format, args...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(LevelDebug, "DEBUG ", format, args...)
}
