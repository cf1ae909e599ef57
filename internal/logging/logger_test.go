package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(l *Logger) *[]string {
	var lines []string
	l.printf = func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}
	return &lines
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelDebug, ParseLevel("trace"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLogger_FiltersByLevel(t *testing.T) {
	l := New(LevelWarn, "EEGService")
	lines := capture(l)

	l.Debug("hidden %d", 1)
	l.Info("hidden")
	l.Warn("run %s skipped", "r1")
	l.Error("fit failed")

	assert.Equal(t, []string{"[EEGService] WARN run r1 skipped", "[EEGService] ERROR fit failed"}, *lines)
}

func TestLogger_With(t *testing.T) {
	l := New(LevelInfo, "A")
	lines := capture(l)
	l.With("B").Info("hello")
	assert.Equal(t, []string{"[B] hello"}, *lines)

	var nilLogger *Logger
	nilLogger.Info("no panic")
}
