package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("world", &buf, WARN)

	l.Info("не должно попасть в вывод")
	l.Warn("чанк %d не найден", 7)

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [world] чанк 7 не найден")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, INFO, ParseLevel("что-то"))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Error("ничего") })
}

func TestComponentLoggerIsCached(t *testing.T) {
	a := GetComponentLogger("test-cache")
	b := GetComponentLogger("test-cache")
	assert.Same(t, a, b)
	assert.True(t, strings.Contains(a.component, "test-cache"))
}
