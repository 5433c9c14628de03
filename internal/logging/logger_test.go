package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "pid", 42)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "pid=42")

	buf.Reset()
	verbose := New(&buf, true)
	verbose.Debug("detail")
	require.Contains(t, buf.String(), "level=DEBUG")
	require.Contains(t, buf.String(), "component=cpu_affinity")
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Warn("no main processes found", "names", "main.exe")
	r.Warn("no main processes found")
	r.Info("moved", "count")

	require.Equal(t, 2, r.Count("WARN", "no main"))
	require.Equal(t, 0, r.Count("ERROR", "no main"))

	entries := r.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, "main.exe", entries[0].Fields["names"])
	require.Equal(t, "<missing>", entries[2].Fields["count"])
}

func TestNopLogger(t *testing.T) {
	var l Logger = NewNop()
	require.NotPanics(t, func() {
		l.Debug("a")
		l.Info("b", "k", "v")
		l.Warn("c")
		l.Error("d")
	})
}
