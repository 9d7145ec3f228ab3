package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)
	logger.Log(t.Context(), LevelTrace, "sampling step", "step", 1)

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("Ausgabe %q enthaelt kein level=TRACE", out)
	}
	if !strings.Contains(out, "step=1") {
		t.Errorf("Ausgabe %q enthaelt kein step=1", out)
	}
}

func TestTraceRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(NewLogger(&buf, slog.LevelInfo))
	Trace("hidden")
	if buf.Len() != 0 {
		t.Errorf("Trace bei Info-Level geschrieben: %q", buf.String())
	}

	slog.SetDefault(NewLogger(&buf, LevelTrace))
	Trace("visible", "k", "v")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("Trace fehlt: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "logutil_test.go") {
		t.Errorf("Quelle zeigt nicht auf Aufrufer: %q", buf.String())
	}
}
