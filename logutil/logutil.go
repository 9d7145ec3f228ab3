// Package logutil - slog-Konfiguration mit zusaetzlichem TRACE-Level.
//
// MODUL: logutil
// ZWECK: Einheitlicher Text-Logger fuer CLI und Kern, TRACE fuer Sampling-Schritte
// INPUT: io.Writer, slog.Level (via envconfig.LogLevel)
// OUTPUT: *slog.Logger
// NEBENEFFEKTE: keine (SetDefault bleibt dem Aufrufer ueberlassen)
// ABHAENGIGKEITEN: log/slog
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

// LevelTrace liegt unterhalb von Debug und wird fuer Per-Schritt-Ausgaben genutzt.
const LevelTrace slog.Level = -8

// NewLogger erstellt einen Text-Logger. Quellen werden ab Debug angezeigt.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if lvl, ok := attr.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// Trace loggt auf TRACE-Level ueber den Default-Logger.
func Trace(msg string, args ...any) {
	trace(context.Background(), msg, args...)
}

// TraceContext loggt auf TRACE-Level mit Kontext.
func TraceContext(ctx context.Context, msg string, args ...any) {
	trace(ctx, msg, args...)
}

func trace(ctx context.Context, msg string, args ...any) {
	logger := slog.Default()
	if !logger.Enabled(ctx, LevelTrace) {
		return
	}

	// Aufrufer statt logutil als Quelle melden
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), LevelTrace, msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}
