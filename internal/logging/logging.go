// Package logging configures structured logging for the sorting pipeline
// and its command-line front ends. Logs fan out to a human-readable stderr
// handler and an optional rotated JSON file handler, grounded on the
// ushineko-face-puncher-supreme example's internal/logging package — the
// teacher itself only ever calls bare log.Printf, so this is an
// ambient-stack enrichment pulled from the rest of the example pack.
package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls how Setup builds the fan-out logger.
type Config struct {
	// LogDir is the directory for rotated log files. File logging is
	// disabled when empty.
	LogDir string
	// Verbose enables DEBUG-level logging; the default is INFO.
	Verbose bool
}

// Result holds the outputs of Setup.
type Result struct {
	Logger   *slog.Logger
	Cleanup  func()
	LevelVar *slog.LevelVar
}

// Setup builds a logger writing to stderr and, when cfg.LogDir is set,
// also to a size-rotated JSON file. The returned LevelVar lets a caller
// toggle verbosity at runtime without reconstructing the logger.
func Setup(cfg Config) Result {
	levelVar := new(slog.LevelVar)
	if cfg.Verbose {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
	handlers := []slog.Handler{stderrHandler}

	cleanup := func() {}
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o750); err != nil {
			slog.New(stderrHandler).Warn("failed to create log directory, file logging disabled",
				"dir", cfg.LogDir, "error", err)
		} else {
			lj := &lumberjack.Logger{
				Filename:   filepath.Join(cfg.LogDir, "pluginsort.log"),
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     7,
				Compress:   true,
			}
			handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: levelVar}))
			cleanup = func() { _ = lj.Close() }
		}
	}

	return Result{
		Logger:   slog.New(&multiHandler{handlers: handlers}),
		Cleanup:  cleanup,
		LevelVar: levelVar,
	}
}

// multiHandler fans a record out to every wrapped handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}
