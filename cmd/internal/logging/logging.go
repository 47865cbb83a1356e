// Package logging configures the process-wide slog logger for the tagmatch
// commands.
package logging

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Logging installs the default logger and registers its flags. The handler
// format is picked lazily so the -log-json flag can be read after parsing.
// The returned exit function terminates the process, non-zero if anything
// was logged at error level.
func Logging() (exit func()) {
	var logLevel slog.LevelVar
	flag.TextVar(&logLevel, "log-level", &logLevel, "Set the logging level")

	h := &handler{level: &logLevel}
	flag.BoolVar(&h.json, "log-json", false, "Log lines as JSON")

	slog.SetDefault(slog.New(h))
	slog.SetLogLoggerLevel(slog.LevelError)

	return func() {
		if h.hadError.Load() {
			os.Exit(1)
		}
		os.Exit(0)
	}
}

type handler struct {
	json  bool
	level slog.Leveler

	initOnce sync.Once
	inner    slog.Handler
	hadError atomic.Bool
}

func (h *handler) init() {
	opts := &slog.HandlerOptions{Level: h.level}
	if h.json {
		h.inner = slog.NewJSONHandler(os.Stderr, opts)
		return
	}
	h.inner = slog.NewTextHandler(os.Stderr, opts)
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	h.initOnce.Do(h.init)
	return h.inner.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	h.initOnce.Do(h.init)
	if r.Level >= slog.LevelError {
		h.hadError.Store(true)
	}
	return h.inner.Handle(ctx, r)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.initOnce.Do(h.init)
	return h.inner.WithAttrs(attrs)
}

func (h *handler) WithGroup(name string) slog.Handler {
	h.initOnce.Do(h.init)
	return h.inner.WithGroup(name)
}
