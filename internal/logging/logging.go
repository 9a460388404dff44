// Package logging builds the slog loggers used by the CLI and by hook
// executors. Hook processes must keep stdout clean for the host, so every
// logger here writes to stderr or to a file, never to stdout.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// HookLogFile is the JSON log written by hook executors under <dataDir>/logs.
const HookLogFile = "hooks.log"

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ForHook returns the logger for a hook executor: warnings and above go to
// stderr (hosts surface stderr in their hook logs), and everything at level
// goes to <logDir>/hooks.log as JSON when the directory is writable.
//
// The returned cleanup closes the log file and is always non-nil.
func ForHook(stderr io.Writer, logDir string, level slog.Level) (*slog.Logger, func()) {
	console := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})

	if logDir == "" {
		return slog.New(console), func() {}
	}
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return slog.New(console), func() {}
	}
	f, err := os.OpenFile(filepath.Join(logDir, HookLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return slog.New(console), func() {}
	}

	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(tee{console, file}), func() { _ = f.Close() }
}

// tee fans a record out to every handler that accepts its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
