// Package logging provides a compact slog handler for terminal output.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ANSI color codes.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// Options configures a Handler.
type Options struct {
	Level slog.Level
	Color bool
}

// Handler is a compact, optionally colored slog handler.
type Handler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Level
	color bool
	attrs []slog.Attr
}

// NewHandler creates a new log handler.
func NewHandler(w io.Writer, opts *Options) *Handler {
	if opts == nil {
		opts = &Options{}
	}
	return &Handler{
		w:     w,
		mu:    &sync.Mutex{},
		level: opts.Level,
		color: opts.Color,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(h.colored(ansiGray, r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	writeAttr := func(a slog.Attr) {
		b.WriteByte(' ')
		b.WriteString(h.colored(ansiGray, a.Key+"="+fmt.Sprint(a.Value.Any())))
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *Handler) WithGroup(string) slog.Handler { return h }

func (h *Handler) levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.colored(ansiRed, "ERR")
	case level >= slog.LevelWarn:
		return h.colored(ansiYellow, "WRN")
	case level >= slog.LevelInfo:
		return h.colored(ansiCyan, "INF")
	default:
		return h.colored(ansiGray, "DBG")
	}
}

func (h *Handler) colored(code, s string) string {
	if !h.color {
		return s
	}
	return code + s + ansiReset
}

// Setup installs the compact handler as the default slog logger.
func Setup(level string, color bool) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(NewHandler(os.Stderr, &Options{Level: lvl, Color: color})))
}
