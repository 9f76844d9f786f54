// Package logging provides the tab-separated structured log handler
// shared by both the chunk server and the backup client binaries.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// handler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<component>\t<message>\t<key=value ...>
type handler struct {
	w         io.Writer
	component string
	minLevel  slog.Level
	attrs     []slog.Attr
}

// NewHandler builds a slog.Handler writing to w, tagging every record
// with component and filtering out records below minLevel.
func NewHandler(w io.Writer, component string, minLevel slog.Level) slog.Handler {
	return &handler{w: w, component: component, minLevel: minLevel}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	if _, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.component, r.Message); err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err := fmt.Fprintln(h.w)
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		w:         h.w,
		component: h.component,
		minLevel:  h.minLevel,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *handler) WithGroup(string) slog.Handler { return h }
