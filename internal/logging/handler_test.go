package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandler_Handle(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			level:   slog.LevelInfo,
			message: "server starting up",
			want:    "2024-06-15T14:30:45Z\tINFO\tserver\tserver starting up\n",
		},
		{
			name:    "with record attrs",
			level:   slog.LevelInfo,
			message: "created chunk",
			attrs:   []slog.Attr{slog.String("id", "abc-123")},
			want:    "2024-06-15T14:30:45Z\tINFO\tserver\tcreated chunk\tid=abc-123\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			h := NewHandler(&buf, "server", slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestHandler_Enabled_FiltersByMinLevel(t *testing.T) {
	t.Parallel()

	h := NewHandler(&bytes.Buffer{}, "server", slog.LevelWarn)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled when min level is warn")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled when min level is warn")
	}
}

func TestHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewHandler(&buf, "server", slog.LevelDebug)
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "chunkserver")})

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=chunkserver") {
		t.Errorf("expected pre-set attr, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr, got: %q", got)
	}
}

func TestHandler_WithAttrs_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := &handler{w: &buf, component: "server", attrs: []slog.Attr{slog.String("a", "1")}}
	h2 := base.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*handler)

	if len(base.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(base.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}
