package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelWarn},
		{"", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type captureWriter struct {
	strings.Builder
}

func newSimpleHandler(w io.Writer, level slog.Level) slog.Handler {
	return &simpleTextHandler{
		handler: slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}),
		writer:  w,
	}
}

func TestSimpleTextHandlerFormat(t *testing.T) {
	var buf captureWriter
	h := newSimpleHandler(&buf, slog.LevelInfo)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "request done", 0)
	record.AddAttrs(slog.String("model", "gpt-4o"), slog.Int("tokens", 42))
	if err := h.Handle(context.Background(), record); err != nil {
		t.Fatal(err)
	}

	if got := buf.String(); got != "INFO request done model=gpt-4o tokens=42\n" {
		t.Errorf("output = %q", got)
	}
}

func TestSimpleTextHandlerWithAttrs(t *testing.T) {
	var buf captureWriter
	h := newSimpleHandler(&buf, slog.LevelInfo).WithAttrs([]slog.Attr{slog.String("agent", "coder")})

	record := slog.NewRecord(time.Now(), slog.LevelWarn, "slow reply", 0)
	if err := h.Handle(context.Background(), record); err != nil {
		t.Fatal(err)
	}

	if got := buf.String(); got != "WARN slow reply agent=coder\n" {
		t.Errorf("output = %q", got)
	}
}

func TestSimpleTextHandlerRespectsLevel(t *testing.T) {
	h := newSimpleHandler(io.Discard, slog.LevelWarn)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled at warn level")
	}
}
