package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestLevelSelection(t *testing.T) {
	ctx := context.Background()

	debug := New("debug", "text")
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug logger should enable debug records")
	}

	errOnly := New("error", "json")
	if errOnly.Enabled(ctx, slog.LevelInfo) {
		t.Error("error logger should drop info records")
	}

	// Unknown levels fall back to info.
	fallback := New("loud", "text")
	if fallback.Enabled(ctx, slog.LevelDebug) {
		t.Error("fallback logger should drop debug records")
	}
	if !fallback.Enabled(ctx, slog.LevelInfo) {
		t.Error("fallback logger should enable info records")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	if id := RequestID(ctx); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}

	ctx = WithRequestID(ctx, "req-123")
	if id := RequestID(ctx); id != "req-123" {
		t.Errorf("expected req-123, got %q", id)
	}

	ctx = WithRequestID(ctx, "req-456")
	if id := RequestID(ctx); id != "req-456" {
		t.Errorf("later request ID should win, got %q", id)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	ctx := context.Background()

	if FromContext(ctx) == nil {
		t.Fatal("expected default logger when none stored")
	}

	custom := New("debug", "json")
	ctx = WithLogger(ctx, custom)
	if FromContext(ctx) != custom {
		t.Error("expected stored logger back from context")
	}
}

func TestL(t *testing.T) {
	ctx := WithLogger(context.Background(), New("info", "text"))
	if L(ctx) == nil {
		t.Fatal("expected logger without request ID")
	}
	if L(WithRequestID(ctx, "req-789")) == nil {
		t.Fatal("expected logger with request ID")
	}
}
