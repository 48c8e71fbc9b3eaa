package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	logger := NewLogger()
	if logger == nil {
		t.Fatal("expected a logger")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled by default")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be enabled by default")
	}
}

func TestNewLoggerHonorsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := NewLogger()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled with LOG_LEVEL=debug")
	}

	t.Setenv("LOG_LEVEL", "error")
	logger = NewLogger()
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled with LOG_LEVEL=error")
	}
}

func TestWithFields(t *testing.T) {
	base := NewTextLogger()
	logger := WithFields(base, map[string]interface{}{"component": "test", "attempt": 2})
	if logger == nil {
		t.Fatal("expected a logger")
	}
	if logger == base {
		t.Error("expected a derived logger instance")
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	logger := NewTextLogger()
	ctx := WithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("expected the stored logger back")
	}
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("expected the default logger for an empty context")
	}
}
