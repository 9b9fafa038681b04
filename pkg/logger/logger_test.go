// pkg/logger/logger_test.go
package logger_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logger.New(logger.Config{Level: "invalid", DevMode: false})
	if err == nil {
		t.Error("expected error for invalid level, got nil")
	}
}

func TestNew_ValidLevels(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error", ""}
	for _, lvl := range levels {
		if _, err := logger.New(logger.Config{Level: lvl, DevMode: true}); err != nil {
			t.Errorf("expected no error for level %q, got %v", lvl, err)
		}
	}
}

func TestWithContext_TraceAndSessionID(t *testing.T) {
	raw, err := logger.New(logger.Config{Level: "info", DevMode: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if got := raw.WithContext(ctx); got != raw {
		t.Error("WithContext without ids should return the same logger")
	}

	ctx = logger.ContextWithTraceID(ctx, "trace-123")
	ctx = logger.ContextWithSessionID(ctx, "sess-456")
	enh := raw.WithContext(ctx)
	if enh == raw {
		t.Error("WithContext with ids should return a child logger")
	}
	enh.Info("test message", zap.String("k", "v"))
}

func TestNop_NoPanic(t *testing.T) {
	l := logger.NewNop().Named("x").With(zap.Int("n", 1))
	l.Debug("d")
	l.Warn("w")
	l.Sync()
}
