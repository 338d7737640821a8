package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevel(t *testing.T) {
	logger, err := New("production", "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}

	logger, err = New("development", "bogus")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("invalid level should fall back to info")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected global fallback")
	}
	l := zap.NewNop()
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("expected stored logger")
	}
}
