package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	quiet, err := New(false)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if quiet.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be off without verbose")
	}

	loud, err := New(true)
	if err != nil {
		t.Fatalf("new verbose logger: %v", err)
	}
	if !loud.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be on with verbose")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected a no-op logger")
	}
}
