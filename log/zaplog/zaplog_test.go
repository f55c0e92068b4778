package zaplog

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/IvanBrykalov/kvcache/log"
)

func TestLogger_WritesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := Logger{L: zap.New(core)}

	l.Info("listening", log.Fields{"addr": ":8080"})
	l.Warn("conn failed", log.Fields{"err": errors.New("reset")})
	l.Debug("no fields", nil)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if got := entries[0].ContextMap()["addr"]; got != ":8080" {
		t.Fatalf("addr = %v", got)
	}
	if got := entries[1].ContextMap()["err"]; got != "reset" {
		t.Fatalf("err = %v", got)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("level = %v", entries[1].Level)
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("loud"); err == nil {
		t.Fatal("unknown level must fail")
	}
	l, err := New("warn")
	if err != nil {
		t.Fatal(err)
	}
	if l.L.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info must be disabled at warn level")
	}
}
